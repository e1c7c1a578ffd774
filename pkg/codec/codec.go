/*
Package codec serializes and deserializes stored records.

The wire format is plain JSON, the same approach the host system's
original BoltDB layer used for every record type (json.Marshal into a
bucket value, json.Unmarshal back out); no ecosystem serialization
library in the dependency set improves on encoding/json for this
module's purposes, so it is used directly rather than introduced as a
third-party dependency.

Optional compression uses compress/flate for the same reason: no
third-party compressor appears anywhere in the retrieved dependency
set, and flate's streaming Reader/Writer pair is a direct fit for the
envelope format pkg/itemstore builds on top of this package.
*/
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"io"

	"github.com/cuemby/estore/pkg/estoreerr"
)

// Encode marshals v to its JSON wire representation.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals raw JSON into v.
func Decode(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// Compress runs raw through flate at the given level (flate.DefaultCompression
// if level is 0).
func Compress(raw []byte, level int) ([]byte, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &estoreerr.CorruptValue{Reason: "flate decompression failed: " + err.Error()}
	}
	return out, nil
}
