package index

import (
	"math"
	"sort"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/query"
	"github.com/cuemby/estore/pkg/tuple"
)

// Entries computes the full entry set entries(record) for every kind
// except Count and Sum (maintained by atomic counter deltas) and
// Version (maintained by commit-version-stamped appends) — see apply.go
// for both.
func Entries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	switch d.Kind {
	case entity.IndexScalar:
		return scalarEntries(d, id, rec)
	case entity.IndexMin, entity.IndexMax:
		return minMaxEntries(d, id, rec)
	case entity.IndexGraph:
		return graphEntries(d, id, rec)
	case entity.IndexFullText:
		return fullTextEntries(d, id, rec)
	case entity.IndexRank:
		return rankEntries(d, id, rec)
	case entity.IndexSpatial:
		return spatialEntries(d, id, rec)
	case entity.IndexPermuted:
		return permutedEntries(d, id, rec)
	case entity.IndexVector:
		return vectorEntries(d, id, rec)
	default:
		return nil, nil
	}
}

func fieldsTuple(d *Descriptor, rec entity.Record) []tuple.Element {
	out := make([]tuple.Element, 0, len(d.Fields))
	for _, f := range d.Fields {
		fv := rec.FieldValue(f)
		out = append(out, fieldValueToTuple(fv))
	}
	return out
}

// fieldValueToTuple widens a query.FieldValue into the order-preserving
// tuple.Element representation used for index keys.
func fieldValueToTuple(fv query.FieldValue) tuple.Element {
	if fv.IsNil() {
		return tuple.Nil()
	}
	if b, ok := fv.AsBool(); ok {
		return tuple.Bool(b)
	}
	if i, ok := fv.AsInt64(); ok {
		return tuple.Int(i)
	}
	if f, ok := fv.AsDouble(); ok {
		return tuple.Double(f)
	}
	if s, ok := fv.AsString(); ok {
		return tuple.Str(s)
	}
	if b, ok := fv.AsData(); ok {
		return tuple.Bytes(b)
	}
	return tuple.Str(fv.String())
}

func isSparseNull(elems []tuple.Element) bool {
	for _, e := range elems {
		if e.IsNil() {
			return true
		}
	}
	return false
}

func scalarEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	var elems []tuple.Element
	if d.KeyExpression != nil {
		elems = d.KeyExpression(rec)
	} else {
		elems = fieldsTuple(d, rec)
	}
	if d.Sparse && isSparseNull(elems) {
		return nil, nil
	}
	valuePrefix := tuple.Pack(elems...)
	key := tuple.Pack(append(append([]tuple.Element(nil), elems...), id)...)
	var value []byte
	if len(d.StoredFields) > 0 {
		stored := make([]tuple.Element, 0, len(d.StoredFields))
		for _, f := range d.StoredFields {
			stored = append(stored, fieldValueToTuple(rec.FieldValue(f)))
		}
		value = tuple.Pack(stored...)
	}
	return []Entry{{Key: key, Value: value, ValuePrefix: valuePrefix}}, nil
}

func minMaxEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	group, err := d.GroupKey(rec)
	if err != nil {
		return nil, err
	}
	var value tuple.Element
	var ok bool
	if d.Value != nil {
		value, ok = d.Value(rec)
	}
	if !ok {
		return nil, nil
	}
	key := tuple.Pack(group, value, id)
	return []Entry{{Key: key}}, nil
}

func graphEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	if d.GraphMode == GraphTriple {
		subj, ok1 := d.Subject(rec)
		pred, ok2 := d.Predicate(rec)
		obj, ok3 := d.Object(rec)
		if !ok1 || !ok2 || !ok3 {
			return nil, nil
		}
		p := tuple.Str(pred)
		return []Entry{
			{Key: tuple.Pack(tuple.Str("spo"), subj, p, obj)},
			{Key: tuple.Pack(tuple.Str("pos"), p, obj, subj)},
			{Key: tuple.Pack(tuple.Str("osp"), obj, subj, p)},
		}, nil
	}
	from, ok1 := d.From(rec)
	to, ok2 := d.To(rec)
	edge, ok3 := d.Edge(rec)
	if !ok1 || !ok2 || !ok3 {
		return nil, nil
	}
	out := []Entry{
		{Key: tuple.Pack(tuple.Str("out"), tuple.Str(edge), from, to, id)},
	}
	if d.Bidirectional {
		out = append(out, Entry{Key: tuple.Pack(tuple.Str("in"), tuple.Str(edge), to, from, id)})
	}
	return out, nil
}

func fullTextEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	tokens := d.Tokenize(rec)
	freq := make(map[string]int64, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	out := make([]Entry, 0, len(freq))
	for token, count := range freq {
		out = append(out, Entry{
			Key:   tuple.Pack(tuple.Str(token), id),
			Value: tuple.Pack(tuple.Int(count)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return tuple.Compare(out[i].Key, out[j].Key) < 0 })
	return out, nil
}

func rankEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	score, ok := d.Score(rec)
	if !ok {
		return nil, nil
	}
	return []Entry{{Key: tuple.Pack(score, id)}}, nil
}

func spatialEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	lat, lon, ok := d.Location(rec)
	if !ok {
		return nil, nil
	}
	morton := MortonEncode(lat, lon)
	return []Entry{{Key: tuple.Pack(tuple.Int(int64(morton)), id)}}, nil
}

func permutedEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	out := make([]Entry, 0, len(d.Permutations))
	for _, perm := range d.Permutations {
		elems := make([]tuple.Element, 0, len(perm)+1)
		skip := false
		for _, f := range perm {
			v, ok := d.FieldValue(rec, f)
			if !ok {
				skip = true
				break
			}
			elems = append(elems, v)
		}
		if skip {
			continue
		}
		elems = append(elems, id)
		out = append(out, Entry{Key: tuple.Pack(elems...)})
	}
	return out, nil
}

func vectorEntries(d *Descriptor, id tuple.Element, rec entity.Record) ([]Entry, error) {
	vec, ok := d.Vector(rec)
	if !ok {
		return nil, nil
	}
	buf := make([]byte, 8*len(vec))
	for i, f := range vec {
		bits := math.Float64bits(f)
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(bits >> (56 - 8*b))
		}
	}
	return []Entry{{Key: tuple.Pack(id), Value: buf}}, nil
}
