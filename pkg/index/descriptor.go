/*
Package index implements C3 (the twelve index kinds' uniform maintenance
contract), C4 (maintenance dispatch), and C5 (the index state machine).

Each kind is configured by a Descriptor — a static, per-index value built
once at registration time, mirroring entity.Type's "no reflection in the
hot path" design: every kind-specific behavior (group keys, tokenizers,
vector extraction) is a plain closure supplied by the caller, never
discovered by inspecting the record at runtime.
*/
package index

import (
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/tuple"
)

// GraphMode distinguishes the two "graph" kind variants sharing the
// single graph kind tag.
type GraphMode int

const (
	GraphAdjacency GraphMode = iota
	GraphTriple
)

// Descriptor extends entity.IndexDescriptor with the kind-specific
// closures C3 requires. Exactly the fields relevant to Kind need be
// set; the rest are ignored by Entries/Apply.
type Descriptor struct {
	entity.IndexDescriptor

	// Count/Sum
	GroupKey func(rec entity.Record) (tuple.Element, error)
	Amount   func(rec entity.Record) (int64, error)

	// Graph
	GraphMode     GraphMode
	Bidirectional bool
	From, To      func(rec entity.Record) (tuple.Element, bool)
	Edge          func(rec entity.Record) (string, bool)
	Subject       func(rec entity.Record) (tuple.Element, bool)
	Predicate     func(rec entity.Record) (string, bool)
	Object        func(rec entity.Record) (tuple.Element, bool)

	// Full-text
	Tokenize func(rec entity.Record) []string

	// Min/Max/Rank
	Value func(rec entity.Record) (tuple.Element, bool)
	Score func(rec entity.Record) (tuple.Element, bool)

	// Spatial
	Location func(rec entity.Record) (lat, lon float64, ok bool)

	// Permuted
	Permutations [][]string
	FieldValue   func(rec entity.Record, field string) (tuple.Element, bool)

	// Vector
	Vector func(rec entity.Record) ([]float64, bool)

	// Version
	RetentionKeepLastN int
}

// Entry is one (subkey, value) pair a kind's Entries produces, where
// subkey is packed relative to indexes/<descriptor.Name>. ValuePrefix,
// when set, is the subkey with the trailing id element stripped — used
// by unique-index checking to detect two different ids mapped to the
// same value tuple (I5), since Key itself always ends in the id and so
// never collides across records by construction.
type Entry struct {
	Key         []byte
	Value       []byte
	ValuePrefix []byte
}
