// Package estoreerr defines the tagged error types shared across estore's
// storage, index, and transaction packages. It is deliberately leaf-level —
// it imports nothing from the rest of the module — so that pkg/kv,
// pkg/itemstore, pkg/index, and pkg/txn can all depend on it without
// creating an import cycle back through the top-level pkg/estore bootstrap
// package.
package estoreerr

import "fmt"

// CorruptValue indicates a stored item's envelope or chunk layout could
// not be parsed back into a record.
type CorruptValue struct {
	EntityType string
	ID         string
	Reason     string
}

func (e *CorruptValue) Error() string {
	return fmt.Sprintf("estore: corrupt value for %s/%s: %s", e.EntityType, e.ID, e.Reason)
}

// InvalidTransition indicates an index state-machine transition was
// requested that the current state does not permit.
type InvalidTransition struct {
	IndexName string
	From      string
	To        string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("estore: invalid index transition for %q: %s -> %s", e.IndexName, e.From, e.To)
}

// CommitCheckFailure describes a single failed commit check.
type CommitCheckFailure struct {
	Name   string
	Reason string
}

func (e *CommitCheckFailure) Error() string {
	return fmt.Sprintf("estore: commit check %q failed: %s", e.Name, e.Reason)
}

// CommitCheckFailed is returned when exactly one registered commit check
// rejects a transaction.
type CommitCheckFailed struct {
	Failure CommitCheckFailure
}

func (e *CommitCheckFailed) Error() string {
	return fmt.Sprintf("estore: commit check failed: %s", e.Failure.Error())
}

// MultipleCommitCheckFailures is returned when more than one registered
// commit check rejects a transaction.
type MultipleCommitCheckFailures struct {
	Failures []CommitCheckFailure
}

func (e *MultipleCommitCheckFailures) Error() string {
	return fmt.Sprintf("estore: %d commit checks failed", len(e.Failures))
}

// WriteNotAllowed indicates a field-security write check rejected a
// mutation: every changed field auth may not write, not just the first.
type WriteNotAllowed struct {
	EntityType string
	Fields     []string
}

func (e *WriteNotAllowed) Error() string {
	return fmt.Sprintf("estore: write not allowed on %s fields %v", e.EntityType, e.Fields)
}

// ContinuationErrorKind enumerates why a continuation token could not be
// resumed.
type ContinuationErrorKind int

const (
	// ContinuationMalformed means the token failed to base64-decode or
	// deserialize.
	ContinuationMalformed ContinuationErrorKind = iota
	// ContinuationPlanMismatch means the token's plan fingerprint does not
	// match the query being resumed.
	ContinuationPlanMismatch
	// ContinuationExpired means the token references a version the store
	// can no longer serve (e.g. garbage-collected history).
	ContinuationExpired
)

func (k ContinuationErrorKind) String() string {
	switch k {
	case ContinuationMalformed:
		return "malformed"
	case ContinuationPlanMismatch:
		return "plan_mismatch"
	case ContinuationExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ContinuationError is returned when a cursor continuation token cannot be
// resumed.
type ContinuationError struct {
	Kind   ContinuationErrorKind
	Detail string
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("estore: continuation error (%s): %s", e.Kind, e.Detail)
}

// Timeout indicates an operation exceeded its deadline before completing.
type Timeout struct {
	Operation string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("estore: %s timed out", e.Operation)
}

// ConcurrentSave indicates a save was rejected because another save for
// the same exclusive resource was already in flight.
type ConcurrentSave struct {
	Resource string
}

func (e *ConcurrentSave) Error() string {
	return fmt.Sprintf("estore: concurrent save rejected for %q", e.Resource)
}

// TupleConversionError indicates a field value could not be converted to
// or from its tuple.Element representation.
type TupleConversionError struct {
	Field  string
	Reason string
}

func (e *TupleConversionError) Error() string {
	return fmt.Sprintf("estore: tuple conversion failed for field %q: %s", e.Field, e.Reason)
}

// NotFound indicates no record exists for the given entity type and id.
type NotFound struct {
	EntityType string
	ID         string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("estore: %s/%s not found", e.EntityType, e.ID)
}

// UniquenessViolation indicates a unique index rejected a duplicate key.
type UniquenessViolation struct {
	IndexName string
	Key       string
}

func (e *UniquenessViolation) Error() string {
	return fmt.Sprintf("estore: uniqueness violation on index %q for key %s", e.IndexName, e.Key)
}
