/*
Package fieldsec implements C9: per-field read/write access control
checked against a type's static entity.FieldSecurity descriptor, never
by reflecting over the record at request time. Concrete AccessLevel
implementations are plain values compared against a caller's Subject;
entity.Type only ever sees the entity.AccessLevel interface, so it has
no dependency on this package's concrete policy types.
*/
package fieldsec

import (
	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estoreerr"
	"github.com/cuemby/estore/pkg/query"
)

// Subject identifies the caller a field-access check runs against.
type Subject struct {
	Authenticated bool
	Roles         []string
}

func (s Subject) hasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Public allows every caller, authenticated or not.
type Public struct{}

func (Public) Allows(auth any) bool { return true }

// AuthenticatedOnly allows any caller with Subject.Authenticated set.
type AuthenticatedOnly struct{}

func (AuthenticatedOnly) Allows(auth any) bool {
	s, ok := auth.(Subject)
	return ok && s.Authenticated
}

// Roles allows callers holding at least one of the named roles.
type Roles struct {
	Names []string
}

func (r Roles) Allows(auth any) bool {
	s, ok := auth.(Subject)
	if !ok {
		return false
	}
	for _, name := range r.Names {
		if s.hasRole(name) {
			return true
		}
	}
	return false
}

// Custom wraps an arbitrary predicate as an entity.AccessLevel, for
// policies that don't fit Public/AuthenticatedOnly/Roles.
type Custom struct {
	Predicate func(auth any) bool
}

func (c Custom) Allows(auth any) bool {
	if c.Predicate == nil {
		return false
	}
	return c.Predicate(auth)
}

func entryFor(t *entity.Type, field string) (entity.FieldSecurityEntry, bool) {
	for _, e := range t.FieldSecurity {
		if e.Field == field {
			return e, true
		}
	}
	return entity.FieldSecurityEntry{}, false
}

// CanRead reports whether auth may read field on t. A field with no
// declared entry is public by default.
func CanRead(t *entity.Type, field string, auth any) bool {
	entry, ok := entryFor(t, field)
	if !ok || entry.ReadAccess == nil {
		return true
	}
	return entry.ReadAccess.Allows(auth)
}

// CanWrite reports whether auth may write field on t. A field with no
// declared entry is writable by default.
func CanWrite(t *entity.Type, field string, auth any) bool {
	entry, ok := entryFor(t, field)
	if !ok || entry.WriteAccess == nil {
		return true
	}
	return entry.WriteAccess.Allows(auth)
}

// UnreadableFields returns every field of t that auth may not read.
func UnreadableFields(t *entity.Type, auth any) []string {
	var out []string
	for _, f := range t.Fields {
		if !CanRead(t, f, auth) {
			out = append(out, f)
		}
	}
	return out
}

// UnwritableFields returns every field of t that auth may not write.
func UnwritableFields(t *entity.Type, auth any) []string {
	var out []string
	for _, f := range t.Fields {
		if !CanWrite(t, f, auth) {
			out = append(out, f)
		}
	}
	return out
}

// ValidateWrite checks auth's write access against the set of fields
// whose value differs between old and newRec — or, when old is nil
// (an insert), every field on newRec whose value is non-default — and
// returns a single *estoreerr.WriteNotAllowed naming every such field
// auth may not write. A field neither old nor newRec declares a
// security entry for, or one left unchanged by this write, is never
// checked: an update that only touches "name" does not also have to
// clear "salary"'s write gate.
func ValidateWrite(t *entity.Type, old, newRec entity.Record, auth any) error {
	var denied []string
	for _, f := range t.Fields {
		newVal := newRec.FieldValue(f)
		var changed bool
		if old == nil {
			changed = !query.IsDefault(newVal)
		} else {
			changed = query.Compare(old.FieldValue(f), newVal) != 0
		}
		if !changed {
			continue
		}
		if !CanWrite(t, f, auth) {
			denied = append(denied, f)
		}
	}
	if len(denied) == 0 {
		return nil
	}
	return &estoreerr.WriteNotAllowed{EntityType: t.Name, Fields: denied}
}

// Mask returns a field name -> value map for rec with every field auth
// may not read replaced by query.Null(), for callers that need a
// redacted projection rather than an outright read rejection.
func Mask(t *entity.Type, rec entity.Record, auth any) map[string]query.FieldValue {
	out := make(map[string]query.FieldValue, len(t.Fields))
	for _, f := range t.Fields {
		if CanRead(t, f, auth) {
			out[f] = rec.FieldValue(f)
		} else {
			out[f] = query.Null()
		}
	}
	return out
}
