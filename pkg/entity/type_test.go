package entity

import (
	"testing"

	"github.com/cuemby/estore/pkg/query"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetRecord struct {
	id   string
	name string
}

func (w widgetRecord) ID() tuple.Element               { return tuple.Str(w.id) }
func (w widgetRecord) Type() *Type                     { return widgetType }
func (w widgetRecord) FieldValue(f string) query.FieldValue {
	switch f {
	case "name":
		return query.String(w.name)
	default:
		return query.Null()
	}
}

var widgetType = &Type{
	Name:          "widget_test_type",
	Fields:        []string{"name"},
	DirectoryPath: []string{"widgets"},
}

func TestRegisterAndLookup(t *testing.T) {
	Register(widgetType)
	got := Lookup("widget_test_type")
	require.NotNil(t, got)
	assert.Equal(t, widgetType, got)
	assert.NotZero(t, got.TypeCode)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	dup := &Type{Name: "widget_test_type_dup", DirectoryPath: []string{"x"}}
	Register(dup)
	assert.Panics(t, func() {
		Register(&Type{Name: "widget_test_type_dup"})
	})
}

func TestByTypeCode(t *testing.T) {
	t2 := &Type{Name: "widget_test_type_2", DirectoryPath: []string{"y"}}
	Register(t2)
	found := ByTypeCode(t2.TypeCode)
	require.NotNil(t, found)
	assert.Equal(t, "widget_test_type_2", found.Name)
}

func TestHasPolymorphicMirror(t *testing.T) {
	same := &Type{DirectoryPath: []string{"a"}, PolymorphicPath: []string{"a"}}
	diff := &Type{DirectoryPath: []string{"a"}, PolymorphicPath: []string{"b"}}
	none := &Type{DirectoryPath: []string{"a"}}
	assert.False(t, same.HasPolymorphicMirror())
	assert.True(t, diff.HasPolymorphicMirror())
	assert.False(t, none.HasPolymorphicMirror())
}

func TestIndexStateString(t *testing.T) {
	assert.Equal(t, "disabled", StateDisabled.String())
	assert.Equal(t, "writeOnly", StateWriteOnly.String())
	assert.Equal(t, "readable", StateReadable.String())
}
