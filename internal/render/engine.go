package render

import (
	"sort"

	"github.com/tallpine/kioskdocs/internal/mapping"
)

// FieldKind is the form-field type as declared by the template.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindCheckbox  FieldKind = "checkbox"
	KindRadio     FieldKind = "radio"
	KindChoice    FieldKind = "choice"
	KindButton    FieldKind = "button"
	KindSignature FieldKind = "signature"
	KindUnknown   FieldKind = "unknown"
)

// Field is one named AcroForm field.
type Field struct {
	Name    string    `json:"name"`
	Kind    FieldKind `json:"kind"`
	Options []string  `json:"options,omitempty"`
}

// FieldInventory describes a parsed template.
type FieldInventory struct {
	PageCount int
	Fields    map[string]Field
}

// HasNamedFields reports whether the template exposes any fillable fields.
func (inv FieldInventory) HasNamedFields() bool {
	for _, f := range inv.Fields {
		if f.Kind != KindButton && f.Kind != KindSignature && f.Kind != KindUnknown {
			return true
		}
	}
	return false
}

// Lookup returns the field with the given fully qualified name.
func (inv FieldInventory) Lookup(name string) (Field, bool) {
	f, ok := inv.Fields[name]
	return f, ok
}

// Names returns all field names, sorted.
func (inv FieldInventory) Names() []string {
	names := make([]string, 0, len(inv.Fields))
	for n := range inv.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Box is an outlined calibration rectangle.
type Box struct {
	Page   int
	X, Y   float64
	Width  float64
	Height float64
}

// Engine is the PDF capability the renderer depends on. Page numbers in
// draws and boxes are zero-based.
type Engine interface {
	Inspect(pdf []byte) (FieldInventory, error)
	FillForm(pdf []byte, values FormValues) ([]byte, error)
	Stamp(pdf []byte, draws []mapping.Draw) ([]byte, error)
	Overlay(pdf []byte, boxes []Box, crosshair bool) ([]byte, error)
}

// FormValues is the subset of a named mapping that the template can accept,
// split by the kind of field each value targets.
type FormValues struct {
	Text    map[string]string
	Checks  map[string]bool
	Radios  map[string]string
	Choices map[string]string
}

// Len is the number of values to be written.
func (v FormValues) Len() int {
	return len(v.Text) + len(v.Checks) + len(v.Radios) + len(v.Choices)
}
