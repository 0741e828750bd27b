package render

import "fmt"

// MissReason says why a mapped value could not be written.
type MissReason string

const (
	MissNotFound     MissReason = "not_found"
	MissWrongKind    MissReason = "wrong_kind"
	MissNoSuchOption MissReason = "no_such_option"
	MissNoSuchPage   MissReason = "no_such_page"
)

// FieldMiss is a non-fatal mismatch between a mapping and the template.
type FieldMiss struct {
	Field  string     `json:"field"`
	Reason MissReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

func (m FieldMiss) String() string {
	if m.Detail == "" {
		return fmt.Sprintf("%s: %s", m.Field, m.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", m.Field, m.Reason, m.Detail)
}

// Diagnostics collects misses during one render. A known-good template
// renders with zero misses; many misses usually mean the template changed.
type Diagnostics struct {
	Strategy string      `json:"strategy"`
	Written  int         `json:"written"`
	Misses   []FieldMiss `json:"misses,omitempty"`
}

func (d *Diagnostics) miss(field string, reason MissReason, detail string) {
	d.Misses = append(d.Misses, FieldMiss{Field: field, Reason: reason, Detail: detail})
}

// Count is the number of misses.
func (d Diagnostics) Count() int { return len(d.Misses) }
