// Package mapping turns a job into renderer input for the two compliance
// documents. Every function here is pure apart from the injected clock and
// never returns an error: missing data produces blank fields.
package mapping

import (
	"time"

	"github.com/tallpine/kioskdocs/internal/models"
)

// DefaultFontSize applies to any draw that does not set its own size.
const DefaultFontSize = 10.0

// NamedFields is the population map for templates with named form fields.
type NamedFields struct {
	Text   map[string]string
	Bool   map[string]bool
	Choice map[string]string
}

func newNamedFields() NamedFields {
	return NamedFields{
		Text:   map[string]string{},
		Bool:   map[string]bool{},
		Choice: map[string]string{},
	}
}

// Len is the total number of entries across all three maps.
func (n NamedFields) Len() int {
	return len(n.Text) + len(n.Bool) + len(n.Choice)
}

// Draw is one piece of text placed at an absolute position. The origin is the
// bottom-left corner of the page and Page is zero-based.
type Draw struct {
	ID       string
	Text     string
	X        float64
	Y        float64
	FontSize float64
	Page     int
}

// Size returns the font size, falling back to DefaultFontSize.
func (d Draw) Size() float64 {
	if d.FontSize <= 0 {
		return DefaultFontSize
	}
	return d.FontSize
}

// Business is the receiving business printed on both documents.
type Business struct {
	Name    string `yaml:"name"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

// DefaultBusiness is used when neither config nor the job overrides it.
var DefaultBusiness = Business{
	Name:    "Tall Pine Taxidermy and Deer Processing",
	Phone:   "903-951-3548",
	Address: "4982 TX-19 S, Sulphur Springs, TX 75482",
}

// Mapper holds the few inputs that are not part of the job itself.
type Mapper struct {
	Business Business
	Now      func() time.Time
	Layouts  Layouts
}

// New returns a Mapper using the wall clock. Empty business fields fall back
// to DefaultBusiness.
func New(business Business, layouts Layouts) *Mapper {
	if business.Name == "" {
		business.Name = DefaultBusiness.Name
	}
	if business.Phone == "" {
		business.Phone = DefaultBusiness.Phone
	}
	if business.Address == "" {
		business.Address = DefaultBusiness.Address
	}
	return &Mapper{Business: business, Now: time.Now, Layouts: layouts}
}

func (m *Mapper) today() string {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	t := now()
	return formatDate(&t)
}

// Named returns the named-field mapping for a document type, with any
// configured template aliases applied.
func (m *Mapper) Named(job *models.Job, t models.DocumentType) NamedFields {
	var fields NamedFields
	switch t {
	case models.DocProofOfSex:
		fields = m.ProofOfSexNamed(job)
	case models.DocResource:
		fields = m.ResourceNamed(job)
	default:
		return newNamedFields()
	}
	return m.Layouts.For(t).Alias(fields)
}

// Coordinates returns the draw list for a document type with configured
// position overrides applied.
func (m *Mapper) Coordinates(job *models.Job, t models.DocumentType) []Draw {
	var draws []Draw
	switch t {
	case models.DocProofOfSex:
		draws = m.ProofOfSexCoordinates(job)
	case models.DocResource:
		draws = m.ResourceCoordinates(job)
	default:
		return nil
	}
	return m.Layouts.For(t).Apply(draws)
}

// drawList keeps blank entries so calibration still shows where they would
// print; the renderer skips stamping empty text.
type drawList []Draw

func (l *drawList) add(id, text string, x, y, size float64) {
	*l = append(*l, Draw{ID: id, Text: text, X: x, Y: y, FontSize: size})
}
