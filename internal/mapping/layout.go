package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tallpine/kioskdocs/internal/models"
)

// FieldPosition overrides part of a single draw. Nil members keep the table value.
type FieldPosition struct {
	X      *float64 `yaml:"x"`
	Y      *float64 `yaml:"y"`
	Size   *float64 `yaml:"size"`
	Page   *int     `yaml:"page"`
	Hidden bool     `yaml:"hidden"`
}

// Layout is the calibration for one template. Offsets shift every draw, which
// is usually all a re-scanned template needs.
type Layout struct {
	OffsetX float64                  `yaml:"offsetX"`
	OffsetY float64                  `yaml:"offsetY"`
	Fields  map[string]FieldPosition `yaml:"fields"`
	// Aliases renames canonical field names to what a revised template uses.
	Aliases map[string]string `yaml:"aliases"`
}

// Layouts is keyed by document type.
type Layouts map[models.DocumentType]Layout

type layoutFile struct {
	Documents map[string]Layout `yaml:"documents"`
}

// LoadLayouts reads a YAML calibration file. An empty path yields no overrides.
func LoadLayouts(path string) (Layouts, error) {
	if path == "" {
		return Layouts{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file %s: %w", path, err)
	}
	return ParseLayouts(data)
}

// ParseLayouts decodes calibration YAML. Document keys may be either the type
// ("PWD-535") or its label ("pwd535").
func ParseLayouts(data []byte) (Layouts, error) {
	var file layoutFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse layout yaml: %w", err)
	}
	out := Layouts{}
	for key, layout := range file.Documents {
		t, err := models.ParseDocumentType(key)
		if err != nil {
			return nil, fmt.Errorf("layout file: %w", err)
		}
		out[t] = layout
	}
	return out, nil
}

// For returns the layout for t, or an empty one.
func (ls Layouts) For(t models.DocumentType) Layout {
	if ls == nil {
		return Layout{}
	}
	return ls[t]
}

// Apply returns a new draw list with offsets and per-field overrides applied.
func (l Layout) Apply(draws []Draw) []Draw {
	out := make([]Draw, 0, len(draws))
	for _, d := range draws {
		pos, ok := l.Fields[d.ID]
		if ok && pos.Hidden {
			continue
		}
		if ok {
			if pos.X != nil {
				d.X = *pos.X
			}
			if pos.Y != nil {
				d.Y = *pos.Y
			}
			if pos.Size != nil {
				d.FontSize = *pos.Size
			}
			if pos.Page != nil {
				d.Page = *pos.Page
			}
		}
		d.X += l.OffsetX
		d.Y += l.OffsetY
		out = append(out, d)
	}
	return out
}

// Alias renames keys in all three maps according to l.Aliases.
func (l Layout) Alias(f NamedFields) NamedFields {
	if len(l.Aliases) == 0 {
		return f
	}
	out := newNamedFields()
	for k, v := range f.Text {
		out.Text[l.name(k)] = v
	}
	for k, v := range f.Bool {
		out.Bool[l.name(k)] = v
	}
	for k, v := range f.Choice {
		out.Choice[l.name(k)] = v
	}
	return out
}

func (l Layout) name(canonical string) string {
	if alias, ok := l.Aliases[canonical]; ok && alias != "" {
		return alias
	}
	return canonical
}
