package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tallpine/kioskdocs/internal/mapping"
)

// Mode is the configured rendering capability for a template.
type Mode string

const (
	// ModeAuto uses named fields when the template has any, coordinates otherwise.
	ModeAuto       Mode = "auto"
	ModeNamed      Mode = "named"
	ModeCoordinate Mode = "coordinate"
)

// ParseMode accepts "", auto, named or coordinate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeNamed:
		return ModeNamed, nil
	case ModeCoordinate:
		return ModeCoordinate, nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

// Strategy applies one kind of mapping output to a template.
type Strategy interface {
	Name() string
	Apply(e Engine, template []byte, inv FieldInventory) ([]byte, Diagnostics, error)
}

// SelectStrategy picks the strategy for a template. Both mappings are passed
// in because which one is usable depends on the template.
func SelectStrategy(mode Mode, inv FieldInventory, named mapping.NamedFields, draws []mapping.Draw) Strategy {
	switch mode {
	case ModeNamed:
		return NamedFieldStrategy{Fields: named}
	case ModeCoordinate:
		return CoordinateStrategy{Draws: draws}
	}
	if inv.HasNamedFields() {
		return NamedFieldStrategy{Fields: named}
	}
	return CoordinateStrategy{Draws: draws}
}

// NamedFieldStrategy sets AcroForm values by name.
type NamedFieldStrategy struct {
	Fields mapping.NamedFields
}

func (NamedFieldStrategy) Name() string { return string(ModeNamed) }

// Apply writes every value the template can take and records the rest as misses.
func (s NamedFieldStrategy) Apply(e Engine, template []byte, inv FieldInventory) ([]byte, Diagnostics, error) {
	values, diag := s.resolve(inv)
	if values.Len() == 0 {
		return template, diag, nil
	}
	out, err := e.FillForm(template, values)
	if err != nil {
		return nil, diag, fmt.Errorf("failed to fill form: %w", err)
	}
	return out, diag, nil
}

// resolve matches the mapping against the template inventory.
func (s NamedFieldStrategy) resolve(inv FieldInventory) (FormValues, Diagnostics) {
	diag := Diagnostics{Strategy: s.Name()}
	values := FormValues{
		Text:    map[string]string{},
		Checks:  map[string]bool{},
		Radios:  map[string]string{},
		Choices: map[string]string{},
	}

	for _, name := range sortedKeys(s.Fields.Text) {
		f, ok := inv.Lookup(name)
		switch {
		case !ok:
			diag.miss(name, MissNotFound, "text")
		case f.Kind != KindText:
			diag.miss(name, MissWrongKind, string(f.Kind))
		default:
			values.Text[name] = s.Fields.Text[name]
		}
	}

	for _, name := range sortedKeys(s.Fields.Bool) {
		f, ok := inv.Lookup(name)
		switch {
		case !ok:
			diag.miss(name, MissNotFound, "checkbox")
		case f.Kind != KindCheckbox:
			diag.miss(name, MissWrongKind, string(f.Kind))
		default:
			values.Checks[name] = s.Fields.Bool[name]
		}
	}

	for _, name := range sortedKeys(s.Fields.Choice) {
		value := s.Fields.Choice[name]
		f, ok := inv.Lookup(name)
		switch {
		case !ok:
			diag.miss(name, MissNotFound, "choice group")
		case f.Kind != KindRadio && f.Kind != KindChoice:
			diag.miss(name, MissWrongKind, string(f.Kind))
		case len(f.Options) > 0 && !slices.Contains(f.Options, value):
			diag.miss(name, MissNoSuchOption, value)
		case f.Kind == KindRadio:
			values.Radios[name] = value
		default:
			values.Choices[name] = value
		}
	}

	diag.Written = values.Len()
	return values, diag
}

// CoordinateStrategy stamps text at fixed positions.
type CoordinateStrategy struct {
	Draws []mapping.Draw
}

func (CoordinateStrategy) Name() string { return string(ModeCoordinate) }

// Apply stamps every non-blank draw that lands on an existing page.
func (s CoordinateStrategy) Apply(e Engine, template []byte, inv FieldInventory) ([]byte, Diagnostics, error) {
	diag := Diagnostics{Strategy: s.Name()}
	var draws []mapping.Draw
	for _, d := range s.Draws {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if d.Page < 0 || (inv.PageCount > 0 && d.Page >= inv.PageCount) {
			diag.miss(d.ID, MissNoSuchPage, fmt.Sprintf("page %d of %d", d.Page+1, inv.PageCount))
			continue
		}
		draws = append(draws, d)
	}
	diag.Written = len(draws)
	if len(draws) == 0 {
		return template, diag, nil
	}
	out, err := e.Stamp(template, draws)
	if err != nil {
		return nil, diag, fmt.Errorf("failed to stamp text: %w", err)
	}
	return out, diag, nil
}

// Calibration box geometry around each draw's nominal position.
const (
	calibrationPad    = 2.0
	calibrationWidth  = 184.0
	calibrationHeight = 18.0
)

// calibrationBoxes returns one box per draw, blank draws included.
func calibrationBoxes(draws []mapping.Draw) []Box {
	boxes := make([]Box, 0, len(draws))
	for _, d := range draws {
		boxes = append(boxes, Box{
			Page:   d.Page,
			X:      d.X - calibrationPad,
			Y:      d.Y - calibrationPad,
			Width:  calibrationWidth,
			Height: calibrationHeight,
		})
	}
	return boxes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
