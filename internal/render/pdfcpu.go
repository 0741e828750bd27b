package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/tallpine/kioskdocs/internal/mapping"
)

// Button field flags (PDF 32000-1, 12.7.4.2).
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
)

const maxFieldDepth = 32

var configDirOnce sync.Once

// PDFCPUEngine implements Engine with pdfcpu.
type PDFCPUEngine struct {
	// FontName must be one of the standard 14 fonts so nothing is embedded
	// from disk at render time.
	FontName string
}

// NewPDFCPUEngine returns an engine that stamps in Helvetica. pdfcpu's user
// config directory is disabled because function instances have a read-only home.
func NewPDFCPUEngine() *PDFCPUEngine {
	configDirOnce.Do(api.DisableConfigDir)
	return &PDFCPUEngine{FontName: "Helvetica"}
}

func (e *PDFCPUEngine) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func (e *PDFCPUEngine) read(pdf []byte) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdf), e.conf())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// Inspect parses pdf and walks the AcroForm field tree.
func (e *PDFCPUEngine) Inspect(pdf []byte) (FieldInventory, error) {
	ctx, err := e.read(pdf)
	if err != nil {
		return FieldInventory{}, err
	}
	inv := FieldInventory{PageCount: ctx.PageCount, Fields: map[string]Field{}}

	root, err := ctx.Catalog()
	if err != nil {
		return FieldInventory{}, fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := root.Find("AcroForm")
	if !found {
		return inv, nil
	}
	acroForm, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return FieldInventory{}, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroForm == nil {
		return inv, nil
	}
	fieldsObj, found := acroForm.Find("Fields")
	if !found {
		return inv, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return FieldInventory{}, fmt.Errorf("failed to dereference Fields array: %w", err)
	}
	for _, obj := range fields {
		e.collectField(ctx, obj, fieldAttrs{}, inv.Fields, 0)
	}
	return inv, nil
}

// fieldAttrs are the inheritable attributes carried down the field tree.
type fieldAttrs struct {
	name  string
	ft    string
	flags int
}

func (e *PDFCPUEngine) collectField(ctx *model.Context, obj types.Object, parent fieldAttrs, out map[string]Field, depth int) {
	if depth > maxFieldDepth {
		return
	}
	d, err := ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return
	}

	attrs := parent
	if o, found := d.Find("T"); found {
		if partial, err := ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil && partial != "" {
			if attrs.name == "" {
				attrs.name = partial
			} else {
				attrs.name = attrs.name + "." + partial
			}
		}
	}
	if o, found := d.Find("FT"); found {
		if ft, err := ctx.DereferenceName(o, model.V10, nil); err == nil {
			attrs.ft = string(ft)
		}
	}
	if o, found := d.Find("Ff"); found {
		if ff, err := ctx.DereferenceInteger(o); err == nil && ff != nil {
			attrs.flags = int(*ff)
		}
	}

	// Kids are either child fields (they carry a T) or widget annotations.
	var widgets []types.Dict
	hasChildFields := false
	if kidsObj, found := d.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				kd, err := ctx.DereferenceDict(kid)
				if err != nil || kd == nil {
					continue
				}
				if _, isField := kd.Find("T"); isField {
					hasChildFields = true
					e.collectField(ctx, kid, attrs, out, depth+1)
					continue
				}
				widgets = append(widgets, kd)
			}
		}
	}
	if hasChildFields || attrs.name == "" {
		return
	}

	field := Field{Name: attrs.name, Kind: fieldKind(attrs.ft, attrs.flags)}
	switch field.Kind {
	case KindRadio, KindCheckbox:
		field.Options = onStates(ctx, append(widgets, d))
	case KindChoice:
		field.Options = choiceOptions(ctx, d)
	}
	out[field.Name] = field
}

func fieldKind(ft string, flags int) FieldKind {
	switch ft {
	case "Tx":
		return KindText
	case "Ch":
		return KindChoice
	case "Sig":
		return KindSignature
	case "Btn":
		switch {
		case flags&flagRadio != 0:
			return KindRadio
		case flags&flagPushbutton != 0:
			return KindButton
		}
		return KindCheckbox
	}
	return KindUnknown
}

// onStates collects the appearance state names other than Off across widgets.
// For a radio group these are the option values.
func onStates(ctx *model.Context, widgets []types.Dict) []string {
	seen := map[string]bool{}
	for _, w := range widgets {
		apObj, found := w.Find("AP")
		if !found {
			continue
		}
		ap, err := ctx.DereferenceDict(apObj)
		if err != nil || ap == nil {
			continue
		}
		nObj, found := ap.Find("N")
		if !found {
			continue
		}
		n, err := ctx.DereferenceDict(nObj)
		if err != nil || n == nil {
			continue
		}
		for state := range n {
			if state != "Off" {
				seen[state] = true
			}
		}
	}
	opts := make([]string, 0, len(seen))
	for s := range seen {
		opts = append(opts, s)
	}
	sort.Strings(opts)
	return opts
}

func choiceOptions(ctx *model.Context, d types.Dict) []string {
	optObj, found := d.Find("Opt")
	if !found {
		return nil
	}
	arr, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}
	var opts []string
	for _, opt := range arr {
		if s, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			opts = append(opts, s)
			continue
		}
		// [export value, display value] pairs are matched on the export value.
		if pair, err := ctx.DereferenceArray(opt); err == nil && len(pair) >= 1 {
			if s, err := ctx.DereferenceStringOrHexLiteral(pair[0], model.V10, nil); err == nil {
				opts = append(opts, s)
			}
		}
	}
	return opts
}

// The JSON shapes below mirror pdfcpu's form import format. Fields are
// matched by their fully qualified name.
type (
	jsonTextField struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	jsonCheckBox struct {
		Name  string `json:"name"`
		Value bool   `json:"value"`
	}
	jsonListBox struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}
	jsonForm struct {
		TextFields        []jsonTextField `json:"textfield,omitempty"`
		CheckBoxes        []jsonCheckBox  `json:"checkbox,omitempty"`
		RadioButtonGroups []jsonTextField `json:"radiobuttongroup,omitempty"`
		ComboBoxes        []jsonTextField `json:"combobox,omitempty"`
		ListBoxes         []jsonListBox   `json:"listbox,omitempty"`
	}
	jsonFormGroup struct {
		Forms []jsonForm `json:"forms"`
	}
)

func formJSON(values FormValues) ([]byte, error) {
	var f jsonForm
	for _, name := range sortedKeys(values.Text) {
		f.TextFields = append(f.TextFields, jsonTextField{Name: name, Value: values.Text[name]})
	}
	for _, name := range sortedKeys(values.Checks) {
		f.CheckBoxes = append(f.CheckBoxes, jsonCheckBox{Name: name, Value: values.Checks[name]})
	}
	for _, name := range sortedKeys(values.Radios) {
		f.RadioButtonGroups = append(f.RadioButtonGroups, jsonTextField{Name: name, Value: values.Radios[name]})
	}
	// A Ch field is either a combo box or a list box; pdfcpu looks values up
	// by field type, so the value is offered as both.
	for _, name := range sortedKeys(values.Choices) {
		v := values.Choices[name]
		f.ComboBoxes = append(f.ComboBoxes, jsonTextField{Name: name, Value: v})
		f.ListBoxes = append(f.ListBoxes, jsonListBox{Name: name, Values: []string{v}})
	}
	return json.Marshal(jsonFormGroup{Forms: []jsonForm{f}})
}

// FillForm sets AcroForm values and regenerates their appearances.
func (e *PDFCPUEngine) FillForm(pdf []byte, values FormValues) ([]byte, error) {
	data, err := formJSON(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form values: %w", err)
	}
	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(pdf), bytes.NewReader(data), &out, e.conf()); err != nil {
		return nil, fmt.Errorf("pdfcpu fill form: %w", err)
	}
	return out.Bytes(), nil
}

func (e *PDFCPUEngine) stampDescription(d mapping.Draw) string {
	return fmt.Sprintf(
		"fontname:%s, points:%g, position:bl, offset:%g %g, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
		e.FontName, d.Size(), d.X, d.Y,
	)
}

// Stamp draws each entry as an on-top text stamp in black.
func (e *PDFCPUEngine) Stamp(pdf []byte, draws []mapping.Draw) ([]byte, error) {
	byPage := map[int][]*model.Watermark{}
	for _, d := range draws {
		wm, err := api.TextWatermark(d.Text, e.stampDescription(d), true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build stamp for %s: %w", d.ID, err)
		}
		byPage[d.Page+1] = append(byPage[d.Page+1], wm)
	}
	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(pdf), &out, byPage, e.conf()); err != nil {
		return nil, fmt.Errorf("pdfcpu add stamps: %w", err)
	}
	return out.Bytes(), nil
}

// Overlay appends a content stream of red guide boxes to each affected page,
// and a blue crosshair at the origin of the first page when requested. The
// page's existing content is wrapped in q/Q so its graphics state cannot leak
// into the overlay.
func (e *PDFCPUEngine) Overlay(pdf []byte, boxes []Box, crosshair bool) ([]byte, error) {
	ctx, err := e.read(pdf)
	if err != nil {
		return nil, err
	}

	byPage := map[int][]Box{}
	for _, b := range boxes {
		if b.Page >= 0 && b.Page < ctx.PageCount {
			byPage[b.Page+1] = append(byPage[b.Page+1], b)
		}
	}
	if crosshair && ctx.PageCount > 0 {
		if _, ok := byPage[1]; !ok {
			byPage[1] = nil
		}
	}

	for pageNr, pageBoxes := range byPage {
		if err := appendOverlay(ctx, pageNr, pageBoxes, crosshair && pageNr == 1); err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return out.Bytes(), nil
}

func appendOverlay(ctx *model.Context, pageNr int, boxes []Box, crosshair bool) error {
	page, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return fmt.Errorf("failed to get page dict: %w", err)
	}
	if page == nil {
		return fmt.Errorf("page dict missing")
	}

	var existing types.Array
	if obj, found := page.Find("Contents"); found {
		switch o := obj.(type) {
		case types.IndirectRef:
			deref, err := ctx.Dereference(o)
			if err != nil {
				return fmt.Errorf("failed to dereference contents: %w", err)
			}
			if arr, ok := deref.(types.Array); ok {
				existing = arr
			} else {
				existing = types.Array{o}
			}
		case types.Array:
			existing = o
		}
	}

	var contents types.Array
	if len(existing) > 0 {
		open, err := newContentStream(ctx, []byte("q\n"))
		if err != nil {
			return err
		}
		contents = append(types.Array{*open}, existing...)
	}
	overlay, err := newContentStream(ctx, overlayContent(boxes, crosshair, len(existing) > 0))
	if err != nil {
		return err
	}
	contents = append(contents, *overlay)
	page.Update("Contents", contents)
	return nil
}

func newContentStream(ctx *model.Context, content []byte) (*types.IndirectRef, error) {
	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, fmt.Errorf("failed to create content stream: %w", err)
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode content stream: %w", err)
	}
	ref, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to register content stream: %w", err)
	}
	return ref, nil
}

// overlayContent renders boxes as stroked rectangles. Only outlines are
// drawn so the template and stamped text stay visible underneath.
func overlayContent(boxes []Box, crosshair, closeWrapped bool) []byte {
	var b strings.Builder
	if closeWrapped {
		b.WriteString("Q\n")
	}
	b.WriteString("q\n0.5 w\n1 0 0 RG\n")
	for _, box := range boxes {
		fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re S\n", box.X, box.Y, box.Width, box.Height)
	}
	if crosshair {
		b.WriteString("0 0 1 RG\n0 0 m 30 0 l S\n0 0 m 0 30 l S\n")
	}
	b.WriteString("Q\n")
	return []byte(b.String())
}
