package services

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/render"
)

// InspectionReport describes an uploaded template.
type InspectionReport struct {
	DocType   models.DocumentType `json:"docType"`
	Key       string              `json:"key"`
	PageCount int                 `json:"pageCount"`
	Strategy  string              `json:"strategy"`
	Fields    []string            `json:"fields"`
	// Unmatched are names the mapper writes that the template does not have.
	Unmatched []string `json:"unmatched,omitempty"`
}

// TemplateInspector checks templates as they are uploaded so a bad template
// is caught before a customer is waiting on it.
type TemplateInspector struct {
	bucket    string
	store     ArtifactStore
	renderer  *render.Renderer
	mapper    *mapping.Mapper
	templates map[models.DocumentType]TemplateConfig
	logger    *slog.Logger
}

func NewTemplateInspector(
	bucket string,
	store ArtifactStore,
	renderer *render.Renderer,
	mapper *mapping.Mapper,
	templates map[models.DocumentType]TemplateConfig,
	logger *slog.Logger,
) *TemplateInspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateInspector{
		bucket:    bucket,
		store:     store,
		renderer:  renderer,
		mapper:    mapper,
		templates: templates,
		logger:    logger,
	}
}

// Process handles one object event. Objects that are not configured
// templates are ignored. A template that fails validation returns the error
// so the invocation is marked failed.
func (f *TemplateInspector) Process(ctx context.Context, e models.GCSEvent) (*InspectionReport, error) {
	logCtx := f.logger.With("bucket", e.Bucket, "object", e.Name)

	if e.Bucket != f.bucket {
		logCtx.Info("Ignoring object outside the templates bucket.")
		return nil, nil
	}
	docType, tc, ok := f.templateFor(e.Name)
	if !ok {
		logCtx.Info("Object is not a configured template; ignoring.")
		return nil, nil
	}
	logCtx = logCtx.With("docType", docType)

	data, err := f.store.FetchTemplate(ctx, e.Name)
	if err != nil {
		logCtx.Error("Failed to download template.", "error", err)
		return nil, err
	}
	inv, err := f.renderer.Inspect(data)
	if err != nil {
		logCtx.Error("Uploaded template is not a usable PDF.", "error", err)
		return nil, err
	}

	named := f.expectedFields(docType)
	strategy := render.SelectStrategy(tc.Mode, inv, named, nil)
	report := &InspectionReport{
		DocType:   docType,
		Key:       e.Name,
		PageCount: inv.PageCount,
		Strategy:  strategy.Name(),
		Fields:    inv.Names(),
	}
	if strategy.Name() == string(render.ModeNamed) {
		report.Unmatched = unmatchedNames(named, inv)
	}

	if len(report.Unmatched) > 0 {
		logCtx.Warn("Template is missing mapped fields; those values will not print.",
			"unmatched", report.Unmatched, "fieldCount", len(report.Fields))
	} else {
		logCtx.Info("Template inspected.", "strategy", report.Strategy, "pageCount", report.PageCount, "fieldCount", len(report.Fields))
	}
	return report, nil
}

func (f *TemplateInspector) templateFor(key string) (models.DocumentType, TemplateConfig, bool) {
	for _, t := range models.DocumentTypes {
		if tc, ok := f.templates[t]; ok && tc.Key == key {
			return t, tc, true
		}
	}
	return "", TemplateConfig{}, false
}

func unmatchedNames(named mapping.NamedFields, inv render.FieldInventory) []string {
	var out []string
	check := func(name string) {
		if _, ok := inv.Lookup(name); !ok {
			out = append(out, name)
		}
	}
	for name := range named.Text {
		check(name)
	}
	for name := range named.Bool {
		check(name)
	}
	for name := range named.Choice {
		check(name)
	}
	slices.Sort(out)
	return out
}

// sampleJobs fill every optional field so the mapper emits its full set of
// names. Antler points only map for bucks and the beard group only for
// gobblers, so both are needed.
func sampleJobs() []*models.Job {
	points, qty := 8, 1
	beard := true
	hang, yield := 150.0, 90.0
	killed := time.Date(2024, time.November, 9, 0, 0, 0, 0, time.UTC)
	text := "sample"
	deer := &models.Job{
		ID:             "inspection",
		InvoiceNo:      "000000-0000",
		Version:        1,
		Species:        models.SpeciesDeer,
		Sex:            models.SexMale,
		AntlerPoints:   &points,
		DateKilled:     &killed,
		LicenseNo:      &text,
		County:         &text,
		Quantity:       &qty,
		ProcessingType: models.ProcessingStandard,
		Instructions:   &text,
		HangWeight:     &hang,
		YieldWeight:    &yield,
		Customer: &models.Customer{
			Name: text, Phone: text, Email: &text,
			AddressLine1: &text, City: &text, State: &text, Zip: &text,
		},
	}
	turkey := *deer
	turkey.Species = models.SpeciesTurkey
	turkey.AntlerPoints = nil
	turkey.BeardAttached = &beard
	return []*models.Job{deer, &turkey}
}

// expectedFields merges the named mapping of every sample job.
func (f *TemplateInspector) expectedFields(t models.DocumentType) mapping.NamedFields {
	merged := mapping.NamedFields{Text: map[string]string{}, Bool: map[string]bool{}, Choice: map[string]string{}}
	for _, job := range sampleJobs() {
		named := f.mapper.Named(job, t)
		maps.Copy(merged.Text, named.Text)
		maps.Copy(merged.Bool, named.Bool)
		maps.Copy(merged.Choice, named.Choice)
	}
	return merged
}
