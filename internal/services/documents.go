package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tallpine/kioskdocs/internal/artifacts"
	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/records"
	"github.com/tallpine/kioskdocs/internal/render"
)

// ConfigurationError means a document cannot be produced until an operator
// configures or uploads its template. It is not retried.
type ConfigurationError struct {
	DocType models.DocumentType
	Key     string
	EnvVar  string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("no template configured for %s: set %s", e.DocType, e.EnvVar)
	}
	return fmt.Sprintf("template %q for %s is missing from the templates bucket; contact an administrator", e.Key, e.DocType)
}

// ArtifactStore is the part of artifacts.Store the document service uses.
type ArtifactStore interface {
	Store(ctx context.Context, jobID, label string, version int, data []byte) (string, error)
	PublicURL(objectPath string) string
	TemplateExists(ctx context.Context, key string) (bool, error)
	FetchTemplate(ctx context.Context, key string) ([]byte, error)
	Versions(ctx context.Context, jobID string, t models.DocumentType) ([]models.ArtifactVersion, error)
}

// DocumentService turns jobs into stored compliance documents.
type DocumentService struct {
	repo      records.Repository
	store     ArtifactStore
	renderer  *render.Renderer
	mapper    *mapping.Mapper
	templates map[models.DocumentType]TemplateConfig
	logger    *slog.Logger
}

// NewDocumentService wires the orchestrator. A nil logger uses slog.Default.
func NewDocumentService(
	repo records.Repository,
	store ArtifactStore,
	renderer *render.Renderer,
	mapper *mapping.Mapper,
	templates map[models.DocumentType]TemplateConfig,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		repo:      repo,
		store:     store,
		renderer:  renderer,
		mapper:    mapper,
		templates: templates,
		logger:    logger,
	}
}

// Status reports the document's state without rendering. A pending document
// whose template is absent reports template_missing.
func (s *DocumentService) Status(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error) {
	doc, err := s.repo.GetDocument(ctx, jobID, t)
	if err != nil {
		return nil, err
	}
	resp := storedResponse(doc)
	if resp.State == models.StatePending {
		if _, err := s.checkTemplate(ctx, t); err != nil {
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				return nil, err
			}
			resp.State = models.StateTemplateMissing
		}
	}
	return resp, nil
}

// View serves the stored document when it is ready and renders it otherwise.
func (s *DocumentService) View(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error) {
	doc, err := s.repo.GetDocument(ctx, jobID, t)
	if err != nil {
		return nil, err
	}
	if doc.State() == models.StateReady {
		return storedResponse(doc), nil
	}
	return s.Generate(ctx, jobID, t)
}

// Generate renders the document and stores it, replacing the artifact for
// the current version. If the job's legal data changed since the stored
// rendition was made at this version, the job version is bumped first so the
// earlier artifact is kept.
func (s *DocumentService) Generate(ctx context.Context, jobID string, t models.DocumentType) (*models.DocumentResponse, error) {
	logCtx := s.logger.With("jobId", jobID, "docType", t)

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, jobID, t)
	if err != nil {
		return nil, err
	}

	tc, err := s.checkTemplate(ctx, t)
	if err != nil {
		logCtx.Warn("Template unavailable.", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("templateKey", tc.Key)

	result, err := s.render(ctx, job, t, tc, render.Options{})
	if err != nil {
		logCtx.Error("Render failed; document left as it was.", "error", err)
		return nil, err
	}

	hash := mapping.Fingerprint(job)
	version, err := s.targetVersion(ctx, job, doc, hash)
	if err != nil {
		return nil, err
	}
	logCtx = logCtx.With("version", version)

	objectPath, err := s.store.Store(ctx, job.ID, t.Label(), version, result.Bytes)
	if err != nil {
		return nil, err
	}
	publicURL := s.store.PublicURL(objectPath)

	if err := s.repo.UpdateRendered(ctx, job.ID, t, publicURL, version, hash); err != nil {
		logCtx.Error("Artifact stored but compliance record not updated.", "object", objectPath, "error", err)
		return nil, fmt.Errorf("failed to record %s for job %s: %w", t, job.ID, err)
	}

	s.audit(ctx, models.AuditEntry{
		JobID:  job.ID,
		Actor:  "system",
		Action: "document_generated",
		Meta: map[string]any{
			"docType":     string(t),
			"version":     version,
			"strategy":    result.Diagnostics.Strategy,
			"fieldMisses": result.Diagnostics.Count(),
		},
	})
	logCtx.Info("Document generated.", "object", objectPath, "fieldMisses", result.Diagnostics.Count())

	return &models.DocumentResponse{
		JobID:       job.ID,
		DocType:     t,
		State:       models.StateReady,
		Version:     version,
		PublicURL:   publicURL,
		DataURL:     result.DataURL,
		Printed:     doc.Printed,
		FieldMisses: result.Diagnostics.Count(),
		Misses:      missStrings(result.Diagnostics),
	}, nil
}

// Preview renders without storing anything. With calibrate set, coordinate
// renders get the guide overlay.
func (s *DocumentService) Preview(ctx context.Context, jobID string, t models.DocumentType, calibrate bool) (*render.Result, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	tc, err := s.checkTemplate(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, job, t, tc, render.Options{Calibrate: calibrate})
}

// Outcome is the result of one document in GenerateAll.
type Outcome struct {
	DocType  models.DocumentType
	Response *models.DocumentResponse
	Err      error
}

// GenerateAll renders every document type for a job concurrently. One
// failing document does not stop the other.
func (s *DocumentService) GenerateAll(ctx context.Context, jobID string) []Outcome {
	out := make([]Outcome, len(models.DocumentTypes))
	var g errgroup.Group
	g.SetLimit(len(models.DocumentTypes))
	for i, t := range models.DocumentTypes {
		g.Go(func() error {
			resp, err := s.Generate(ctx, jobID, t)
			out[i] = Outcome{DocType: t, Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Versions lists every stored rendition of a document.
func (s *DocumentService) Versions(ctx context.Context, jobID string, t models.DocumentType) ([]models.ArtifactVersion, error) {
	if _, err := s.repo.GetDocument(ctx, jobID, t); err != nil {
		return nil, err
	}
	return s.store.Versions(ctx, jobID, t)
}

// MarkPrinted flags the document as printed. Only ready documents can be printed.
func (s *DocumentService) MarkPrinted(ctx context.Context, jobID string, t models.DocumentType, actor string) (*models.DocumentResponse, error) {
	doc, err := s.repo.GetDocument(ctx, jobID, t)
	if err != nil {
		return nil, err
	}
	if doc.State() != models.StateReady {
		return nil, fmt.Errorf("%s for job %s has not been generated: %w", t, jobID, ErrInvalidRequest)
	}
	if err := s.repo.MarkPrinted(ctx, jobID, t); err != nil {
		return nil, err
	}
	s.audit(ctx, models.AuditEntry{
		JobID:  jobID,
		Actor:  actorOr(actor),
		Action: "document_printed",
		Meta:   map[string]any{"docType": string(t), "version": doc.Version},
	})
	doc.Printed = true
	return storedResponse(doc), nil
}

// checkTemplate confirms the template exists before anything is downloaded.
func (s *DocumentService) checkTemplate(ctx context.Context, t models.DocumentType) (TemplateConfig, error) {
	tc, ok := s.templates[t]
	if !ok || tc.Key == "" {
		return tc, &ConfigurationError{DocType: t, Key: tc.Key, EnvVar: tc.EnvVar}
	}
	exists, err := s.store.TemplateExists(ctx, tc.Key)
	if err != nil {
		return tc, err
	}
	if !exists {
		return tc, &ConfigurationError{DocType: t, Key: tc.Key, EnvVar: tc.EnvVar}
	}
	return tc, nil
}

func (s *DocumentService) render(ctx context.Context, job *models.Job, t models.DocumentType, tc TemplateConfig, opts render.Options) (*render.Result, error) {
	template, err := s.store.FetchTemplate(ctx, tc.Key)
	if errors.Is(err, artifacts.ErrNotFound) {
		// Deleted after checkTemplate saw it.
		return nil, &ConfigurationError{DocType: t, Key: tc.Key, EnvVar: tc.EnvVar}
	}
	if err != nil {
		return nil, err
	}
	inv, err := s.renderer.Inspect(template)
	if err != nil {
		return nil, err
	}
	strategy := render.SelectStrategy(tc.Mode, inv, s.mapper.Named(job, t), s.mapper.Coordinates(job, t))
	return s.renderer.RenderInspected(template, inv, strategy, opts)
}

// targetVersion decides which version the new rendition is stored under.
func (s *DocumentService) targetVersion(ctx context.Context, job *models.Job, doc *models.ComplianceDocument, hash string) (int, error) {
	changed := doc.State() == models.StateReady &&
		doc.RenderedHash != "" &&
		doc.RenderedHash != hash &&
		doc.Version >= job.Version
	if !changed {
		return job.Version, nil
	}

	v, err := s.repo.BumpVersion(ctx, job.ID, job.Version)
	if errors.Is(err, records.ErrVersionConflict) {
		// Another request bumped it first; use whatever it is now.
		fresh, err := s.repo.GetJob(ctx, job.ID)
		if err != nil {
			return 0, err
		}
		return fresh.Version, nil
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("Job data changed since last render; bumped version.",
		"jobId", job.ID, "docType", doc.Type, "from", job.Version, "to", v)
	return v, nil
}

func (s *DocumentService) audit(ctx context.Context, entry models.AuditEntry) {
	if err := s.repo.AppendAudit(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit entry.", "jobId", entry.JobID, "action", entry.Action, "error", err)
	}
}

func storedResponse(doc *models.ComplianceDocument) *models.DocumentResponse {
	resp := &models.DocumentResponse{
		JobID:   doc.JobID,
		DocType: doc.Type,
		State:   doc.State(),
		Version: doc.Version,
		Printed: doc.Printed,
	}
	if doc.PDFURL != nil {
		resp.PublicURL = *doc.PDFURL
	}
	return resp
}

func missStrings(d render.Diagnostics) []string {
	if d.Count() == 0 {
		return nil
	}
	out := make([]string, 0, d.Count())
	for _, m := range d.Misses {
		out = append(out, m.String())
	}
	return out
}

func actorOr(actor string) string {
	if actor == "" {
		return "kiosk"
	}
	return actor
}
