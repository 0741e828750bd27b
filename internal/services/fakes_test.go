package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tallpine/kioskdocs/internal/artifacts"
	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/records"
	"github.com/tallpine/kioskdocs/internal/render"
)

// memRepo is an in-memory records.Repository.
type memRepo struct {
	mu     sync.Mutex
	jobs   map[string]models.Job
	docs   map[string]models.ComplianceDocument
	audits []models.AuditEntry

	createDocErr error
	auditErr     error
	updates      int
	bumps        int
}

func newMemRepo() *memRepo {
	return &memRepo{jobs: map[string]models.Job{}, docs: map[string]models.ComplianceDocument{}}
}

func (r *memRepo) GetJob(_ context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, records.ErrNotFound)
	}
	return &job, nil
}

func (r *memRepo) CreateJob(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return records.ErrAlreadyExists
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memRepo) BumpVersion(_ context.Context, id string, from int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return 0, records.ErrNotFound
	}
	if job.Version != from {
		return 0, records.ErrVersionConflict
	}
	r.bumps++
	job.Version++
	r.jobs[id] = job
	return job.Version, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, st models.Status, stage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return records.ErrNotFound
	}
	job.Status = st
	if stage != nil {
		job.TaxidermyStage = stage
	}
	r.jobs[id] = job
	return nil
}

func (r *memRepo) GetDocument(_ context.Context, jobID string, t models.DocumentType) (*models.ComplianceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[models.ComplianceDocumentID(jobID, t)]
	if !ok {
		return nil, fmt.Errorf("%s for %s: %w", t, jobID, records.ErrNotFound)
	}
	return &doc, nil
}

func (r *memRepo) CreateDocument(_ context.Context, doc *models.ComplianceDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createDocErr != nil {
		return r.createDocErr
	}
	id := models.ComplianceDocumentID(doc.JobID, doc.Type)
	if _, ok := r.docs[id]; ok {
		return records.ErrAlreadyExists
	}
	doc.ID = id
	r.docs[id] = *doc
	return nil
}

func (r *memRepo) UpdateRendered(_ context.Context, jobID string, t models.DocumentType, url string, version int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := models.ComplianceDocumentID(jobID, t)
	doc, ok := r.docs[id]
	if !ok {
		return records.ErrNotFound
	}
	if doc.Version > version {
		return records.ErrVersionConflict
	}
	r.updates++
	doc.PDFURL = &url
	doc.Version = version
	doc.RenderedHash = hash
	r.docs[id] = doc
	return nil
}

func (r *memRepo) MarkPrinted(_ context.Context, jobID string, t models.DocumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := models.ComplianceDocumentID(jobID, t)
	doc, ok := r.docs[id]
	if !ok {
		return records.ErrNotFound
	}
	doc.Printed = true
	r.docs[id] = doc
	return nil
}

func (r *memRepo) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditErr != nil {
		return r.auditErr
	}
	r.audits = append(r.audits, entry)
	return nil
}

func (r *memRepo) doc(jobID string, t models.DocumentType) *models.ComplianceDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.docs[models.ComplianceDocumentID(jobID, t)]
	return &doc
}

func (r *memRepo) setJob(job models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// memStore is an in-memory ArtifactStore.
type memStore struct {
	mu        sync.Mutex
	templates map[string][]byte
	uploads   []string
	fetches   int
	existsErr error
	fetchErr  error
	storeErr  error
}

func newMemStore() *memStore { return &memStore{templates: map[string][]byte{}} }

func (s *memStore) Store(_ context.Context, jobID, label string, version int, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := artifacts.ObjectPath(jobID, label, version)
	if s.storeErr != nil {
		return "", &artifacts.StorageWriteError{Path: p, Err: s.storeErr}
	}
	s.uploads = append(s.uploads, p)
	return p, nil
}

func (s *memStore) PublicURL(p string) string { return "https://storage.example.com/docs/" + p }

func (s *memStore) TemplateExists(_ context.Context, key string) (bool, error) {
	if s.existsErr != nil {
		return false, &artifacts.StorageReadError{Key: key, Err: s.existsErr}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.templates[key]
	return ok, nil
}

func (s *memStore) FetchTemplate(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, &artifacts.StorageReadError{Key: key, Err: s.fetchErr}
	}
	b, ok := s.templates[key]
	if !ok {
		return nil, &artifacts.StorageReadError{Key: key, Err: artifacts.ErrNotFound}
	}
	return b, nil
}

func (s *memStore) Versions(_ context.Context, jobID string, t models.DocumentType) ([]models.ArtifactVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ArtifactVersion
	seen := map[string]bool{}
	for _, p := range s.uploads {
		if seen[p] {
			continue
		}
		seen[p] = true
		var v int
		if _, err := fmt.Sscanf(p, jobID+"/"+t.Label()+"_v%d.pdf", &v); err == nil {
			out = append(out, models.ArtifactVersion{Path: p, Version: v, PublicURL: s.PublicURL(p)})
		}
	}
	return out, nil
}

func (s *memStore) uploadList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// fakeEngine stands in for pdfcpu.
type fakeEngine struct {
	mu       sync.Mutex
	inv      render.FieldInventory
	stamps   int
	fills    int
	overlays int
}

func (e *fakeEngine) Inspect([]byte) (render.FieldInventory, error) { return e.inv, nil }

func (e *fakeEngine) FillForm(pdf []byte, _ render.FormValues) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fills++
	return append(append([]byte(nil), pdf...), "\n%filled"...), nil
}

func (e *fakeEngine) Stamp(pdf []byte, _ []mapping.Draw) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stamps++
	return append(append([]byte(nil), pdf...), "\n%stamped"...), nil
}

func (e *fakeEngine) Overlay(pdf []byte, _ []render.Box, _ bool) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlays++
	return append(append([]byte(nil), pdf...), "\n%overlay"...), nil
}

var (
	templatePDF = []byte("%PDF-1.4\n%kiosk template")
	fixedNow    = time.Date(2025, time.November, 14, 9, 30, 0, 0, time.UTC)
	errBoom     = errors.New("boom")
)

func testTemplates() map[models.DocumentType]TemplateConfig {
	return map[models.DocumentType]TemplateConfig{
		models.DocProofOfSex: {Key: "pwd-535.pdf", EnvVar: "PSR_TEMPLATE_KEY", Mode: render.ModeAuto},
		models.DocResource:   {Key: "wrd.pdf", EnvVar: "WRD_TEMPLATE_KEY", Mode: render.ModeAuto},
	}
}

func testMapper() *mapping.Mapper {
	m := mapping.New(mapping.Business{}, nil)
	m.Now = func() time.Time { return fixedNow }
	return m
}

func deerJob(id string) models.Job {
	points := 10
	killed := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	return models.Job{
		ID:             id,
		InvoiceNo:      "251108-4411",
		Version:        1,
		Species:        models.SpeciesDeer,
		Sex:            models.SexMale,
		AntlerPoints:   &points,
		DateKilled:     &killed,
		ProcessingType: models.ProcessingStandard,
		Status:         models.StatusReceived,
		Customer:       &models.Customer{ID: "cust-1", Name: "Dale Whitaker", Phone: "903-555-0142"},
	}
}

// seedJob stores a job with pending documents of both types.
func seedJob(r *memRepo, job models.Job) {
	r.setJob(job)
	for _, t := range models.DocumentTypes {
		_ = r.CreateDocument(context.Background(), &models.ComplianceDocument{JobID: job.ID, Type: t, Version: job.Version})
	}
}

type harness struct {
	repo    *memRepo
	store   *memStore
	engine  *fakeEngine
	service *DocumentService
}

func newHarness() *harness {
	h := &harness{
		repo:   newMemRepo(),
		store:  newMemStore(),
		engine: &fakeEngine{inv: render.FieldInventory{PageCount: 1}},
	}
	h.store.templates["pwd-535.pdf"] = templatePDF
	h.store.templates["wrd.pdf"] = templatePDF
	h.service = NewDocumentService(h.repo, h.store, render.NewRenderer(h.engine, nil), testMapper(), testTemplates(), nil)
	return h
}
