package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/records"
)

func newTestIntake(repo *memRepo) *IntakeService {
	s := NewIntakeService(repo, nil)
	s.now = func() time.Time { return fixedNow }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s
}

func validIntake() *models.IntakeRequest {
	return &models.IntakeRequest{
		Customer:       models.Customer{Name: "Dale Whitaker", Phone: "903-555-0142"},
		Species:        models.SpeciesTurkey,
		Sex:            models.SexMale,
		DateKilled:     "2025-11-08",
		ProcessingType: models.ProcessingStandard,
		CutSheet:       map[string]bool{"breast": true},
		Actor:          "front-desk",
	}
}

func TestInvoiceNumber(t *testing.T) {
	at := time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC).Add(7 * time.Millisecond)
	assert.Equal(t, fmt.Sprintf("250304-%04d", at.UnixMilli()%10000), InvoiceNumber(at))
	assert.Regexp(t, regexp.MustCompile(`^\d{6}-\d{4}$`), InvoiceNumber(time.Now()))
}

func TestCreateJob(t *testing.T) {
	repo := newMemRepo()
	s := newTestIntake(repo)
	ctx := context.Background()

	resp, err := s.CreateJob(ctx, validIntake())
	require.NoError(t, err)

	job, err := repo.GetJob(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Version)
	assert.Equal(t, models.StatusReceived, job.Status)
	assert.Equal(t, resp.InvoiceNo, job.InvoiceNo)
	assert.NotEmpty(t, job.Customer.ID)
	require.NotNil(t, job.DateKilled)
	assert.Equal(t, "2025-11-08", job.DateKilled.Format(time.DateOnly))

	for _, dt := range models.DocumentTypes {
		doc := repo.doc(resp.JobID, dt)
		assert.Equal(t, dt, doc.Type)
		assert.Equal(t, models.StatePending, doc.State())
		assert.Equal(t, 1, doc.Version)
	}

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "job_created", repo.audits[0].Action)
	assert.Equal(t, "front-desk", repo.audits[0].Actor)
}

func TestCreateJob_InvoiceDateMatchesCreatedAt(t *testing.T) {
	repo := newMemRepo()
	s := newTestIntake(repo)
	// 23:30 in Texas is already the next day in UTC.
	s.now = func() time.Time {
		return time.Date(2025, time.November, 14, 23, 30, 0, 0, time.FixedZone("CST", -6*60*60))
	}

	resp, err := s.CreateJob(context.Background(), validIntake())
	require.NoError(t, err)

	job, err := repo.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-15", job.CreatedAt.Format(time.DateOnly))
	assert.True(t, strings.HasPrefix(resp.InvoiceNo, "251115-"), resp.InvoiceNo)
}

func TestCreateJob_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.IntakeRequest)
	}{
		{"missing name", func(r *models.IntakeRequest) { r.Customer.Name = " " }},
		{"missing phone", func(r *models.IntakeRequest) { r.Customer.Phone = "" }},
		{"bad species", func(r *models.IntakeRequest) { r.Species = "elk" }},
		{"bad sex", func(r *models.IntakeRequest) { r.Sex = "" }},
		{"bad date", func(r *models.IntakeRequest) { r.DateKilled = "11/08/2025" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			req := validIntake()
			tt.mutate(req)

			_, err := newTestIntake(repo).CreateJob(context.Background(), req)

			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Empty(t, repo.jobs)
		})
	}
}

func TestCreateJob_AuditFailureTolerated(t *testing.T) {
	repo := newMemRepo()
	repo.auditErr = errBoom

	resp, err := newTestIntake(repo).CreateJob(context.Background(), validIntake())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
}

func TestCreateJob_DocumentFailure(t *testing.T) {
	repo := newMemRepo()
	repo.createDocErr = errBoom

	_, err := newTestIntake(repo).CreateJob(context.Background(), validIntake())
	assert.ErrorIs(t, err, errBoom)
}

func TestCreateJob_ExistingDocumentsAreKept(t *testing.T) {
	repo := newMemRepo()
	repo.createDocErr = records.ErrAlreadyExists

	_, err := newTestIntake(repo).CreateJob(context.Background(), validIntake())
	assert.NoError(t, err)
}

func TestAdvanceJob_Processing(t *testing.T) {
	repo := newMemRepo()
	seedJob(repo, deerJob("job-1"))
	s := newTestIntake(repo)

	resp, err := s.AdvanceJob(context.Background(), "job-1", &models.AdvanceRequest{})
	require.NoError(t, err)

	assert.Equal(t, string(models.StatusInCooler), resp.Stage)
	assert.Equal(t, 25, resp.Progress)
	job, _ := repo.GetJob(context.Background(), "job-1")
	assert.Equal(t, models.StatusInCooler, job.Status)
	assert.Equal(t, "status_changed", repo.audits[len(repo.audits)-1].Action)
}

func TestAdvanceJob_Taxidermy(t *testing.T) {
	repo := newMemRepo()
	job := deerJob("job-1")
	job.MountRequested = true
	seedJob(repo, job)
	s := newTestIntake(repo)
	ctx := context.Background()

	resp, err := s.AdvanceJob(ctx, "job-1", &models.AdvanceRequest{Track: "taxidermy"})
	require.NoError(t, err)
	assert.Equal(t, "prep", resp.Stage)
	assert.Equal(t, 16, resp.Progress)

	resp, err = s.AdvanceJob(ctx, "job-1", &models.AdvanceRequest{Track: "taxidermy"})
	require.NoError(t, err)
	assert.Equal(t, "mounting", resp.Stage)

	stored, _ := repo.GetJob(ctx, "job-1")
	assert.Equal(t, models.StatusReceived, stored.Status, "processing status untouched")
}

func TestAdvanceJob_Errors(t *testing.T) {
	repo := newMemRepo()
	done := deerJob("paid")
	done.Status = models.StatusPaid
	seedJob(repo, done)
	seedJob(repo, deerJob("no-mount"))
	s := newTestIntake(repo)
	ctx := context.Background()

	_, err := s.AdvanceJob(ctx, "paid", &models.AdvanceRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.AdvanceJob(ctx, "no-mount", &models.AdvanceRequest{Track: "taxidermy"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.AdvanceJob(ctx, "no-mount", &models.AdvanceRequest{Track: "painting"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.AdvanceJob(ctx, "missing", &models.AdvanceRequest{})
	assert.ErrorIs(t, err, records.ErrNotFound)
}
