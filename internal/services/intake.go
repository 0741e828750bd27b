package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/records"
	"github.com/tallpine/kioskdocs/internal/workflow"
)

// ErrInvalidRequest marks caller mistakes that retrying will not fix.
var ErrInvalidRequest = errors.New("invalid request")

var knownSpecies = []models.Species{
	models.SpeciesDeer, models.SpeciesTurkey, models.SpeciesPronghorn, models.SpeciesPheasant,
	models.SpeciesDuck, models.SpeciesQuail, models.SpeciesDove, models.SpeciesOther,
}

// IntakeService records new jobs and moves them through the workflow.
type IntakeService struct {
	repo   records.Repository
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewIntakeService(repo records.Repository, logger *slog.Logger) *IntakeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntakeService{repo: repo, now: time.Now, newID: uuid.NewString, logger: logger}
}

// InvoiceNumber formats the kiosk invoice number: yyMMdd and the last four
// digits of the millisecond clock.
func InvoiceNumber(t time.Time) string {
	return fmt.Sprintf("%s-%04d", t.Format("060102"), t.UnixMilli()%10000)
}

// CreateJob stores a job at version 1 with one pending compliance document
// per type.
func (s *IntakeService) CreateJob(ctx context.Context, req *models.IntakeRequest) (*models.IntakeResponse, error) {
	if err := validateIntake(req); err != nil {
		return nil, err
	}
	killed, err := parseKillDate(req.DateKilled)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	customer := req.Customer
	if customer.ID == "" {
		customer.ID = s.newID()
	}
	processing := req.ProcessingType
	if processing == "" {
		processing = models.ProcessingStandard
	}

	job := &models.Job{
		ID:             s.newID(),
		InvoiceNo:      InvoiceNumber(now),
		Version:        1,
		Species:        req.Species,
		Sex:            req.Sex,
		AntlerPoints:   req.AntlerPoints,
		BeardAttached:  req.BeardAttached,
		DateKilled:     killed,
		LicenseNo:      req.LicenseNo,
		RanchArea:      req.RanchArea,
		County:         req.County,
		State:          req.State,
		Quantity:       req.Quantity,
		ProcessingType: processing,
		CutSheet:       req.CutSheet,
		Instructions:   req.Instructions,
		HangWeight:     req.HangWeight,
		Status:         models.StatusReceived,
		MountRequested: req.MountRequested,
		DepositPaid:    req.DepositPaid,
		Customer:       &customer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	logCtx := s.logger.With("jobId", job.ID, "invoiceNo", job.InvoiceNo)

	if err := s.repo.CreateJob(ctx, job); err != nil {
		logCtx.Error("Failed to create job.", "error", err)
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range models.DocumentTypes {
		g.Go(func() error {
			err := s.repo.CreateDocument(gctx, &models.ComplianceDocument{
				JobID:     job.ID,
				Type:      t,
				Version:   job.Version,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if errors.Is(err, records.ErrAlreadyExists) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logCtx.Error("Job created but compliance documents were not.", "error", err)
		return nil, fmt.Errorf("failed to create compliance documents for job %s: %w", job.ID, err)
	}

	if err := s.repo.AppendAudit(ctx, models.AuditEntry{
		JobID:  job.ID,
		Actor:  actorOr(req.Actor),
		Action: "job_created",
		Meta: map[string]any{
			"invoiceNo":      job.InvoiceNo,
			"customerName":   customer.Name,
			"species":        string(job.Species),
			"processingType": string(job.ProcessingType),
		},
		CreatedAt: now,
	}); err != nil {
		logCtx.Warn("Failed to write audit entry.", "error", err)
	}

	logCtx.Info("Job created.", "species", job.Species, "processingType", job.ProcessingType)
	return &models.IntakeResponse{JobID: job.ID, InvoiceNo: job.InvoiceNo}, nil
}

// AdvanceJob moves a job one stage along its processing or taxidermy track.
func (s *IntakeService) AdvanceJob(ctx context.Context, jobID string, req *models.AdvanceRequest) (*models.AdvanceResponse, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var (
		status    = job.Status
		stage     *string
		landingOn string
		from      string
	)
	switch strings.ToLower(req.Track) {
	case "", "processing":
		next, err := workflow.NextProcessingStage(job.Status)
		if err != nil {
			return nil, fmt.Errorf("cannot advance job %s from %q: %w: %w", jobID, job.Status, ErrInvalidRequest, err)
		}
		from, status, landingOn = string(job.Status), next, string(next)
	case "taxidermy":
		if !job.MountRequested {
			return nil, fmt.Errorf("job %s has no mount requested: %w", jobID, ErrInvalidRequest)
		}
		next, err := workflow.NextTaxidermyStage(job.TaxidermyStage)
		if err != nil {
			return nil, fmt.Errorf("cannot advance taxidermy for job %s: %w: %w", jobID, ErrInvalidRequest, err)
		}
		if job.TaxidermyStage != nil {
			from = *job.TaxidermyStage
		}
		stage, landingOn = &next, next
	default:
		return nil, fmt.Errorf("unknown track %q: %w", req.Track, ErrInvalidRequest)
	}

	if err := s.repo.UpdateStatus(ctx, jobID, status, stage); err != nil {
		return nil, err
	}
	job.Status = status
	if stage != nil {
		job.TaxidermyStage = stage
	}

	if err := s.repo.AppendAudit(ctx, models.AuditEntry{
		JobID:     jobID,
		Actor:     actorOr(req.Actor),
		Action:    "status_changed",
		Meta:      map[string]any{"from": from, "to": landingOn, "track": req.Track},
		CreatedAt: s.now().UTC(),
	}); err != nil {
		s.logger.Warn("Failed to write audit entry.", "jobId", jobID, "error", err)
	}

	return &models.AdvanceResponse{JobID: jobID, Stage: landingOn, Progress: workflow.Progress(job)}, nil
}

func validateIntake(req *models.IntakeRequest) error {
	var problems []string
	if strings.TrimSpace(req.Customer.Name) == "" {
		problems = append(problems, "customer name is required")
	}
	if strings.TrimSpace(req.Customer.Phone) == "" {
		problems = append(problems, "customer phone is required")
	}
	if !slices.Contains(knownSpecies, req.Species) {
		problems = append(problems, fmt.Sprintf("unknown species %q", req.Species))
	}
	switch req.Sex {
	case models.SexMale, models.SexFemale, models.SexUnknown:
	default:
		problems = append(problems, fmt.Sprintf("unknown sex %q", req.Sex))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// parseKillDate accepts a calendar date or an RFC 3339 timestamp.
func parseKillDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: dateKilled %q is not YYYY-MM-DD", ErrInvalidRequest, s)
}
