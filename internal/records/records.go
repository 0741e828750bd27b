// Package records persists jobs, compliance documents and the audit log.
package records

import (
	"context"
	"errors"

	"github.com/tallpine/kioskdocs/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrVersionConflict = errors.New("version conflict")
)

// JobRepository reads and advances jobs.
type JobRepository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CreateJob(ctx context.Context, job *models.Job) error
	// BumpVersion moves the job from version from to from+1 and returns the
	// new version. It fails with ErrVersionConflict if the stored version is not from.
	BumpVersion(ctx context.Context, id string, from int) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, taxidermyStage *string) error
}

// ComplianceRepository holds one row per (job, document type).
type ComplianceRepository interface {
	GetDocument(ctx context.Context, jobID string, t models.DocumentType) (*models.ComplianceDocument, error)
	// CreateDocument inserts the intake row and fails with ErrAlreadyExists
	// if it is already there.
	CreateDocument(ctx context.Context, doc *models.ComplianceDocument) error
	// UpdateRendered sets the URL, version and content hash on the existing
	// row. It never inserts, and rejects a version lower than the stored one
	// with ErrVersionConflict.
	UpdateRendered(ctx context.Context, jobID string, t models.DocumentType, url string, version int, hash string) error
	MarkPrinted(ctx context.Context, jobID string, t models.DocumentType) error
}

// AuditRepository appends audit entries.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}

// Repository is everything the services need from persistence.
type Repository interface {
	JobRepository
	ComplianceRepository
	AuditRepository
}
