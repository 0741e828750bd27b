package records

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tallpine/kioskdocs/internal/models"
)

// FirestoreConfig names the collections used.
type FirestoreConfig struct {
	JobsCollection       string
	ComplianceCollection string
	AuditCollection      string
}

// FirestoreStore implements Repository on Firestore. Compliance documents use
// the deterministic ID {jobId}_{label}, so a (job, type) pair maps to one document.
type FirestoreStore struct {
	client *firestore.Client
	cfg    FirestoreConfig
}

// NewFirestoreStore wraps client. Empty collection names get defaults.
func NewFirestoreStore(client *firestore.Client, cfg FirestoreConfig) *FirestoreStore {
	if cfg.JobsCollection == "" {
		cfg.JobsCollection = "jobs"
	}
	if cfg.ComplianceCollection == "" {
		cfg.ComplianceCollection = "compliance_docs"
	}
	if cfg.AuditCollection == "" {
		cfg.AuditCollection = "audit_log"
	}
	return &FirestoreStore{client: client, cfg: cfg}
}

func (s *FirestoreStore) jobRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.cfg.JobsCollection).Doc(id)
}

func (s *FirestoreStore) docRef(jobID string, t models.DocumentType) *firestore.DocumentRef {
	return s.client.Collection(s.cfg.ComplianceCollection).Doc(models.ComplianceDocumentID(jobID, t))
}

// translate maps Firestore status codes onto the package sentinels.
func translate(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

func (s *FirestoreStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	snap, err := s.jobRef(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, translate(err))
	}
	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	job.ID = snap.Ref.ID
	return &job, nil
}

func (s *FirestoreStore) CreateJob(ctx context.Context, job *models.Job) error {
	if _, err := s.jobRef(job.ID).Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, translate(err))
	}
	return nil
}

func (s *FirestoreStore) BumpVersion(ctx context.Context, id string, from int) (int, error) {
	ref := s.jobRef(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return translate(err)
		}
		current, err := snap.DataAt("version")
		if err != nil {
			return fmt.Errorf("job has no version: %w", err)
		}
		if v, ok := current.(int64); !ok || int(v) != from {
			return fmt.Errorf("%w: job %s is at version %v, expected %d", ErrVersionConflict, id, current, from)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "version", Value: from + 1},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to bump version of job %s: %w", id, err)
	}
	return from + 1, nil
}

func (s *FirestoreStore) UpdateStatus(ctx context.Context, id string, st models.Status, taxidermyStage *string) error {
	updates := []firestore.Update{
		{Path: "status", Value: st},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if taxidermyStage != nil {
		updates = append(updates, firestore.Update{Path: "taxidermyStage", Value: *taxidermyStage})
	}
	if _, err := s.jobRef(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update status of job %s: %w", id, translate(err))
	}
	return nil
}

func (s *FirestoreStore) GetDocument(ctx context.Context, jobID string, t models.DocumentType) (*models.ComplianceDocument, error) {
	snap, err := s.docRef(jobID, t).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s document for job %s: %w", t, jobID, translate(err))
	}
	var doc models.ComplianceDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s document for job %s: %w", t, jobID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

func (s *FirestoreStore) CreateDocument(ctx context.Context, doc *models.ComplianceDocument) error {
	ref := s.docRef(doc.JobID, doc.Type)
	if _, err := ref.Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to create %s document for job %s: %w", doc.Type, doc.JobID, translate(err))
	}
	doc.ID = ref.ID
	return nil
}

func (s *FirestoreStore) UpdateRendered(ctx context.Context, jobID string, t models.DocumentType, url string, version int, hash string) error {
	ref := s.docRef(jobID, t)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return translate(err)
		}
		var doc models.ComplianceDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Version > version {
			return fmt.Errorf("%w: stored version %d is newer than %d", ErrVersionConflict, doc.Version, version)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "pdfUrl", Value: url},
			{Path: "version", Value: version},
			{Path: "renderedHash", Value: hash},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update %s document for job %s: %w", t, jobID, err)
	}
	return nil
}

func (s *FirestoreStore) MarkPrinted(ctx context.Context, jobID string, t models.DocumentType) error {
	_, err := s.docRef(jobID, t).Update(ctx, []firestore.Update{
		{Path: "printed", Value: true},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s document printed for job %s: %w", t, jobID, translate(err))
	}
	return nil
}

func (s *FirestoreStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, _, err := s.client.Collection(s.cfg.AuditCollection).Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
