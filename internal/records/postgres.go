package records

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tallpine/kioskdocs/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// OpenPostgres connects, sizes the pool for a function instance and pings.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	return db, nil
}

// PostgresStore implements Repository on Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type jobRow struct {
	ID              string     `db:"id"`
	InvoiceNo       string     `db:"invoice_no"`
	Version         int        `db:"version"`
	Species         string     `db:"species"`
	Sex             string     `db:"sex"`
	AntlerPoints    *int       `db:"antler_points"`
	BeardAttached   *bool      `db:"beard_attached"`
	DateKilled      *time.Time `db:"date_killed"`
	LicenseNo       *string    `db:"license_no"`
	RanchArea       *string    `db:"ranch_area"`
	County          *string    `db:"county"`
	State           *string    `db:"state"`
	Quantity        *int       `db:"quantity"`
	ProcessingType  string     `db:"processing_type"`
	CutSheet        []byte     `db:"cut_sheet"`
	Instructions    *string    `db:"instructions"`
	HangWeight      *float64   `db:"hang_weight"`
	YieldWeight     *float64   `db:"yield_weight"`
	DressedWeight   *float64   `db:"dressed_weight"`
	Status          string     `db:"status"`
	TaxidermyStage  *string    `db:"taxidermy_stage"`
	MountRequested  bool       `db:"mount_requested"`
	DepositPaid     bool       `db:"deposit_paid"`
	BusinessName    *string    `db:"business_name"`
	BusinessPhone   *string    `db:"business_phone"`
	BusinessAddress *string    `db:"business_address"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`

	CustomerID      *string `db:"customer_id"`
	CustomerName    *string `db:"customer_name"`
	CustomerPhone   *string `db:"customer_phone"`
	CustomerEmail   *string `db:"customer_email"`
	CustomerAddress *string `db:"customer_address_line1"`
	CustomerCity    *string `db:"customer_city"`
	CustomerState   *string `db:"customer_state"`
	CustomerZip     *string `db:"customer_zip"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (r jobRow) toModel() (*models.Job, error) {
	job := &models.Job{
		ID:              r.ID,
		InvoiceNo:       r.InvoiceNo,
		Version:         r.Version,
		Species:         models.Species(r.Species),
		Sex:             models.Sex(r.Sex),
		AntlerPoints:    r.AntlerPoints,
		BeardAttached:   r.BeardAttached,
		DateKilled:      r.DateKilled,
		LicenseNo:       r.LicenseNo,
		RanchArea:       r.RanchArea,
		County:          r.County,
		State:           r.State,
		Quantity:        r.Quantity,
		ProcessingType:  models.ProcessingType(r.ProcessingType),
		Instructions:    r.Instructions,
		HangWeight:      r.HangWeight,
		YieldWeight:     r.YieldWeight,
		DressedWeight:   r.DressedWeight,
		Status:          models.Status(r.Status),
		TaxidermyStage:  r.TaxidermyStage,
		MountRequested:  r.MountRequested,
		DepositPaid:     r.DepositPaid,
		BusinessName:    r.BusinessName,
		BusinessPhone:   r.BusinessPhone,
		BusinessAddress: r.BusinessAddress,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.CutSheet) > 0 {
		if err := json.Unmarshal(r.CutSheet, &job.CutSheet); err != nil {
			return nil, fmt.Errorf("failed to decode cut sheet: %w", err)
		}
	}
	if r.CustomerID != nil {
		job.Customer = &models.Customer{
			ID:           *r.CustomerID,
			Name:         deref(r.CustomerName),
			Phone:        deref(r.CustomerPhone),
			Email:        r.CustomerEmail,
			AddressLine1: r.CustomerAddress,
			City:         r.CustomerCity,
			State:        r.CustomerState,
			Zip:          r.CustomerZip,
		}
	}
	return job, nil
}

const selectJob = `
	SELECT
		j.id, j.invoice_no, j.version, j.species, j.sex, j.antler_points,
		j.beard_attached, j.date_killed, j.license_no, j.ranch_area, j.county,
		j.state, j.quantity, j.processing_type, j.cut_sheet, j.instructions,
		j.hang_weight, j.yield_weight, j.dressed_weight, j.status,
		j.taxidermy_stage, j.mount_requested, j.deposit_paid, j.business_name,
		j.business_phone, j.business_address, j.created_at, j.updated_at,
		c.id AS customer_id, c.name AS customer_name, c.phone AS customer_phone,
		c.email AS customer_email, c.address_line1 AS customer_address_line1,
		c.city AS customer_city, c.state AS customer_state, c.zip AS customer_zip
	FROM jobs j
	LEFT JOIN customers c ON c.id = j.customer_id
	WHERE j.id = $1
`

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var row jobRow
	if err := s.db.GetContext(ctx, &row, selectJob, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toModel()
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	cutSheet, err := json.Marshal(job.CutSheet)
	if err != nil {
		return fmt.Errorf("failed to encode cut sheet: %w", err)
	}
	if job.CutSheet == nil {
		cutSheet = []byte("{}")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var customerID *string
	if c := job.Customer; c != nil && c.ID != "" {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, phone, email, address_line1, city, state, zip)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email,
				address_line1 = EXCLUDED.address_line1, city = EXCLUDED.city,
				state = EXCLUDED.state, zip = EXCLUDED.zip
		`, c.ID, c.Name, c.Phone, c.Email, c.AddressLine1, c.City, c.State, c.Zip)
		if err != nil {
			return fmt.Errorf("failed to upsert customer: %w", err)
		}
		customerID = &c.ID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (
			id, invoice_no, version, customer_id, species, sex, antler_points,
			beard_attached, date_killed, license_no, ranch_area, county, state,
			quantity, processing_type, cut_sheet, instructions, hang_weight,
			yield_weight, dressed_weight, status, taxidermy_stage,
			mount_requested, deposit_paid, business_name, business_phone,
			business_address, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25, $26,
			$27, $28, $29
		)
	`,
		job.ID, job.InvoiceNo, job.Version, customerID, job.Species, job.Sex, job.AntlerPoints,
		job.BeardAttached, job.DateKilled, job.LicenseNo, job.RanchArea, job.County, job.State,
		job.Quantity, job.ProcessingType, cutSheet, job.Instructions, job.HangWeight,
		job.YieldWeight, job.DressedWeight, job.Status, job.TaxidermyStage,
		job.MountRequested, job.DepositPaid, job.BusinessName, job.BusinessPhone,
		job.BusinessAddress, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", pgTranslate(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}
	return nil
}

func (s *PostgresStore) BumpVersion(ctx context.Context, id string, from int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET version = version + 1, updated_at = now() WHERE id = $1 AND version = $2`,
		id, from)
	if err != nil {
		return 0, fmt.Errorf("failed to bump job version: %w", err)
	}
	if err := s.expectOne(ctx, res, "jobs", "id = $1", id); err != nil {
		return 0, fmt.Errorf("job %s at version %d: %w", id, from, err)
	}
	return from + 1, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, st models.Status, taxidermyStage *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, taxidermy_stage = COALESCE($3, taxidermy_stage), updated_at = now()
		WHERE id = $1
	`, id, st, taxidermyStage)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

type documentRow struct {
	ID           string    `db:"id"`
	JobID        string    `db:"job_id"`
	DocType      string    `db:"doc_type"`
	PDFURL       *string   `db:"pdf_url"`
	Version      int       `db:"version"`
	RenderedHash string    `db:"rendered_hash"`
	Printed      bool      `db:"printed"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (s *PostgresStore) GetDocument(ctx context.Context, jobID string, t models.DocumentType) (*models.ComplianceDocument, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, job_id, doc_type, pdf_url, version, rendered_hash, printed, created_at, updated_at
		FROM compliance_docs
		WHERE job_id = $1 AND doc_type = $2
	`, jobID, string(t))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s document for job %s: %w", t, jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get compliance document: %w", err)
	}
	return &models.ComplianceDocument{
		ID:           row.ID,
		JobID:        row.JobID,
		Type:         models.DocumentType(row.DocType),
		PDFURL:       row.PDFURL,
		Version:      row.Version,
		RenderedHash: row.RenderedHash,
		Printed:      row.Printed,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.ComplianceDocument) error {
	id := models.ComplianceDocumentID(doc.JobID, doc.Type)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_docs (id, job_id, doc_type, pdf_url, version, printed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id, doc_type) DO NOTHING
	`, id, doc.JobID, string(doc.Type), doc.PDFURL, doc.Version, doc.Printed, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create compliance document: %w", pgTranslate(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s document for job %s: %w", doc.Type, doc.JobID, ErrAlreadyExists)
	}
	doc.ID = id
	return nil
}

func (s *PostgresStore) UpdateRendered(ctx context.Context, jobID string, t models.DocumentType, url string, version int, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE compliance_docs
		SET pdf_url = $3, version = $4, rendered_hash = $5, updated_at = now()
		WHERE job_id = $1 AND doc_type = $2 AND version <= $4
	`, jobID, string(t), url, version, hash)
	if err != nil {
		return fmt.Errorf("failed to update compliance document: %w", err)
	}
	if err := s.expectOne(ctx, res, "compliance_docs", "job_id = $1 AND doc_type = $2", jobID, string(t)); err != nil {
		return fmt.Errorf("%s document for job %s at version %d: %w", t, jobID, version, err)
	}
	return nil
}

func (s *PostgresStore) MarkPrinted(ctx context.Context, jobID string, t models.DocumentType) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE compliance_docs SET printed = TRUE, updated_at = now() WHERE job_id = $1 AND doc_type = $2`,
		jobID, string(t))
	if err != nil {
		return fmt.Errorf("failed to mark document printed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s document for job %s: %w", t, jobID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	var meta []byte
	if entry.Meta != nil {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return fmt.Errorf("failed to encode audit meta: %w", err)
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (job_id, actor, action, meta, created_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.JobID, entry.Actor, entry.Action, meta, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// expectOne turns a zero-row conditional update into ErrNotFound or
// ErrVersionConflict depending on whether the row exists at all.
func (s *PostgresStore) expectOne(ctx context.Context, res sql.Result, table, where string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", table, where)
	if err := s.db.GetContext(ctx, &exists, query, args...); err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func pgTranslate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pqErr.Message)
	}
	return err
}
