package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/tallpine/kioskdocs/internal/gcp"
	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/render"
)

// Record store backends.
const (
	RecordStoreFirestore = "firestore"
	RecordStorePostgres  = "postgres"
)

// TemplateConfig says where a document type's template lives and how to render it.
type TemplateConfig struct {
	Key    string
	EnvVar string // the variable Key came from, named in configuration errors
	Mode   render.Mode
}

// Config holds everything the deployed functions read from the environment.
type Config struct {
	ProjectID       string
	CredentialsFile string

	TemplatesBucket string
	DocumentsBucket string
	PublicURLBase   string
	StorageTimeout  time.Duration
	Templates       map[models.DocumentType]TemplateConfig

	RecordStore          string
	DatabaseURL          string
	JobsCollection       string
	ComplianceCollection string
	AuditCollection      string

	Business   mapping.Business
	LayoutFile string

	LogLevel  string
	LogFormat string
}

// LoadConfig reads the environment, after merging a .env file if one is present.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded .env file.")
	}

	timeout, err := gcp.GetDurationEnv("STORAGE_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ProjectID:       gcp.GetEnv("PROJECT_ID", ""),
		CredentialsFile: gcp.GetEnv("GOOGLE_APPLICATION_CREDENTIALS_FILE", ""),
		TemplatesBucket: gcp.GetEnv("TEMPLATES_BUCKET", ""),
		DocumentsBucket: gcp.GetEnv("DOCUMENTS_BUCKET", ""),
		PublicURLBase:   gcp.GetEnv("PUBLIC_URL_BASE", "https://storage.googleapis.com"),
		StorageTimeout:  timeout,
		Templates:       map[models.DocumentType]TemplateConfig{},

		RecordStore:          gcp.GetEnv("RECORD_STORE", RecordStoreFirestore),
		DatabaseURL:          gcp.GetEnv("DATABASE_URL", ""),
		JobsCollection:       gcp.GetEnv("JOBS_COLLECTION", "jobs"),
		ComplianceCollection: gcp.GetEnv("COMPLIANCE_COLLECTION", "compliance_docs"),
		AuditCollection:      gcp.GetEnv("AUDIT_COLLECTION", "audit_log"),

		Business: mapping.Business{
			Name:    gcp.GetEnv("BUSINESS_NAME", ""),
			Phone:   gcp.GetEnv("BUSINESS_PHONE", ""),
			Address: gcp.GetEnv("BUSINESS_ADDRESS", ""),
		},
		LayoutFile: gcp.GetEnv("LAYOUT_FILE", ""),

		LogLevel:  gcp.GetEnv("LOG_LEVEL", "info"),
		LogFormat: gcp.GetEnv("LOG_FORMAT", "json"),
	}

	for _, t := range []struct {
		docType         models.DocumentType
		keyVar, modeVar string
		defaultKey      string
	}{
		{models.DocProofOfSex, "PSR_TEMPLATE_KEY", "PSR_RENDER_MODE", "pwd-535.pdf"},
		{models.DocResource, "WRD_TEMPLATE_KEY", "WRD_RENDER_MODE", "wrd.pdf"},
	} {
		mode, err := render.ParseMode(gcp.GetEnv(t.modeVar, ""))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", t.modeVar, err)
		}
		cfg.Templates[t.docType] = TemplateConfig{
			Key:    gcp.GetEnv(t.keyVar, t.defaultKey),
			EnvVar: t.keyVar,
			Mode:   mode,
		}
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.TemplatesBucket == "" || c.DocumentsBucket == "" {
		return errors.New("TEMPLATES_BUCKET and DOCUMENTS_BUCKET must be set")
	}
	switch c.RecordStore {
	case RecordStoreFirestore:
		if c.ProjectID == "" {
			return errors.New("PROJECT_ID must be set when RECORD_STORE=firestore")
		}
	case RecordStorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set when RECORD_STORE=postgres")
		}
	default:
		return fmt.Errorf("RECORD_STORE must be %q or %q, got %q", RecordStoreFirestore, RecordStorePostgres, c.RecordStore)
	}
	return nil
}
