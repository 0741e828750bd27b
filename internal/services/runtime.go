package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tallpine/kioskdocs/internal/artifacts"
	"github.com/tallpine/kioskdocs/internal/gcp"
	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/records"
	"github.com/tallpine/kioskdocs/internal/render"
)

// Runtime is the set of services a deployed function needs, built once per
// instance from Config.
type Runtime struct {
	Config    Config
	Documents *DocumentService
	Intake    *IntakeService
	Inspector *TemplateInspector

	closers []func() error
}

// NewRuntime creates the Google clients and record store and wires the services.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	logger := slog.Default()
	rt := &Runtime{Config: cfg}

	storageClient, err := gcp.NewStorageClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, storageClient.Close)

	store, err := artifacts.NewStore(artifacts.NewGCSBackend(storageClient), artifacts.Config{
		TemplatesBucket: cfg.TemplatesBucket,
		DocumentsBucket: cfg.DocumentsBucket,
		PublicBaseURL:   cfg.PublicURLBase,
		Timeout:         cfg.StorageTimeout,
	}, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	repo, err := rt.openRecords(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var layouts mapping.Layouts
	if cfg.LayoutFile != "" {
		if layouts, err = mapping.LoadLayouts(cfg.LayoutFile); err != nil {
			rt.Close()
			return nil, err
		}
	}
	mapper := mapping.New(cfg.Business, layouts)
	renderer := render.NewRenderer(render.NewPDFCPUEngine(), logger)

	rt.Documents = NewDocumentService(repo, store, renderer, mapper, cfg.Templates, logger)
	rt.Intake = NewIntakeService(repo, logger)
	rt.Inspector = NewTemplateInspector(cfg.TemplatesBucket, store, renderer, mapper, cfg.Templates, logger)
	return rt, nil
}

func (rt *Runtime) openRecords(ctx context.Context, cfg Config) (records.Repository, error) {
	switch cfg.RecordStore {
	case RecordStorePostgres:
		db, err := records.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		pg := records.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		return records.NewFirestoreStore(client, records.FirestoreConfig{
			JobsCollection:       cfg.JobsCollection,
			ComplianceCollection: cfg.ComplianceCollection,
			AuditCollection:      cfg.AuditCollection,
		}), nil
	}
}

// Close releases every client the runtime opened.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
