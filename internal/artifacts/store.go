// Package artifacts stores rendered documents and reads templates.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tallpine/kioskdocs/internal/gcp"
	"github.com/tallpine/kioskdocs/internal/models"
)

const pdfContentType = "application/pdf"

// StorageWriteError means an artifact could not be uploaded.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to store artifact %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// StorageReadError means a template could not be read or checked.
type StorageReadError struct {
	Key string
	Err error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("failed to read template %s: %v", e.Key, e.Err)
}

func (e *StorageReadError) Unwrap() error { return e.Err }

// Config locates the two logical buckets and bounds every storage call.
type Config struct {
	TemplatesBucket string
	DocumentsBucket string
	PublicBaseURL   string
	// Timeout bounds each individual storage call.
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Store persists rendered documents under deterministic names.
type Store struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// NewStore validates cfg and fills in defaults.
func NewStore(backend Backend, cfg Config, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("artifact store needs a backend")
	}
	if cfg.TemplatesBucket == "" || cfg.DocumentsBucket == "" {
		return nil, errors.New("templates and documents buckets must both be set")
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "https://storage.googleapis.com"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, cfg: cfg, logger: logger}, nil
}

// ObjectPath is the storage name for one rendition: {jobId}/{label}_v{version}.pdf.
func ObjectPath(jobID, label string, version int) string {
	return fmt.Sprintf("%s/%s_v%d.pdf", jobID, label, version)
}

// Store uploads data to the path for (jobID, label, version), replacing any
// earlier upload of the same version. It returns the object path.
func (s *Store) Store(ctx context.Context, jobID, label string, version int, data []byte) (string, error) {
	objectPath := ObjectPath(jobID, label, version)
	logCtx := s.logger.With("bucket", s.cfg.DocumentsBucket, "object", objectPath)

	backoff := s.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
			return s.backend.Write(writeCtx, s.cfg.DocumentsBucket, objectPath, data, pdfContentType)
		}()
		if err == nil {
			logCtx.Info("Stored artifact.", "bytes", len(data), "attempt", attempt)
			return objectPath, nil
		}
		lastErr = err
		if !gcp.IsRetryable(err) || attempt == s.cfg.MaxAttempts {
			break
		}
		logCtx.Warn("Upload failed, will retry.",
			"attempt", attempt,
			"maxAttempts", s.cfg.MaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", &StorageWriteError{Path: objectPath, Err: ctx.Err()}
		}
	}
	logCtx.Error("Upload failed.", "error", lastErr)
	return "", &StorageWriteError{Path: objectPath, Err: lastErr}
}

// PublicURL derives the public URL for an object path. It does not check
// that the object exists.
func (s *Store) PublicURL(objectPath string) string {
	segments := strings.Split(objectPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.cfg.PublicBaseURL + "/" + url.PathEscape(s.cfg.DocumentsBucket) + "/" + strings.Join(segments, "/")
}

// TemplateExists checks for a template object without downloading it.
func (s *Store) TemplateExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	ok, err := s.backend.Exists(ctx, s.cfg.TemplatesBucket, key)
	if err != nil {
		return false, &StorageReadError{Key: key, Err: err}
	}
	return ok, nil
}

// FetchTemplate downloads a template.
func (s *Store) FetchTemplate(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	data, err := s.backend.Read(ctx, s.cfg.TemplatesBucket, key)
	if err != nil {
		return nil, &StorageReadError{Key: key, Err: err}
	}
	return data, nil
}

var versionName = regexp.MustCompile(`^(.+)_v(\d+)\.pdf$`)

// Versions lists the stored renditions of one document for a job, oldest first.
func (s *Store) Versions(ctx context.Context, jobID string, t models.DocumentType) ([]models.ArtifactVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	objects, err := s.backend.List(ctx, s.cfg.DocumentsBucket, jobID+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for job %s: %w", jobID, err)
	}

	var out []models.ArtifactVersion
	for _, obj := range objects {
		m := versionName.FindStringSubmatch(path.Base(obj.Name))
		if m == nil || m[1] != t.Label() {
			continue
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, models.ArtifactVersion{
			Path:      obj.Name,
			Version:   v,
			PublicURL: s.PublicURL(obj.Name),
			Size:      obj.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
