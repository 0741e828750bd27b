package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/tallpine/kioskdocs/internal/gcp"
)

// ErrNotFound is returned by a Backend when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo is the listing metadata the store needs.
type ObjectInfo struct {
	Name    string
	Size    int64
	Updated time.Time
}

// Backend is the object storage the store writes through.
type Backend interface {
	Exists(ctx context.Context, bucket, object string) (bool, error)
	Read(ctx context.Context, bucket, object string) ([]byte, error)
	// Write replaces any existing object at the same name.
	Write(ctx context.Context, bucket, object string, data []byte, contentType string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// GCSBackend implements Backend on Cloud Storage.
type GCSBackend struct {
	client *storage.Client
}

// NewGCSBackend wraps an already authenticated client.
func NewGCSBackend(client *storage.Client) *GCSBackend {
	return &GCSBackend{client: client}
}

func (b *GCSBackend) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := b.client.Bucket(bucket).Object(object).Attrs(ctx)
	if gcp.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat gs://%s/%s: %w", bucket, object, err)
	}
	return true, nil
}

func (b *GCSBackend) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if gcp.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

func (b *GCSBackend) Write(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	w := b.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return nil
}

func (b *GCSBackend) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		out = append(out, ObjectInfo{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}
