package artifacts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/tallpine/kioskdocs/internal/models"
)

type memBackend struct {
	mu       sync.Mutex
	objects  map[string][]byte
	writes   []string
	failures []error // consumed one per Write call
	statErr  error
}

func newMemBackend() *memBackend { return &memBackend{objects: map[string][]byte{}} }

func (m *memBackend) key(bucket, object string) string { return bucket + "/" + object }

func (m *memBackend) Exists(_ context.Context, bucket, object string) (bool, error) {
	if m.statErr != nil {
		return false, m.statErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[m.key(bucket, object)]
	return ok, nil
}

func (m *memBackend) Read(_ context.Context, bucket, object string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[m.key(bucket, object)]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *memBackend) Write(ctx context.Context, bucket, object string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, object)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	m.objects[m.key(bucket, object)] = append([]byte(nil), data...)
	return nil
}

func (m *memBackend) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		name := strings.TrimPrefix(k, bucket+"/")
		if name != k && strings.HasPrefix(name, prefix) {
			out = append(out, ObjectInfo{Name: name, Size: int64(len(v))})
		}
	}
	return out, nil
}

func newTestStore(t *testing.T, b Backend) *Store {
	t.Helper()
	s, err := NewStore(b, Config{
		TemplatesBucket: "kiosk-templates",
		DocumentsBucket: "kiosk-docs",
		PublicBaseURL:   "https://cdn.example.com/",
		Backoff:         time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "job-42/pwd535_v1.pdf", ObjectPath("job-42", "pwd535", 1))
	assert.Equal(t, "job-42/wrd_v12.pdf", ObjectPath("job-42", "wrd", 12))
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil, Config{TemplatesBucket: "a", DocumentsBucket: "b"}, nil)
	assert.Error(t, err)
	_, err = NewStore(newMemBackend(), Config{TemplatesBucket: "a"}, nil)
	assert.Error(t, err)
}

func TestStore_UpsertSamePath(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(t, b)
	ctx := context.Background()

	p1, err := s.Store(ctx, "job-1", "pwd535", 1, []byte("first"))
	require.NoError(t, err)
	p2, err := s.Store(ctx, "job-1", "pwd535", 1, []byte("second"))
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, []string{"job-1/pwd535_v1.pdf", "job-1/pwd535_v1.pdf"}, b.writes)
	assert.Equal(t, []byte("second"), b.objects["kiosk-docs/job-1/pwd535_v1.pdf"])
	assert.Equal(t, s.PublicURL(p1), s.PublicURL(p2))
}

func TestStore_RetriesTransientFailures(t *testing.T) {
	b := newMemBackend()
	b.failures = []error{&googleapi.Error{Code: 503}, context.DeadlineExceeded}
	s := newTestStore(t, b)

	p, err := s.Store(context.Background(), "job-1", "wrd", 2, []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, "job-1/wrd_v2.pdf", p)
	assert.Len(t, b.writes, 3)
}

func TestStore_PermanentFailure(t *testing.T) {
	b := newMemBackend()
	denied := &googleapi.Error{Code: 403, Message: "forbidden"}
	b.failures = []error{denied}
	s := newTestStore(t, b)

	_, err := s.Store(context.Background(), "job-1", "wrd", 1, []byte("pdf"))

	var writeErr *StorageWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "job-1/wrd_v1.pdf", writeErr.Path)
	assert.ErrorIs(t, err, denied)
	assert.Len(t, b.writes, 1, "403 is not retried")
}

func TestStore_GivesUpAfterMaxAttempts(t *testing.T) {
	b := newMemBackend()
	b.failures = []error{&googleapi.Error{Code: 500}, &googleapi.Error{Code: 500}, &googleapi.Error{Code: 500}, &googleapi.Error{Code: 500}}
	s := newTestStore(t, b)

	_, err := s.Store(context.Background(), "job-1", "wrd", 1, []byte("pdf"))

	var writeErr *StorageWriteError
	assert.ErrorAs(t, err, &writeErr)
	assert.Len(t, b.writes, 3)
}

func TestStore_PublicURL(t *testing.T) {
	s := newTestStore(t, newMemBackend())
	assert.Equal(t, "https://cdn.example.com/kiosk-docs/job-1/pwd535_v3.pdf", s.PublicURL("job-1/pwd535_v3.pdf"))
	assert.Equal(t, "https://cdn.example.com/kiosk-docs/job%201/wrd_v1.pdf", s.PublicURL("job 1/wrd_v1.pdf"))
	assert.Equal(t, "https://cdn.example.com/kiosk-docs/never/written_v9.pdf", s.PublicURL("never/written_v9.pdf"))
}

func TestStore_Templates(t *testing.T) {
	b := newMemBackend()
	b.objects["kiosk-templates/pwd-535.pdf"] = []byte("%PDF-1.4")
	s := newTestStore(t, b)
	ctx := context.Background()

	ok, err := s.TemplateExists(ctx, "pwd-535.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TemplateExists(ctx, "wrd.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := s.FetchTemplate(ctx, "pwd-535.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	_, err = s.FetchTemplate(ctx, "wrd.pdf")
	var readErr *StorageReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "wrd.pdf", readErr.Key)
	assert.ErrorIs(t, err, ErrNotFound)

	b.statErr = errors.New("permission denied")
	_, err = s.TemplateExists(ctx, "pwd-535.pdf")
	assert.ErrorAs(t, err, &readErr)
}

func TestStore_Versions(t *testing.T) {
	b := newMemBackend()
	s := newTestStore(t, b)
	ctx := context.Background()
	for _, v := range []int{10, 2, 1} {
		_, err := s.Store(ctx, "job-1", "pwd535", v, []byte("x"))
		require.NoError(t, err)
	}
	_, err := s.Store(ctx, "job-1", "wrd", 1, []byte("x"))
	require.NoError(t, err)
	_, err = s.Store(ctx, "job-10", "pwd535", 1, []byte("x"))
	require.NoError(t, err)

	versions, err := s.Versions(ctx, "job-1", models.DocProofOfSex)
	require.NoError(t, err)

	require.Len(t, versions, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{versions[0].Version, versions[1].Version, versions[2].Version})
	assert.Equal(t, "job-1/pwd535_v10.pdf", versions[2].Path)
	assert.Equal(t, "https://cdn.example.com/kiosk-docs/job-1/pwd535_v10.pdf", versions[2].PublicURL)
}
