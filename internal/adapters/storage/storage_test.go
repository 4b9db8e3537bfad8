package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/data-forge/internal/adapters/storage"
	"github.com/ammerola/data-forge/test/helpers"
)

func TestLocalStorage_UploadAndLink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewLocalStorage(dir, "http://localhost:8080/exports/", helpers.TestLogger())
	require.NoError(t, err)

	path, err := store.Upload(ctx, "postcards/export.csv", strings.NewReader("id,name\n1,a"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "postcards", "export.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,a", string(data))

	link, err := store.GetPresignedURL(ctx, "postcards/export.csv", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/exports/postcards/export.csv", link)

	require.NoError(t, store.Delete(ctx, "postcards/export.csv"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Delete(ctx, "postcards/export.csv"))
}

func TestLocalStorage_FileLinkWithoutBaseURL(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), "", helpers.TestLogger())
	require.NoError(t, err)

	_, err = store.Upload(ctx, "a.json", strings.NewReader("[]"), "")
	require.NoError(t, err)

	link, err := store.GetPresignedURL(ctx, "a.json", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "file://"))
	assert.True(t, strings.HasSuffix(link, "/a.json"))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), "", helpers.TestLogger())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.csv", "/etc/passwd", "."} {
		t.Run("key_"+key, func(t *testing.T) {
			_, err := store.Upload(ctx, key, strings.NewReader("x"), "")
			assert.ErrorIs(t, err, storage.ErrInvalidKey)
		})
	}
}

func TestLocalStorage_MissingFileHasNoLink(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "http://x", helpers.TestLogger())
	require.NoError(t, err)

	_, err = store.GetPresignedURL(context.Background(), "missing.csv", time.Minute)
	assert.Error(t, err)
}

type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPut {
		body, _ := io.ReadAll(r.Body)
		f.bodies[r.URL.Path] = string(body)
		w.Header().Set("ETag", `"etag"`)
	}
	w.WriteHeader(http.StatusOK)
}

func newFakeS3Storage(t *testing.T) (*storage.S3Storage, *fakeS3) {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	fake := &fakeS3{bodies: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := storage.NewS3Storage(context.Background(), &storage.S3Config{
		Region:          "us-east-1",
		Bucket:          "forge-exports",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	}, helpers.TestLogger())
	require.NoError(t, err)

	return store, fake
}

func TestS3Storage_Upload(t *testing.T) {
	store, fake := newFakeS3Storage(t)

	location, err := store.Upload(context.Background(), "postcards/export.json", strings.NewReader(`[{"id":"1"}]`), "application/json")
	require.NoError(t, err)
	assert.Contains(t, location, "/forge-exports/postcards/export.json")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "HEAD /forge-exports", fake.requests[0])
	assert.Equal(t, `[{"id":"1"}]`, fake.bodies["/forge-exports/postcards/export.json"])
}

func TestS3Storage_GetPresignedURL(t *testing.T) {
	store, _ := newFakeS3Storage(t)

	link, err := store.GetPresignedURL(context.Background(), "postcards/export.csv", 15*time.Minute)
	require.NoError(t, err)

	assert.Contains(t, link, "/forge-exports/postcards/export.csv")
	assert.Contains(t, link, "X-Amz-Expires=900")
	assert.Contains(t, link, "X-Amz-Signature=")
}

func TestS3Storage_DeleteAndExists(t *testing.T) {
	store, fake := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "postcards/export.csv"))

	ok, err := store.Exists(ctx, "postcards/export.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.requests, "DELETE /forge-exports/postcards/export.csv")
}
