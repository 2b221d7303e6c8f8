package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welisten/apiserver/config"
	"google.golang.org/api/googleapi"
)

type memBackend struct {
	bucket  string
	created bool
	objects map[string][]byte
}

func (m *memBackend) EnsureBucket(context.Context) error {
	m.created = true
	return nil
}

func (m *memBackend) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func (m *memBackend) Bucket() string { return m.bucket }

func TestStorageDelegatesToBackend(t *testing.T) {
	backend := &memBackend{bucket: "exports"}
	s := NewStorage(backend)

	require.NoError(t, s.EnsureBucket(context.Background()))
	require.NoError(t, s.Put(context.Background(), "exports/a.json", bytes.NewReader([]byte("{}")), 2, "application/json"))

	assert.True(t, backend.created)
	assert.Equal(t, []byte("{}"), backend.objects["exports/a.json"])
	assert.Equal(t, "exports", s.Bucket())
}

func TestOpenMinio(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{
		Backend: "minio",
		Minio: config.MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "welisten",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "welisten", s.Bucket())
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "minio", Minio: config.MinioConfig{Endpoint: "localhost:9000"}})
	assert.ErrorContains(t, err, "access key and secret key are required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "gcs bucket is required")

	_, err = Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestBucketCreationRacesAreTolerated(t *testing.T) {
	assert.True(t, bucketAlreadyOwned(minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}))
	assert.False(t, bucketAlreadyOwned(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, bucketAlreadyOwned(errors.New("dial tcp: connection refused")))

	assert.True(t, isConflict(fmt.Errorf("create: %w", &googleapi.Error{Code: http.StatusConflict})))
	assert.False(t, isConflict(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isConflict(errors.New("timeout")))
}

func TestOpenGCSRequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), config.GCSConfig{ProjectID: "welisten"})
	assert.EqualError(t, err, "gcs bucket is required")
}
