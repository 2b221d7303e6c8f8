package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/welisten/apiserver/config"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSClient writes export snapshots to a Google Cloud Storage bucket.
type GCSClient struct {
	client *storage.Client
	bucket string
	// projectID is only used to create a missing bucket.
	projectID string
}

// NewGCSClient builds a client from the credentials file in cfg, or from
// application default credentials when none is set.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSClient{client: client, bucket: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// EnsureBucket creates the export bucket on first use. A concurrent
// creation by another export is not an error.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	handle := g.client.Bucket(g.bucket)
	_, err := handle.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("lookup bucket %s: %w", g.bucket, err)
	case strings.TrimSpace(g.projectID) == "":
		return fmt.Errorf("bucket %s does not exist and no project id is set to create it", g.bucket)
	}

	if err := handle.Create(ctx, g.projectID, nil); err != nil && !isConflict(err) {
		return fmt.Errorf("create bucket %s: %w", g.bucket, err)
	}
	return nil
}

// Put uploads one snapshot. Small snapshots are sent in a single request
// instead of a resumable upload.
func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	if writer.ContentType == "" {
		writer.ContentType = defaultContentType
	}
	if size >= 0 && size < googleapi.DefaultUploadChunkSize {
		writer.ChunkSize = 0
	}

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", g.bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", g.bucket, key, err)
	}
	return nil
}

func (g *GCSClient) Bucket() string {
	return g.bucket
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
