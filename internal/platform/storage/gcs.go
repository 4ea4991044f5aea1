package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	now    func() time.Time
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore connects to bucket. Without a credentials file the client
// uses application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, now: time.Now}, nil
}

func (s *GCSStore) object(key string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func (s *GCSStore) Put(ctx context.Context, folder, originalName, contentType string, r io.Reader) (Object, error) {
	key := ObjectKey(folder, originalName, s.now())

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", SanitizeName(originalName))

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return Object{Key: key, FileName: originalName, Size: n, ContentType: contentType}, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return r, nil
}

func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
