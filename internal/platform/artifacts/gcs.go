package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/portakall/retromeet/internal/platform/gcp"
)

type gcsStore struct {
	bucket gcp.BucketService
}

// NewGCSStore serves artifacts from a bucket. GCS object writes are atomic.
func NewGCSStore(bucket gcp.BucketService) Store {
	return &gcsStore{bucket: bucket}
}

func (s *gcsStore) Write(ctx context.Context, key, contentType string, data []byte) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	return s.bucket.Upload(ctx, clean, contentType, bytes.NewReader(data))
}

func (s *gcsStore) Read(ctx context.Context, key string) ([]byte, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.bucket.Download(ctx, clean)
	if errors.Is(err, gcp.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *gcsStore) URL(key string) string {
	return s.bucket.PublicURL(key)
}
