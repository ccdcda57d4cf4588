// Package attachments stores claim attachment content in a blob bucket.
// The aggregate's event log only carries the content id and metadata; the
// bytes live here, behind a portable bucket URL (file://, s3://, mem://).
package attachments

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// bucket driver
	_ "gocloud.dev/blob/memblob"  // mem:// bucket driver, for tests
)

// Store reads and writes attachment content by content id.
type Store struct {
	bucket *blob.Bucket
}

// OpenStore opens the bucket at the given URL.
func OpenStore(ctx context.Context, bucketURL string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment bucket: %w", err)
	}
	return &Store{bucket: bucket}, nil
}

// NewStore wraps an already-open bucket.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

func contentKey(contentID uuid.UUID) string {
	return "attachments/" + contentID.String()
}

// Put uploads content and returns the content id to record on the claim.
func (s *Store) Put(ctx context.Context, mimeType string, content io.Reader) (uuid.UUID, error) {
	contentID := uuid.New()
	w, err := s.bucket.NewWriter(ctx, contentKey(contentID), &blob.WriterOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to open attachment writer: %w", err)
	}
	if _, err := io.Copy(w, content); err != nil {
		w.Close()
		return uuid.Nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to finalize attachment: %w", err)
	}
	return contentID, nil
}

// Get opens the content stream for an attachment. The caller must close it.
func (s *Store) Get(ctx context.Context, contentID uuid.UUID) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, contentKey(contentID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", contentID, err)
	}
	return r, nil
}

// Exists reports whether content is stored for the id.
func (s *Store) Exists(ctx context.Context, contentID uuid.UUID) (bool, error) {
	return s.bucket.Exists(ctx, contentKey(contentID))
}

// Delete removes the content for an attachment.
func (s *Store) Delete(ctx context.Context, contentID uuid.UUID) error {
	if err := s.bucket.Delete(ctx, contentKey(contentID)); err != nil {
		return fmt.Errorf("failed to delete attachment %s: %w", contentID, err)
	}
	return nil
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
