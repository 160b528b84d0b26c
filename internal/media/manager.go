package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"threadline/internal/storage"
)

// Manager coordinates remote image blobs with store mutations. Uploads
// always happen before the ref they supersede is deleted, and a superseded
// ref is only deleted once the record no longer points at it. Delete
// failures are logged and swallowed; the orphaned blob is the accepted cost.
type Manager struct {
	storage storage.Service
	opts    storage.UploadOptions
	logger  *logrus.Logger
}

func NewManager(store storage.Service, opts storage.UploadOptions, logger *logrus.Logger) *Manager {
	return &Manager{
		storage: store,
		opts:    opts,
		logger:  logger,
	}
}

// Attach returns the ref the caller should persist. With no blob it is a
// no-op returning previousRef. With a blob it uploads under a fresh object
// name and leaves previousRef untouched; the caller retires the superseded
// ref with Discard only after its record write commits, so a failed write
// never leaves the record pointing at a deleted blob.
func (m *Manager) Attach(ctx context.Context, blob []byte, contentType, previousRef string) (string, error) {
	if len(blob) == 0 {
		return previousRef, nil
	}

	name := uuid.NewString() + extensionFor(contentType)
	ref, err := m.storage.UploadObject(ctx, m.opts, name, contentType, bytes.NewReader(blob))
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return ref, nil
}

// Discard deletes a remote blob best-effort. Used when a post carrying an
// image is deleted and when a replaced ref is retired.
func (m *Manager) Discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := m.storage.DeleteObject(ctx, m.opts.Bucket, ref); err != nil {
		m.logger.Warnf("delete media %s: %v", ref, err)
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
