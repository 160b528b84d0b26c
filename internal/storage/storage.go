package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// UploadOptions carries the bucket and key prefix objects are written under.
type UploadOptions struct {
	Bucket    string
	KeyPrefix string
}

// Service abstracts remote object storage for media blobs. Refs returned by
// UploadObject are opaque to callers and round-trip through DeleteObject.
type Service interface {
	UploadObject(ctx context.Context, opts UploadOptions, name, contentType string, body io.Reader) (string, error)
	DeleteObject(ctx context.Context, bucket, ref string) error
}

// ExtractKey resolves an s3://bucket/key ref back to its object key,
// validating the bucket when one is configured.
func ExtractKey(ref, bucket string) (string, error) {
	if !strings.HasPrefix(ref, "s3://") {
		return "", fmt.Errorf("invalid s3 ref")
	}
	rest := strings.TrimPrefix(ref, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", fmt.Errorf("invalid s3 ref")
	}
	if bucket != "" && parts[0] != bucket {
		return "", fmt.Errorf("s3 bucket mismatch")
	}
	if len(parts) == 1 || parts[1] == "" {
		return "", fmt.Errorf("s3 key missing")
	}
	return strings.TrimPrefix(parts[1], "/"), nil
}
