package interfaces

import "context"

// MediaStore defines the interface for durable media persistence (S3).
// Upload takes a path to a file on local disk and returns the public URL of
// the stored object. An empty URL without an error is treated by callers as
// an upload failure.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
