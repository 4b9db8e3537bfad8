// internal/core/ports/export_storage.go
package ports

import (
	"context"
	"io"
	"time"
)

// ExportStorage stores generated export files for later download
type ExportStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
