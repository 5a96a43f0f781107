// Package storage archives uploaded invoice files in object storage so
// the original document outlives local scratch space.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/storage/minio"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/storage/s3"
)

type Type string

const (
	TypeS3    Type = "s3"
	TypeMinio Type = "minio"
)

// Storage is the object store behind invoice uploads.
type Storage interface {
	// Store writes the file under key and returns the stored key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens the stored file for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the stored file.
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes files last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// New builds the backend named in the configuration.
func New(cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	switch Type(cfg.Type) {
	case TypeS3:
		return s3.New(cfg, log)
	case TypeMinio:
		return minio.New(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
