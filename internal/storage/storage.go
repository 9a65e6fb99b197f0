package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohamed20039/Renter/internal/config"
)

// Storage stores uploaded images.
type Storage interface {
	// Save stores the content under key.
	Save(ctx context.Context, key string, r io.Reader, contentType string) error

	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for key.
	URL(key string) string
}

// New creates the Storage selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg.UploadDir, cfg.BaseURL)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewKey builds a unique object key like "users/2025/01/16/<uuid>.jpg".
func NewKey(prefix, filename string) string {
	d := time.Now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
