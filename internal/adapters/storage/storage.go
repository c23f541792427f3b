package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"occasio/internal/domain"
)

// Config selects and configures the blob store.
type Config struct {
	Provider string
	S3       S3Config
	Cloud    CloudinaryConfig
}

// NewBlobStore creates a blob store from config. Provider "s3" uses Amazon S3,
// "cloudinary" uses Cloudinary; "noop" or empty keeps nothing and returns fake URLs.
func NewBlobStore(config Config, logger *slog.Logger) (domain.BlobStore, error) {
	switch config.Provider {
	case "s3":
		return NewS3Store(config.S3)
	case "cloudinary":
		return NewCloudinaryStore(config.Cloud)
	case "noop", "":
		return &noopStore{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown blob provider %q", config.Provider)
	}
}

type noopStore struct {
	logger *slog.Logger
}

func (n *noopStore) Store(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	size, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", err
	}
	n.logger.Info("blob would be stored (noop)", "key", key, "content_type", contentType, "bytes", size)
	return "noop://" + key, nil
}

func (n *noopStore) Delete(_ context.Context, key string) error {
	n.logger.Info("blob would be deleted (noop)", "key", key)
	return nil
}
