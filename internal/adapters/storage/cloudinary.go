package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"occasio/internal/domain"
)

// CloudinaryConfig holds Cloudinary credentials and the folder uploads go to.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// cloudinaryAPI is the subset of the Cloudinary upload API the store uses.
type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type cloudinaryStore struct {
	api    cloudinaryAPI
	folder string
}

// NewCloudinaryStore returns a BlobStore backed by Cloudinary. The blob key,
// without its extension, becomes the asset's public ID inside Folder.
func NewCloudinaryStore(config CloudinaryConfig) (domain.BlobStore, error) {
	cld, err := cloudinary.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return &cloudinaryStore{api: &cld.Upload, folder: config.Folder}, nil
}

func publicID(key string) string {
	return key[:len(key)-len(path.Ext(key))]
}

func (c *cloudinaryStore) fullID(key string) string {
	if c.folder == "" {
		return publicID(key)
	}
	return c.folder + "/" + publicID(key)
}

func (c *cloudinaryStore) Store(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	resp, err := c.api.Upload(ctx, body, uploader.UploadParams{
		PublicID: publicID(key),
		Folder:   c.folder,
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("upload error: no url returned")
	}
	return resp.SecureURL, nil
}

// Delete destroys the asset. A missing asset is not an error.
func (c *cloudinaryStore) Delete(ctx context.Context, key string) error {
	resp, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: c.fullID(key)})
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("delete error: %s", resp.Error.Message)
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("delete error: unexpected result %q", resp.Result)
	}
	return nil
}
