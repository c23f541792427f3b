package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ImageKind distinguishes the single main and cover images from gallery images.
type ImageKind string

const (
	ImageKindMain    ImageKind = "main"
	ImageKindCover   ImageKind = "cover"
	ImageKindGallery ImageKind = "gallery"
)

// ParseSingleImageKind accepts the kinds an event holds at most one of.
func ParseSingleImageKind(s string) (ImageKind, error) {
	switch k := ImageKind(s); k {
	case ImageKindMain, ImageKindCover:
		return k, nil
	}
	return "", fmt.Errorf("%w: image kind must be %q or %q", ErrInvalidInput, ImageKindMain, ImageKindCover)
}

// Image is an uploaded event picture. Key identifies the blob in the store;
// URL is the durable public address returned by the store.
// swagger:model Image
type Image struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Kind      ImageKind `json:"kind"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageUpload is an image body received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Title       string
	Body        io.Reader
}

// ImageRepository defines storage for image rows.
type ImageRepository interface {
	Create(ctx context.Context, img *Image) error
	ListByEvent(ctx context.Context, eventID string) ([]*Image, error)
	ListByEventAndKind(ctx context.Context, eventID string, kind ImageKind) ([]*Image, error)
	GetByIDs(ctx context.Context, eventID string, ids []string) ([]*Image, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore persists binary objects and returns a durable URL for them.
// Delete must succeed when the key is already gone.
type BlobStore interface {
	Store(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// ImageService defines owner-only image management for events.
type ImageService interface {
	SetEventImage(ctx context.Context, eventID, ownerID string, kind ImageKind, upload ImageUpload) (*Image, error)
	AddGalleryImages(ctx context.Context, eventID, ownerID string, uploads []ImageUpload) ([]*Image, error)
	RemoveGalleryImages(ctx context.Context, eventID, ownerID string, imageIDs []string) (int, error)
	// DeleteEventImages removes every image of the event, blob first.
	DeleteEventImages(ctx context.Context, eventID string) error
}
