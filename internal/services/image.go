package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"occasio/internal/domain"
)

type imageService struct {
	eventRepo      domain.EventRepository
	imageRepo      domain.ImageRepository
	blobs          domain.BlobStore
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewImageService creates the event image workflow on top of a BlobStore.
func NewImageService(eventRepo domain.EventRepository, imageRepo domain.ImageRepository, blobs domain.BlobStore, logger *slog.Logger, timeout time.Duration) domain.ImageService {
	return &imageService{
		eventRepo:      eventRepo,
		imageRepo:      imageRepo,
		blobs:          blobs,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *imageService) checkOwner(ctx context.Context, eventID, ownerID string) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	return nil
}

func blobKey(eventID string, kind domain.ImageKind, filename string) string {
	return fmt.Sprintf("events/%s/%s/%s%s", eventID, kind, uuid.NewString(), strings.ToLower(path.Ext(filename)))
}

// save stores the blob and then its row. A failed insert removes the blob again.
func (s *imageService) save(ctx context.Context, eventID string, kind domain.ImageKind, upload domain.ImageUpload) (*domain.Image, error) {
	if upload.Body == nil {
		return nil, fmt.Errorf("%w: image body is required", domain.ErrInvalidInput)
	}
	if upload.ContentType != "" && !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", domain.ErrInvalidInput, upload.Filename)
	}
	key := blobKey(eventID, kind, upload.Filename)
	url, err := s.blobs.Store(ctx, key, upload.ContentType, upload.Body)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	now := s.now()
	img := &domain.Image{
		EventID:   eventID,
		Kind:      kind,
		Key:       key,
		URL:       url,
		Title:     upload.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.imageRepo.Create(ctx, img); err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.Error("orphaned image blob", "key", key, "error", derr)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

// remove deletes the blob first, then the row.
func (s *imageService) remove(ctx context.Context, img *domain.Image) error {
	if err := s.blobs.Delete(ctx, img.Key); err != nil {
		return fmt.Errorf("delete image blob: %w", err)
	}
	if err := s.imageRepo.Delete(ctx, img.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// SetEventImage stores the main or cover image, replacing the previous one.
func (s *imageService) SetEventImage(ctx context.Context, eventID, ownerID string, kind domain.ImageKind, upload domain.ImageUpload) (*domain.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if kind != domain.ImageKindMain && kind != domain.ImageKindCover {
		return nil, fmt.Errorf("%w: image kind must be main or cover", domain.ErrInvalidInput)
	}
	if err := s.checkOwner(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	previous, err := s.imageRepo.ListByEventAndKind(ctx, eventID, kind)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	img, err := s.save(ctx, eventID, kind, upload)
	if err != nil {
		return nil, err
	}
	for _, old := range previous {
		if err := s.remove(ctx, old); err != nil {
			s.logger.Warn("replaced image not removed", "image_id", old.ID, "error", err)
		}
	}
	return img, nil
}

// AddGalleryImages stores every upload or none of them.
func (s *imageService) AddGalleryImages(ctx context.Context, eventID, ownerID string, uploads []domain.ImageUpload) ([]*domain.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", domain.ErrInvalidInput)
	}
	if err := s.checkOwner(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	saved := make([]*domain.Image, 0, len(uploads))
	for _, upload := range uploads {
		img, err := s.save(ctx, eventID, domain.ImageKindGallery, upload)
		if err != nil {
			for _, done := range saved {
				if rerr := s.remove(ctx, done); rerr != nil {
					s.logger.Error("gallery rollback", "image_id", done.ID, "error", rerr)
				}
			}
			return nil, err
		}
		saved = append(saved, img)
	}
	return saved, nil
}

// RemoveGalleryImages deletes the listed gallery images of the event and
// returns how many were removed. IDs of other events or kinds are ignored.
func (s *imageService) RemoveGalleryImages(ctx context.Context, eventID, ownerID string, imageIDs []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if len(imageIDs) == 0 {
		return 0, fmt.Errorf("%w: image ids are required", domain.ErrInvalidInput)
	}
	if err := s.checkOwner(ctx, eventID, ownerID); err != nil {
		return 0, err
	}
	images, err := s.imageRepo.GetByIDs(ctx, eventID, imageIDs)
	if err != nil {
		return 0, fmt.Errorf("get images: %w", err)
	}
	removed := 0
	for _, img := range images {
		if img.Kind != domain.ImageKindGallery {
			continue
		}
		if err := s.remove(ctx, img); err != nil {
			return removed, err
		}
		removed++
	}
	if removed == 0 {
		return 0, fmt.Errorf("%w: no matching gallery images", domain.ErrNotFound)
	}
	return removed, nil
}

func (s *imageService) DeleteEventImages(ctx context.Context, eventID string) error {
	images, err := s.imageRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	for _, img := range images {
		if err := s.remove(ctx, img); err != nil {
			return err
		}
	}
	return nil
}
