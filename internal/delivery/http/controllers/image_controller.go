package controllers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"
)

const (
	// maxUploadBytes bounds one multipart request.
	maxUploadBytes = 20 << 20
	// maxMemoryBytes is how much of a multipart body is buffered in memory before spilling to disk.
	maxMemoryBytes = 8 << 20
	// maxGalleryFiles bounds the number of files in one gallery upload.
	maxGalleryFiles = 10
)

// RemoveGalleryImagesRequest is the request body for DELETE /events/{eventID}/gallery.
type RemoveGalleryImagesRequest struct {
	ImageIDs []string `json:"image_ids"`
}

// Validate implements Validator.
func (r RemoveGalleryImagesRequest) Validate() []string {
	if len(r.ImageIDs) == 0 {
		return []string{"image_ids is required"}
	}
	return nil
}

// RemoveGalleryImagesResponse is the data payload of DELETE /events/{eventID}/gallery.
type RemoveGalleryImagesResponse struct {
	Removed int `json:"removed"`
}

// ImageSuccessResponse is the success response envelope for PUT /events/{eventID}/images/{kind}.
type ImageSuccessResponse struct {
	Data  *domain.Image     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ImagesSuccessResponse is the success response envelope for POST /events/{eventID}/gallery.
type ImagesSuccessResponse struct {
	Data  []*domain.Image   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

type ImageController struct {
	Logger  *slog.Logger
	Service domain.ImageService
}

func NewImageController(logger *slog.Logger, svc domain.ImageService) *ImageController {
	return &ImageController{
		Logger:  logger,
		Service: svc,
	}
}

// parseMultipart reads the multipart form of r within the upload limits and
// writes a 400 on failure.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "upload too large")
			return false
		}
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid multipart form")
		return false
	}
	return true
}

// uploadFromHeader opens one multipart file. The caller closes the returned file.
func uploadFromHeader(fh *multipart.FileHeader, title string) (domain.ImageUpload, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.ImageUpload{}, nil, err
	}
	return domain.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Title:       strings.TrimSpace(title),
		Body:        f,
	}, f, nil
}

// SetEventImage godoc
// @Summary Set the main or cover image
// @Description Uploads the main or cover image of an event the caller owns, replacing the previous one. Multipart field "image" holds the file, optional field "title" its caption.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param kind path string true "main or cover"
// @Param image formData file true "Image file"
// @Param title formData string false "Caption"
// @Success 200 {object} controllers.ImageSuccessResponse "data contains the stored image"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/images/{kind} [put]
func (c *ImageController) SetEventImage(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	kind, err := domain.ParseSingleImageKind(r.PathValue("kind"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "exactly one image file is required")
		return
	}
	upload, f, err := uploadFromHeader(files[0], r.FormValue("title"))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "could not read image")
		return
	}
	defer f.Close()

	img, err := c.Service.SetEventImage(r.Context(), eventID, userID, kind, upload)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, img)
}

// AddGalleryImages godoc
// @Summary Add gallery images
// @Description Uploads gallery images for an event the caller owns. Multipart field "images" may repeat. Either every file is stored or none is.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param images formData file true "Image files"
// @Success 201 {object} controllers.ImagesSuccessResponse "data contains the stored images"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/gallery [post]
func (c *ImageController) AddGalleryImages(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "at least one image file is required")
		return
	}
	if len(files) > maxGalleryFiles {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "too many files")
		return
	}
	uploads := make([]domain.ImageUpload, 0, len(files))
	for _, fh := range files {
		upload, f, err := uploadFromHeader(fh, "")
		if err != nil {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "could not read image")
			return
		}
		defer f.Close()
		uploads = append(uploads, upload)
	}

	imgs, err := c.Service.AddGalleryImages(r.Context(), eventID, userID, uploads)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, imgs)
}

// RemoveGalleryImages godoc
// @Summary Remove gallery images
// @Description Deletes the listed gallery images of an event the caller owns. Ids that do not belong to the gallery are ignored.
// @Tags images
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body RemoveGalleryImagesRequest true "Image ids"
// @Success 200 {object} helpers.APIResponse "data.removed is the number of deleted images"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/gallery [delete]
func (c *ImageController) RemoveGalleryImages(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req RemoveGalleryImagesRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	n, err := c.Service.RemoveGalleryImages(r.Context(), eventID, userID, req.ImageIDs)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, RemoveGalleryImagesResponse{Removed: n})
}
