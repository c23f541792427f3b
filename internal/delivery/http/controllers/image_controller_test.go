package controllers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formFile struct {
	field, name, contentType, body string
}

// multipartRequest builds a multipart request with the given files and text fields.
func multipartRequest(t *testing.T, method, path string, files []formFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, "http://test/api/v1"+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("eventID", testEventID)
	return withUser(req, testUserID, domain.RoleOrganizer)
}

func TestImageController_SetEventImage(t *testing.T) {
	t.Run("cover uploaded", func(t *testing.T) {
		svc := &fakeImageService{}
		ctrl := NewImageController(testLogger, svc)

		req := multipartRequest(t, http.MethodPut, "/events/"+testEventID+"/images/cover",
			[]formFile{{"image", "cover.png", "image/png", "png-bytes"}}, map[string]string{"title": " Stage "})
		req.SetPathValue("kind", "cover")
		rr := httptest.NewRecorder()
		ctrl.SetEventImage(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		env := decode[domain.Image](t, rr)
		assert.Equal(t, domain.ImageKindCover, env.Data.Kind)
		assert.Equal(t, "Stage", env.Data.Title)
		require.Len(t, svc.lastUploads, 1)
		assert.Equal(t, "cover.png", svc.lastUploads[0].Filename)
		assert.Equal(t, "image/png", svc.lastUploads[0].ContentType)
		assert.Equal(t, []string{"png-bytes"}, svc.bodies)
	})

	t.Run("gallery is not a single kind", func(t *testing.T) {
		svc := &fakeImageService{}
		ctrl := NewImageController(testLogger, svc)

		req := multipartRequest(t, http.MethodPut, "/events/"+testEventID+"/images/gallery",
			[]formFile{{"image", "a.png", "image/png", "x"}}, nil)
		req.SetPathValue("kind", "gallery")
		rr := httptest.NewRecorder()
		ctrl.SetEventImage(rr, req)

		requireErrorCode(t, rr, http.StatusBadRequest, helpers.ErrCodeBadRequest)
		assert.Empty(t, svc.lastUploads)
	})

	t.Run("missing file", func(t *testing.T) {
		ctrl := NewImageController(testLogger, &fakeImageService{})

		req := multipartRequest(t, http.MethodPut, "/events/"+testEventID+"/images/main", nil, map[string]string{"title": "x"})
		req.SetPathValue("kind", "main")
		rr := httptest.NewRecorder()
		ctrl.SetEventImage(rr, req)

		requireErrorCode(t, rr, http.StatusBadRequest, helpers.ErrCodeBadRequest)
	})

	t.Run("not multipart", func(t *testing.T) {
		ctrl := NewImageController(testLogger, &fakeImageService{})

		req := withUser(httptest.NewRequest(http.MethodPut, "http://test/api/v1/events/x/images/main", strings.NewReader(`{}`)), testUserID)
		req.Header.Set("Content-Type", "application/json")
		req.SetPathValue("eventID", testEventID)
		req.SetPathValue("kind", "main")
		rr := httptest.NewRecorder()
		ctrl.SetEventImage(rr, req)

		requireErrorCode(t, rr, http.StatusBadRequest, helpers.ErrCodeBadRequest)
	})

	t.Run("blob store down", func(t *testing.T) {
		ctrl := NewImageController(testLogger, &fakeImageService{setErr: fmt.Errorf("store blob: %w", assert.AnError)})

		req := multipartRequest(t, http.MethodPut, "/events/"+testEventID+"/images/main",
			[]formFile{{"image", "a.png", "image/png", "x"}}, nil)
		req.SetPathValue("kind", "main")
		rr := httptest.NewRecorder()
		ctrl.SetEventImage(rr, req)

		requireErrorCode(t, rr, http.StatusInternalServerError, helpers.ErrCodeInternalError)
	})
}

func TestImageController_AddGalleryImages(t *testing.T) {
	t.Run("all stored", func(t *testing.T) {
		svc := &fakeImageService{}
		ctrl := NewImageController(testLogger, svc)

		req := multipartRequest(t, http.MethodPost, "/events/"+testEventID+"/gallery", []formFile{
			{"images", "a.png", "image/png", "a"},
			{"images", "b.jpg", "image/jpeg", "b"},
		}, nil)
		rr := httptest.NewRecorder()
		ctrl.AddGalleryImages(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		env := decode[[]domain.Image](t, rr)
		require.Len(t, env.Data, 2)
		assert.Equal(t, "https://cdn.test/b.jpg", env.Data[1].URL)
		assert.Equal(t, []string{"a", "b"}, svc.bodies)
	})

	t.Run("no files", func(t *testing.T) {
		ctrl := NewImageController(testLogger, &fakeImageService{})

		req := multipartRequest(t, http.MethodPost, "/events/"+testEventID+"/gallery", nil, map[string]string{"x": "y"})
		rr := httptest.NewRecorder()
		ctrl.AddGalleryImages(rr, req)

		requireErrorCode(t, rr, http.StatusBadRequest, helpers.ErrCodeBadRequest)
	})

	t.Run("too many files", func(t *testing.T) {
		files := make([]formFile, maxGalleryFiles+1)
		for i := range files {
			files[i] = formFile{"images", fmt.Sprintf("%d.png", i), "image/png", "x"}
		}
		svc := &fakeImageService{}
		ctrl := NewImageController(testLogger, svc)

		req := multipartRequest(t, http.MethodPost, "/events/"+testEventID+"/gallery", files, nil)
		rr := httptest.NewRecorder()
		ctrl.AddGalleryImages(rr, req)

		requireErrorCode(t, rr, http.StatusBadRequest, helpers.ErrCodeBadRequest)
		assert.Empty(t, svc.lastUploads)
	})

	t.Run("not the owner", func(t *testing.T) {
		ctrl := NewImageController(testLogger, &fakeImageService{addErr: domain.ErrForbidden})

		req := multipartRequest(t, http.MethodPost, "/events/"+testEventID+"/gallery",
			[]formFile{{"images", "a.png", "image/png", "a"}}, nil)
		rr := httptest.NewRecorder()
		ctrl.AddGalleryImages(rr, req)

		requireErrorCode(t, rr, http.StatusForbidden, helpers.ErrCodeForbidden)
	})
}

func TestImageController_RemoveGalleryImages(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		removed    int
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "removed", body: `{"image_ids":["img-1","img-2"]}`, removed: 2, wantStatus: http.StatusOK},
		{name: "empty list", body: `{"image_ids":[]}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "nothing matched", body: `{"image_ids":["img-9"]}`, svcErr: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeImageService{removed: tt.removed, removeErr: tt.svcErr}
			ctrl := NewImageController(testLogger, svc)

			req := withUser(eventRequest(http.MethodDelete, "/events/"+testEventID+"/gallery", tt.body), testUserID)
			rr := httptest.NewRecorder()
			ctrl.RemoveGalleryImages(rr, req)

			if tt.wantCode != "" {
				requireErrorCode(t, rr, tt.wantStatus, tt.wantCode)
				return
			}
			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, 2, decode[RemoveGalleryImagesResponse](t, rr).Data.Removed)
			assert.Equal(t, []string{"img-1", "img-2"}, svc.lastIDs)
		})
	}
}
