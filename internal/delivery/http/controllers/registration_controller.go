package controllers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"
)

// warnConfirmationNotSent is returned alongside a successful registration whose confirmation email failed.
const warnConfirmationNotSent = "registration saved but the confirmation email could not be sent"

// RegistrationDetailsRequest is the request body for POST /events/{eventID}/registrations
// and PATCH /events/{eventID}/registrations/me. Both fields are optional.
type RegistrationDetailsRequest struct {
	Badge       string `json:"badge"`
	Preferences string `json:"preferences"`
}

// Validate implements Validator.
func (d RegistrationDetailsRequest) Validate() []string {
	var errs []string
	if len(d.Badge) > 100 {
		errs = append(errs, "badge must be at most 100 characters")
	}
	if len(d.Preferences) > 1000 {
		errs = append(errs, "preferences must be at most 1000 characters")
	}
	return errs
}

// UpdateRSVPRequest is the request body for PUT /events/{eventID}/registrations/me/rsvp.
type UpdateRSVPRequest struct {
	Status string `json:"status"` // not-going, maybe or going
}

// Validate implements Validator.
func (u UpdateRSVPRequest) Validate() []string {
	if strings.TrimSpace(u.Status) == "" {
		return []string{"status is required"}
	}
	return nil
}

// RegisterSuccessResponse is the success response envelope for POST /events/{eventID}/registrations (201).
type RegisterSuccessResponse struct {
	Data     *domain.RegistrationResult `json:"data"`
	Error    *helpers.APIError          `json:"error"`
	Warnings []string                   `json:"warnings,omitempty"`
}

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
	}
}

// eventAndUser reads the event path value and the caller. On failure it has
// already written the response.
func eventAndUser(w http.ResponseWriter, r *http.Request) (eventID, userID string, ok bool) {
	eventID, ok = helpers.PathUUID(w, r, "eventID")
	if !ok {
		return "", "", false
	}
	userID, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", "", false
	}
	return eventID, userID, true
}

// Register godoc
// @Summary Register for an event
// @Description Reserves a seat for the authenticated user. Fails when the event is full, closed, past its deadline, or the user is already registered. A confirmation email is sent; if it fails the registration stands and a warning is returned.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body RegistrationDetailsRequest false "Badge and preferences"
// @Success 201 {object} controllers.RegisterSuccessResponse "data contains participant and reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request, event_full or registration_closed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: already_registered"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	var req RegistrationDetailsRequest
	if r.ContentLength != 0 && r.Body != http.NoBody {
		if !helpers.DecodeAndValidate(w, r, &req) {
			return
		}
	}
	res, err := c.Service.Register(r.Context(), eventID, userID, strings.TrimSpace(req.Badge), strings.TrimSpace(req.Preferences))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if res.NotificationFailed {
		helpers.WriteJSONSuccess(w, http.StatusCreated, res, warnConfirmationNotSent)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, res)
}

// GetMyRegistration godoc
// @Summary Get my registration
// @Description Returns the caller's participant record for the event.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.ParticipantSuccessResponse "data contains the participant"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/me [get]
func (c *RegistrationController) GetMyRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	p, err := c.Service.CheckRegistration(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// UpdateMyRegistration godoc
// @Summary Update my badge and preferences
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body RegistrationDetailsRequest true "Badge and preferences"
// @Success 200 {object} controllers.ParticipantSuccessResponse "data contains the updated participant"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/me [patch]
func (c *RegistrationController) UpdateMyRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	var req RegistrationDetailsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.Service.UpdateDetails(r.Context(), eventID, userID, strings.TrimSpace(req.Badge), strings.TrimSpace(req.Preferences))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// UpdateMyRSVP godoc
// @Summary Change my RSVP
// @Description Moves the caller's RSVP between not-going, maybe and going. checked-in is set only by the organizer and cannot be left.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body UpdateRSVPRequest true "New status"
// @Success 200 {object} controllers.ParticipantSuccessResponse "data contains the updated participant"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or invalid_transition"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/me/rsvp [put]
func (c *RegistrationController) UpdateMyRSVP(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	var req UpdateRSVPRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	status, err := domain.ParseRSVPStatus(strings.TrimSpace(req.Status))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	p, err := c.Service.UpdateRSVP(r.Context(), eventID, userID, status)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}

// Unregister godoc
// @Summary Unregister from an event
// @Description Deletes the caller's registration and frees the seat. Checked-in participants cannot unregister.
// @Tags registrations
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "No content"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or invalid_state"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/me [delete]
func (c *RegistrationController) Unregister(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	if err := c.Service.Unregister(r.Context(), eventID, userID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMyQRCode godoc
// @Summary Get my check-in QR code
// @Description Returns a PNG QR code encoding the caller's participant token for this event.
// @Tags registrations
// @Produce png
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {file} binary "PNG image"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/me/qr [get]
func (c *RegistrationController) GetMyQRCode(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := eventAndUser(w, r)
	if !ok {
		return
	}
	png, err := c.Service.ParticipantQRCode(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
