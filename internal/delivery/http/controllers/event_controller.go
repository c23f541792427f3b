package controllers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"
)

// EventRequest is the request body for POST /events and PATCH /events/{eventID}.
// Updates replace every organizer-editable field.
type EventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Type        string    `json:"type"` // open or invite-only
	Date        time.Time `json:"date"`
	Deadline    time.Time `json:"deadline"`
	Capacity    int       `json:"capacity"`
}

// Validate implements Validator. Time-relative rules are checked by the service.
func (e EventRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, "title is required")
	}
	if e.Type != domain.EventTypeOpen && e.Type != domain.EventTypeInviteOnly {
		errs = append(errs, "type must be open or invite-only")
	}
	if e.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	if e.Deadline.IsZero() {
		errs = append(errs, "deadline is required")
	}
	if e.Capacity <= 0 {
		errs = append(errs, "capacity must be greater than 0")
	}
	return errs
}

func (e EventRequest) update() domain.EventUpdate {
	return domain.EventUpdate{
		Title:       strings.TrimSpace(e.Title),
		Description: strings.TrimSpace(e.Description),
		Location:    strings.TrimSpace(e.Location),
		City:        strings.TrimSpace(e.City),
		State:       strings.TrimSpace(e.State),
		Type:        e.Type,
		Date:        e.Date,
		Deadline:    e.Deadline,
		Capacity:    e.Capacity,
	}
}

// CheckInRequest is the request body for POST /events/{eventID}/check-ins.
type CheckInRequest struct {
	Token string `json:"token"` // participant id encoded in the QR code
}

// Validate implements Validator.
func (c CheckInRequest) Validate() []string {
	if strings.TrimSpace(c.Token) == "" {
		return []string{"token is required"}
	}
	return nil
}

// RSVPInvitationsResponse is the data payload of POST /events/{eventID}/rsvp-invitations.
type RSVPInvitationsResponse struct {
	Recipients int `json:"recipients"`
}

// EventSuccessResponse is the success response envelope for endpoints returning one event.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// EventDetailsSuccessResponse is the success response envelope for GET /events/{eventID}.
type EventDetailsSuccessResponse struct {
	Data  *domain.EventDetails `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

// ListEventsSuccessResponse is the success response envelope for GET /events/mine.
type ListEventsSuccessResponse struct {
	Data  helpers.Paginated[*domain.Event] `json:"data"`
	Error *helpers.APIError                `json:"error"`
}

// ParticipantSuccessResponse is the success response envelope for endpoints returning one participant.
type ParticipantSuccessResponse struct {
	Data  *domain.Participant `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
	CheckIn domain.CheckInService
}

func NewEventController(logger *slog.Logger, svc domain.EventService, checkIn domain.CheckInService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
		CheckIn: checkIn,
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates an event owned by the authenticated organizer. Remaining capacity starts at capacity and registrations open. A reminder is scheduled for 30 minutes before the start.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body EventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req EventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	u := req.update()
	event := domain.NewEvent(userID, u.Title, u.Description, u.Location, u.City, u.State, u.Type, u.Date, u.Deadline, u.Capacity, time.Now())
	if err := c.Service.CreateEvent(r.Context(), event); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// ListMyEvents godoc
// @Summary List my events
// @Description Returns a page of events owned by the authenticated organizer, newest first.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListEventsSuccessResponse "data contains items and pagination"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/mine [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	params := helpers.ParsePagination(r)
	events, total, err := c.Service.ListMyEvents(r.Context(), userID, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewPaginated(events, params, total))
}

// GetEvent godoc
// @Summary Get an event
// @Description Returns the event and its images.
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventDetailsSuccessResponse "data contains event and images"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	details, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, details)
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Replaces the editable fields of an event the caller owns. A capacity change shifts remaining capacity by the same amount and fails if it would go negative. A date change reschedules the reminder.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param event body EventRequest true "Event data"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req EventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), eventID, userID, req.update())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Deletes an event the caller owns together with its reminder, images, participants and history entries.
// @Tags events
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "No content"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Service.DeleteEvent(r.Context(), eventID, userID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisableRegistrations godoc
// @Summary Close registrations
// @Description Closes registrations for an event the caller owns. The close survives later unregistrations.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/disable [put]
func (c *EventController) DisableRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	event, err := c.Service.DisableRegistrations(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// SendRSVPInvitations godoc
// @Summary Ask participants to RSVP
// @Description Sends one email to every participant of an event the caller owns with a link to the event page.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 202 {object} helpers.APIResponse "data.recipients is the number of addressed participants"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/rsvp-invitations [post]
func (c *EventController) SendRSVPInvitations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	n, err := c.Service.SendRSVPInvitations(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusAccepted, RSVPInvitationsResponse{Recipients: n})
}

// CheckInParticipant godoc
// @Summary Check in a participant
// @Description Validates a participant token scanned at the venue. Only participants with RSVP going can be checked in, and only once.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body CheckInRequest true "Scanned token"
// @Success 200 {object} controllers.ParticipantSuccessResponse "data contains the checked-in participant"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request or invalid_state"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/check-ins [post]
func (c *EventController) CheckInParticipant(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var req CheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.CheckIn.CheckIn(r.Context(), userID, eventID, strings.TrimSpace(req.Token))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, p)
}
