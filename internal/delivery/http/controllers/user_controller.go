package controllers

import (
	"log/slog"
	"net/http"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"
)

// MyEventsSuccessResponse is the success response envelope for GET /users/me/events (200).
type MyEventsSuccessResponse struct {
	Data  []*domain.EventHistoryItem `json:"data"`
	Error *helpers.APIError          `json:"error"`
}

type UserController struct {
	Logger        *slog.Logger
	Registrations domain.RegistrationService
}

func NewUserController(logger *slog.Logger, registrations domain.RegistrationService) *UserController {
	return &UserController{
		Logger:        logger,
		Registrations: registrations,
	}
}

// ListMyEvents godoc
// @Summary List events I registered for
// @Description Returns every event in the caller's registration history with the caller's participant record, most recent registration first.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.MyEventsSuccessResponse "data contains participant and event pairs"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me/events [get]
func (c *UserController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	items, err := c.Registrations.ListMyEvents(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if items == nil {
		items = []*domain.EventHistoryItem{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, items)
}
