package http

import (
	"log/slog"
	"net/http"
	"strings"

	"occasio/internal/delivery/http/controllers"
	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// apiPrefix is the mount point of every versioned route.
const apiPrefix = "/api/v1"

// Controllers groups the handlers the router mounts.
type Controllers struct {
	Auth         *controllers.AuthController
	Events       *controllers.EventController
	Images       *controllers.ImageController
	Registration *controllers.RegistrationController
	Users        *controllers.UserController
}

// NewRouter initializes the HTTP router with all application routes.
// Organizer routes require the organizer role; ownership is checked by the services.
func NewRouter(c Controllers, verifier domain.TokenVerifier, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	organizer := middleware.RequireRole(verifier, logger, domain.RoleOrganizer)
	user := middleware.RequireRole(verifier, logger, domain.RoleUser)

	handle := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+apiPrefix+path, h)
	}

	// Auth
	handle("POST /auth/signup", c.Auth.SignUp)
	handle("POST /auth/verify", c.Auth.VerifyEmail)
	handle("POST /auth/login", c.Auth.Login)

	// Events
	handle("POST /events", organizer(c.Events.CreateEvent))
	handle("GET /events/mine", organizer(c.Events.ListMyEvents))
	handle("GET /events/{eventID}", c.Events.GetEvent)
	handle("PATCH /events/{eventID}", organizer(c.Events.UpdateEvent))
	handle("DELETE /events/{eventID}", organizer(c.Events.DeleteEvent))
	handle("PUT /events/{eventID}/registrations/disable", organizer(c.Events.DisableRegistrations))
	handle("POST /events/{eventID}/rsvp-invitations", organizer(c.Events.SendRSVPInvitations))
	handle("POST /events/{eventID}/check-ins", organizer(c.Events.CheckInParticipant))

	// Images
	handle("PUT /events/{eventID}/images/{kind}", organizer(c.Images.SetEventImage))
	handle("POST /events/{eventID}/gallery", organizer(c.Images.AddGalleryImages))
	handle("DELETE /events/{eventID}/gallery", organizer(c.Images.RemoveGalleryImages))

	// Registrations
	handle("POST /events/{eventID}/registrations", user(c.Registration.Register))
	handle("GET /events/{eventID}/registrations/me", user(c.Registration.GetMyRegistration))
	handle("PATCH /events/{eventID}/registrations/me", user(c.Registration.UpdateMyRegistration))
	handle("PUT /events/{eventID}/registrations/me/rsvp", user(c.Registration.UpdateMyRSVP))
	handle("DELETE /events/{eventID}/registrations/me", user(c.Registration.Unregister))
	handle("GET /events/{eventID}/registrations/me/qr", user(c.Registration.GetMyQRCode))

	// Users
	handle("GET /users/me/events", user(c.Users.ListMyEvents))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router with CORS and request logging.
func NewHandler(c Controllers, verifier domain.TokenVerifier, corsOrigins []string, logger *slog.Logger) http.Handler {
	return middleware.LoggingMiddleware(logger, middleware.CORS(corsOrigins, NewRouter(c, verifier, logger)))
}
