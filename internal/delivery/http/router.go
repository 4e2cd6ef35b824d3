package http

import (
	"log/slog"
	"net/http"

	"eventrsvp/internal/delivery/http/controllers"
	"eventrsvp/internal/delivery/http/helpers"
	"eventrsvp/internal/delivery/http/middleware"
	"eventrsvp/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// HealthResponse is the data payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse "data.status is ok"
// @Router /health [get]
func Health(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// NewRouter initializes the HTTP router with all application routes.
// Role checks run before controllers so mismatches never reach services.
func NewRouter(
	eventController *controllers.EventController,
	rsvpController *controllers.RSVPController,
	verifier domain.TokenVerifier,
	logger *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	auth := middleware.RequireAuth(verifier, logger)
	host := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(domain.RoleHost)(h))
	}
	attendee := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(domain.RoleAttendee)(h))
	}
	anyone := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(domain.RoleHost, domain.RoleAttendee)(h))
	}

	mux.HandleFunc("GET /health", Health)

	// Events
	mux.HandleFunc("POST /events", host(eventController.CreateEvent))
	mux.HandleFunc("GET /events", host(eventController.ListMyEvents))
	mux.HandleFunc("GET /events/scheduled", anyone(eventController.ListScheduledEvents))
	mux.HandleFunc("GET /events/{eventID}", anyone(eventController.GetEvent))
	mux.HandleFunc("PATCH /events/{eventID}/status", host(eventController.UpdateStatus))

	// Reservations
	mux.HandleFunc("POST /events/{eventID}/rsvp", attendee(rsvpController.RSVP))
	mux.HandleFunc("POST /events/{eventID}/checkin", host(rsvpController.CheckIn))
	mux.HandleFunc("GET /events/{eventID}/rsvps", host(rsvpController.ListReservations))
	mux.HandleFunc("GET /attendee/reservations", attendee(rsvpController.ListMyReservations))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
