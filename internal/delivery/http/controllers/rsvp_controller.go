package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventrsvp/internal/delivery/http/helpers"
	"eventrsvp/internal/delivery/http/middleware"
	"eventrsvp/internal/domain"
)

// RSVPResponse is the data payload for a successful POST /events/{eventID}/rsvp.
type RSVPResponse struct {
	Outcome     string              `json:"outcome"`
	Reservation *domain.Reservation `json:"reservation"`
}

// RSVPSuccessResponse is the success response envelope for POST /events/{eventID}/rsvp (201).
type RSVPSuccessResponse struct {
	Data  RSVPResponse      `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// CheckInRequest is the request body for POST /events/{eventID}/checkin.
// Exactly one of attendee_email and attendee_id must be set.
type CheckInRequest struct {
	AttendeeEmail string `json:"attendee_email"`
	AttendeeID    string `json:"attendee_id"`
}

// Validate implements Validator.
func (c CheckInRequest) Validate() []string {
	email := strings.TrimSpace(c.AttendeeEmail)
	id := strings.TrimSpace(c.AttendeeID)
	switch {
	case email == "" && id == "":
		return []string{"attendee_email or attendee_id is required"}
	case email != "" && id != "":
		return []string{"provide only one of attendee_email and attendee_id"}
	case email != "" && !strings.Contains(email, "@"):
		return []string{"attendee_email must be a valid email address"}
	}
	return nil
}

func (c CheckInRequest) identity() string {
	if e := strings.TrimSpace(c.AttendeeEmail); e != "" {
		return e
	}
	return strings.TrimSpace(c.AttendeeID)
}

// CheckInResponse is the data payload for POST /events/{eventID}/checkin.
type CheckInResponse struct {
	Outcome     string              `json:"outcome"`
	Reservation *domain.Reservation `json:"reservation"`
	Attendee    *domain.Attendee    `json:"attendee"`
}

// CheckInSuccessResponse is the success response envelope for POST /events/{eventID}/checkin (200).
type CheckInSuccessResponse struct {
	Data  CheckInResponse   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// RosterSuccessResponse is the success response envelope for GET /events/{eventID}/rsvps (200).
type RosterSuccessResponse struct {
	Data  *domain.EventRoster `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// MyReservationsSuccessResponse is the success response envelope for GET /attendee/reservations (200).
type MyReservationsSuccessResponse struct {
	Data  []*domain.ReservationWithEvent `json:"data"`
	Error *helpers.APIError              `json:"error"`
}

type RSVPController struct {
	Logger  *slog.Logger
	Service domain.RSVPService
}

func NewRSVPController(logger *slog.Logger, svc domain.RSVPService) *RSVPController {
	return &RSVPController{
		Logger:  logger,
		Service: svc,
	}
}

// RSVP godoc
// @Summary Reserve a slot
// @Description Reserves a slot for the authenticated attendee. Rejections carry a reason code: rsvp_deadline_passed, event_full or already_reserved.
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 201 {object} controllers.RSVPSuccessResponse "data contains the reservation"
// @Failure 400 {object} helpers.APIResponse "error.code: rsvp_deadline_passed"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not an attendee)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: event_full or already_reserved"
// @Failure 503 {object} helpers.APIResponse "error.code: unavailable"
// @Router /events/{eventID}/rsvp [post]
func (c *RSVPController) RSVP(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	result, err := c.Service.RSVP(r.Context(), caller, eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if !result.Admitted() {
		helpers.WriteRejection(w, result.Outcome)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, RSVPResponse{
		Outcome:     result.Outcome.Code(),
		Reservation: result.Reservation,
	})
}

// CheckIn godoc
// @Summary Check an attendee in
// @Description Checks in the attendee identified by email or id. Attendees without a reservation are admitted as walk-ins. Repeating a check-in reports already_checked_in.
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body CheckInRequest true "Attendee identity"
// @Success 200 {object} controllers.CheckInSuccessResponse "data.outcome is checked_in, walk_in or already_checked_in"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not owner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found (event or attendee)"
// @Failure 409 {object} helpers.APIResponse "error.code: checkin_not_open"
// @Failure 503 {object} helpers.APIResponse "error.code: unavailable"
// @Router /events/{eventID}/checkin [post]
func (c *RSVPController) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	var req CheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	result, err := c.Service.CheckIn(r.Context(), caller, eventID, req.identity())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CheckInResponse{
		Outcome:     result.Outcome.String(),
		Reservation: result.Reservation,
		Attendee:    result.Attendee,
	})
}

// ListReservations godoc
// @Summary List an event's reservations
// @Description Returns the roster of the event with the admitted count. Only the event owner can list.
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} controllers.RosterSuccessResponse "data contains the roster"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not owner)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/rsvps [get]
func (c *RSVPController) ListReservations(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return
	}
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	roster, err := c.Service.ListReservations(r.Context(), caller, eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, roster)
}

// ListMyReservations godoc
// @Summary List my reservations
// @Description Returns the authenticated attendee's reservations with their events.
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.MyReservationsSuccessResponse "data contains reservations with events"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not an attendee)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /attendee/reservations [get]
func (c *RSVPController) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	items, err := c.Service.ListMyReservations(r.Context(), caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, items)
}
