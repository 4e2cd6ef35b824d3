package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventrsvp/internal/delivery/http/helpers"
	"eventrsvp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSVPController_RSVP(t *testing.T) {
	created := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		result     domain.AdmitResult
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "admitted",
			result:     domain.AdmitResult{Outcome: domain.Admitted, Reservation: domain.NewReservation("r-1", "ev-1", "att-1", created)},
			wantStatus: http.StatusCreated,
		},
		{name: "deadline passed", result: domain.AdmitResult{Outcome: domain.RejectedDeadlinePassed}, wantStatus: http.StatusBadRequest, wantCode: "rsvp_deadline_passed"},
		{name: "full", result: domain.AdmitResult{Outcome: domain.RejectedCapacityFull}, wantStatus: http.StatusConflict, wantCode: "event_full"},
		{name: "duplicate", result: domain.AdmitResult{Outcome: domain.RejectedDuplicate}, wantStatus: http.StatusConflict, wantCode: "already_reserved"},
		{name: "event not found", svcErr: domain.ErrEventNotFound, wantStatus: http.StatusNotFound, wantCode: helpers.ErrCodeNotFound},
		{name: "storage unavailable", svcErr: domain.ErrStorageUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: helpers.ErrCodeUnavailable},
		{name: "unexpected", svcErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: helpers.ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCaller domain.Caller
			var gotEvent string
			svc := &fakeRSVPService{rsvpFn: func(c domain.Caller, eventID string) (domain.AdmitResult, error) {
				gotCaller, gotEvent = c, eventID
				return tt.result, tt.svcErr
			}}
			ctrl := NewRSVPController(testLogger, svc)
			rr := httptest.NewRecorder()
			ctrl.RSVP(rr, newRequest(http.MethodPost, "/events/ev-1/rsvp", "", callerPtr(testAttendee), map[string]string{"eventID": "ev-1"}))

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, testAttendee, gotCaller)
			assert.Equal(t, "ev-1", gotEvent)
			var got RSVPResponse
			apiErr := decodeEnvelope(t, rr, &got)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			assert.Equal(t, "admitted", got.Outcome)
			assert.Equal(t, "r-1", got.Reservation.ID)
			assert.Equal(t, domain.ReservationReserved, got.Reservation.State)
		})
	}
}

func TestRSVPController_CheckIn(t *testing.T) {
	at := time.Date(2025, 9, 20, 18, 0, 0, 0, time.UTC)
	ada := &domain.Attendee{ID: "att-1", Name: "Ada", Email: "ada@example.com"}

	tests := []struct {
		name         string
		body         string
		outcome      domain.CheckInOutcome
		svcErr       error
		wantStatus   int
		wantIdentity string
		wantOutcome  string
		wantCode     string
	}{
		{name: "by email", body: `{"attendee_email":" Ada@Example.com "}`, outcome: domain.CheckedInNormal, wantStatus: http.StatusOK, wantIdentity: "Ada@Example.com", wantOutcome: "checked_in"},
		{name: "by id walk-in", body: `{"attendee_id":"att-1"}`, outcome: domain.CheckedInWalkIn, wantStatus: http.StatusOK, wantIdentity: "att-1", wantOutcome: "walk_in"},
		{name: "repeat", body: `{"attendee_id":"att-1"}`, outcome: domain.AlreadyCheckedIn, wantStatus: http.StatusOK, wantIdentity: "att-1", wantOutcome: "already_checked_in"},
		{name: "no identity", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "both identities", body: `{"attendee_id":"a","attendee_email":"a@b.c"}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "bad email", body: `{"attendee_email":"nope"}`, wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "unknown attendee", body: `{"attendee_id":"ghost"}`, svcErr: domain.ErrAttendeeNotFound, wantStatus: http.StatusNotFound, wantIdentity: "ghost", wantCode: helpers.ErrCodeNotFound},
		{name: "not event day", body: `{"attendee_id":"att-1"}`, svcErr: domain.ErrCheckInNotOpen, wantStatus: http.StatusConflict, wantIdentity: "att-1", wantCode: helpers.ErrCodeCheckInNotOpen},
		{name: "not owner", body: `{"attendee_id":"att-1"}`, svcErr: domain.ErrForbidden, wantStatus: http.StatusForbidden, wantIdentity: "att-1", wantCode: helpers.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity string
			svc := &fakeRSVPService{checkInFn: func(_ domain.Caller, eventID, identity string) (domain.CheckInResult, error) {
				gotIdentity = identity
				if tt.svcErr != nil {
					return domain.CheckInResult{}, tt.svcErr
				}
				res := domain.NewWalkInReservation("r-1", eventID, ada.ID, at)
				return domain.CheckInResult{Outcome: tt.outcome, Reservation: res, Attendee: ada}, nil
			}}
			ctrl := NewRSVPController(testLogger, svc)
			rr := httptest.NewRecorder()
			ctrl.CheckIn(rr, newRequest(http.MethodPost, "/events/ev-1/checkin", tt.body, callerPtr(testHost), map[string]string{"eventID": "ev-1"}))

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantIdentity, gotIdentity)
			var got CheckInResponse
			apiErr := decodeEnvelope(t, rr, &got)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.Equal(t, "Ada", got.Attendee.Name)
			assert.Equal(t, domain.ReservationCheckedIn, got.Reservation.State)
		})
	}
}

func TestRSVPController_ListReservations(t *testing.T) {
	svc := &fakeRSVPService{rosterFn: func(_ domain.Caller, eventID string) (*domain.EventRoster, error) {
		return &domain.EventRoster{
			Event:    &domain.Event{ID: eventID},
			Admitted: 1,
			Reservations: []*domain.ReservationWithAttendee{
				{Reservation: &domain.Reservation{ID: "r-1", EventID: eventID, AttendeeID: "att-1"}, Attendee: &domain.Attendee{ID: "att-1", Name: "Ada"}},
			},
		}, nil
	}}
	ctrl := NewRSVPController(testLogger, svc)
	rr := httptest.NewRecorder()
	ctrl.ListReservations(rr, newRequest(http.MethodGet, "/events/ev-1/rsvps", "", callerPtr(testHost), map[string]string{"eventID": "ev-1"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.EventRoster
	require.Nil(t, decodeEnvelope(t, rr, &got))
	assert.Equal(t, 1, got.Admitted)
	require.Len(t, got.Reservations, 1)
	assert.Equal(t, "Ada", got.Reservations[0].Attendee.Name)
}

func TestRSVPController_ListMyReservations(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := &fakeRSVPService{mineFn: func(c domain.Caller) ([]*domain.ReservationWithEvent, error) {
			return []*domain.ReservationWithEvent{{
				Reservation: &domain.Reservation{ID: "r-1", AttendeeID: c.ID, State: domain.ReservationCheckedIn},
				Event:       &domain.Event{ID: "ev-1", Title: "Meetup"},
			}}, nil
		}}
		ctrl := NewRSVPController(testLogger, svc)
		rr := httptest.NewRecorder()
		ctrl.ListMyReservations(rr, newRequest(http.MethodGet, "/attendee/reservations", "", callerPtr(testAttendee), nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []*domain.ReservationWithEvent
		require.Nil(t, decodeEnvelope(t, rr, &got))
		require.Len(t, got, 1)
		assert.Equal(t, "att-1", got[0].Reservation.AttendeeID)
		assert.True(t, got[0].Reservation.CheckedIn())
	})

	t.Run("no caller", func(t *testing.T) {
		ctrl := NewRSVPController(testLogger, &fakeRSVPService{})
		rr := httptest.NewRecorder()
		ctrl.ListMyReservations(rr, newRequest(http.MethodGet, "/attendee/reservations", "", nil, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
