package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventrsvp/internal/delivery/http/helpers"
	"eventrsvp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testHost     = domain.HostCaller("host-1")
	testAttendee = domain.AttendeeCaller("att-1")
)

func TestEventController_CreateEvent(t *testing.T) {
	date := time.Date(2025, 9, 20, 18, 0, 0, 0, time.UTC)
	validBody := `{"title":" Go Meetup ","date":"2025-09-20T18:00:00Z","timezone":"Europe/Berlin",` +
		`"rsvp_deadline":"2025-09-19T18:00:00Z","max_attendees":2,"location_physical":"Hall A"}`

	tests := []struct {
		name       string
		body       string
		caller     *domain.Caller
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "created", body: validBody, caller: callerPtr(testHost), wantStatus: http.StatusCreated},
		{name: "missing fields", body: `{"title":""}`, caller: callerPtr(testHost), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "negative capacity", body: `{"title":"x","date":"2025-09-20T18:00:00Z","timezone":"UTC","rsvp_deadline":"2025-09-19T18:00:00Z","max_attendees":-1}`, caller: callerPtr(testHost), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "unknown field", body: `{"name":"x"}`, caller: callerPtr(testHost), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "no caller", body: validBody, wantStatus: http.StatusUnauthorized, wantCode: helpers.ErrCodeUnauthorized},
		{name: "service validation", body: validBody, caller: callerPtr(testHost), svcErr: fmt.Errorf("%w: unknown timezone", domain.ErrInvalidInput), wantStatus: http.StatusBadRequest, wantCode: helpers.ErrCodeBadRequest},
		{name: "attendee forbidden", body: validBody, caller: callerPtr(testAttendee), svcErr: domain.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: helpers.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotInput domain.NewEventInput
			svc := &fakeEventService{createFn: func(c domain.Caller, in domain.NewEventInput) (*domain.Event, error) {
				gotInput = in
				if tt.svcErr != nil {
					return nil, tt.svcErr
				}
				return &domain.Event{ID: "ev-1", Title: in.Title, OwnerID: c.ID, Status: domain.EventStatusScheduled}, nil
			}}
			ctrl := NewEventController(testLogger, svc)
			rr := httptest.NewRecorder()
			ctrl.CreateEvent(rr, newRequest(http.MethodPost, "/events", tt.body, tt.caller, nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			var got domain.Event
			apiErr := decodeEnvelope(t, rr, &got)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			assert.Equal(t, "ev-1", got.ID)
			assert.Equal(t, "host-1", got.OwnerID)
			assert.Equal(t, "Go Meetup", gotInput.Title)
			assert.Equal(t, date, gotInput.Date)
			assert.Equal(t, 2, gotInput.MaxAttendees)
			assert.Equal(t, "Hall A", gotInput.LocationPhysical)
		})
	}
}

func TestEventController_ListMyEvents(t *testing.T) {
	svc := &fakeEventService{listMineFn: func(c domain.Caller) ([]*domain.Event, error) {
		return []*domain.Event{{ID: "ev-2", OwnerID: c.ID}, {ID: "ev-1", OwnerID: c.ID}}, nil
	}}
	ctrl := NewEventController(testLogger, svc)
	rr := httptest.NewRecorder()
	ctrl.ListMyEvents(rr, newRequest(http.MethodGet, "/events", "", callerPtr(testHost), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []*domain.Event
	require.Nil(t, decodeEnvelope(t, rr, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "ev-2", got[0].ID)
}

func TestEventController_ListScheduledEvents(t *testing.T) {
	var gotParams domain.PaginationParams
	svc := &fakeEventService{scheduledFn: func(p domain.PaginationParams) ([]*domain.Event, int, error) {
		gotParams = p
		return []*domain.Event{{ID: "ev-3"}}, 11, nil
	}}
	ctrl := NewEventController(testLogger, svc)
	rr := httptest.NewRecorder()
	ctrl.ListScheduledEvents(rr, newRequest(http.MethodGet, "/events/scheduled?page=2&page_size=5", "", callerPtr(testAttendee), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.PaginationParams{Page: 2, PageSize: 5}, gotParams)
	var got ScheduledEventsResponse
	require.Nil(t, decodeEnvelope(t, rr, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, helpers.PaginationMeta{Page: 2, PageSize: 5, Total: 11, TotalPages: 3}, got.Pagination)
}

func TestEventController_GetEvent(t *testing.T) {
	tests := []struct {
		name       string
		eventID    string
		svcErr     error
		wantStatus int
	}{
		{"found", "ev-1", nil, http.StatusOK},
		{"missing id", "", nil, http.StatusBadRequest},
		{"not found", "ev-x", domain.ErrEventNotFound, http.StatusNotFound},
		{"not visible", "ev-1", domain.ErrForbidden, http.StatusForbidden},
		{"storage down", "ev-1", domain.ErrStorageUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventService{getFn: func(_ domain.Caller, id string) (*domain.Event, error) {
				if tt.svcErr != nil {
					return nil, tt.svcErr
				}
				return &domain.Event{ID: id}, nil
			}}
			ctrl := NewEventController(testLogger, svc)
			rr := httptest.NewRecorder()
			ctrl.GetEvent(rr, newRequest(http.MethodGet, "/events/"+tt.eventID, "", callerPtr(testAttendee), map[string]string{"eventID": tt.eventID}))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestEventController_UpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantSent   domain.EventStatus
	}{
		{name: "live", body: `{"status":"Live"}`, wantStatus: http.StatusOK, wantSent: domain.EventStatusLive},
		{name: "invalid status", body: `{"status":"Cancelled"}`, wantStatus: http.StatusBadRequest},
		{name: "not owner", body: `{"status":"Closed"}`, svcErr: domain.ErrForbidden, wantStatus: http.StatusForbidden, wantSent: domain.EventStatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent domain.EventStatus
			svc := &fakeEventService{statusFn: func(_ domain.Caller, id string, s domain.EventStatus) (*domain.Event, error) {
				sent = s
				if tt.svcErr != nil {
					return nil, tt.svcErr
				}
				return &domain.Event{ID: id, Status: s}, nil
			}}
			ctrl := NewEventController(testLogger, svc)
			rr := httptest.NewRecorder()
			ctrl.UpdateStatus(rr, newRequest(http.MethodPatch, "/events/ev-1/status", tt.body, callerPtr(testHost), map[string]string{"eventID": "ev-1"}))
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantSent, sent)
		})
	}
}
