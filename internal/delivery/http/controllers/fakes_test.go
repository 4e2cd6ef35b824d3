package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eventrsvp/internal/delivery/http/helpers"
	"eventrsvp/internal/delivery/http/middleware"
	"eventrsvp/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	createFn    func(domain.Caller, domain.NewEventInput) (*domain.Event, error)
	listMineFn  func(domain.Caller) ([]*domain.Event, error)
	scheduledFn func(domain.PaginationParams) ([]*domain.Event, int, error)
	getFn       func(domain.Caller, string) (*domain.Event, error)
	statusFn    func(domain.Caller, string, domain.EventStatus) (*domain.Event, error)
}

func (f *fakeEventService) CreateEvent(_ context.Context, c domain.Caller, in domain.NewEventInput) (*domain.Event, error) {
	return f.createFn(c, in)
}

func (f *fakeEventService) ListMyEvents(_ context.Context, c domain.Caller) ([]*domain.Event, error) {
	return f.listMineFn(c)
}

func (f *fakeEventService) ListScheduledEvents(_ context.Context, p domain.PaginationParams) ([]*domain.Event, int, error) {
	return f.scheduledFn(p)
}

func (f *fakeEventService) GetEvent(_ context.Context, c domain.Caller, id string) (*domain.Event, error) {
	return f.getFn(c, id)
}

func (f *fakeEventService) UpdateStatus(_ context.Context, c domain.Caller, id string, s domain.EventStatus) (*domain.Event, error) {
	return f.statusFn(c, id, s)
}

// fakeRSVPService implements domain.RSVPService for handler tests.
type fakeRSVPService struct {
	rsvpFn    func(domain.Caller, string) (domain.AdmitResult, error)
	checkInFn func(domain.Caller, string, string) (domain.CheckInResult, error)
	rosterFn  func(domain.Caller, string) (*domain.EventRoster, error)
	mineFn    func(domain.Caller) ([]*domain.ReservationWithEvent, error)
}

func (f *fakeRSVPService) RSVP(_ context.Context, c domain.Caller, eventID string) (domain.AdmitResult, error) {
	return f.rsvpFn(c, eventID)
}

func (f *fakeRSVPService) CheckIn(_ context.Context, c domain.Caller, eventID, identity string) (domain.CheckInResult, error) {
	return f.checkInFn(c, eventID, identity)
}

func (f *fakeRSVPService) ListReservations(_ context.Context, c domain.Caller, eventID string) (*domain.EventRoster, error) {
	return f.rosterFn(c, eventID)
}

func (f *fakeRSVPService) ListMyReservations(_ context.Context, c domain.Caller) ([]*domain.ReservationWithEvent, error) {
	return f.mineFn(c)
}

// newRequest builds a request with path values and, when caller is non-nil, an authenticated caller.
func newRequest(method, target, body string, caller *domain.Caller, pathValues map[string]string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if caller != nil {
		req = req.WithContext(middleware.SetCaller(req.Context(), *caller))
	}
	return req
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, data any) *helpers.APIError {
	t.Helper()
	var env struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	if data != nil && env.Error == nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Error
}

func callerPtr(c domain.Caller) *domain.Caller { return &c }
