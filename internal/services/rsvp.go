package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventrsvp/internal/clock"
	"eventrsvp/internal/domain"
)

var tracer = otel.Tracer("eventrsvp/internal/services")

type rsvpService struct {
	eventRepo      domain.EventRepository
	store          domain.ReservationStore
	directory      domain.AttendeeDirectory
	publisher      domain.NotificationPublisher
	admission      *AdmissionPolicy
	checkIn        *CheckInMachine
	clock          clock.Clock
	logger         *slog.Logger
	contextTimeout time.Duration
	checkInAnyDay  bool
}

// RSVPOption configures the RSVP service.
type RSVPOption func(*rsvpService)

// WithCheckInAnyDay disables the event-day gate on check-in.
func WithCheckInAnyDay(enabled bool) RSVPOption {
	return func(s *rsvpService) { s.checkInAnyDay = enabled }
}

// WithIDGenerator overrides reservation id generation.
func WithIDGenerator(newID func() string) RSVPOption {
	return func(s *rsvpService) {
		s.admission.newID = newID
		s.checkIn.newID = newID
	}
}

func NewRSVPService(
	eventRepo domain.EventRepository,
	store domain.ReservationStore,
	directory domain.AttendeeDirectory,
	publisher domain.NotificationPublisher,
	clk clock.Clock,
	logger *slog.Logger,
	timeout time.Duration,
	opts ...RSVPOption,
) domain.RSVPService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &rsvpService{
		eventRepo:      eventRepo,
		store:          store,
		directory:      directory,
		publisher:      publisher,
		admission:      NewAdmissionPolicy(store),
		checkIn:        NewCheckInMachine(store, directory),
		clock:          clk,
		logger:         logger,
		contextTimeout: timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *rsvpService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.contextTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.contextTimeout)
}

func (s *rsvpService) loadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *rsvpService) RSVP(ctx context.Context, caller domain.Caller, eventID string) (domain.AdmitResult, error) {
	if err := caller.RequireAttendee(); err != nil {
		return domain.AdmitResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "rsvp.admit", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("attendee.id", caller.ID),
	))
	defer span.End()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		recordSpanError(span, err)
		return domain.AdmitResult{}, err
	}

	result, err := s.admission.Admit(ctx, event, caller.ID, s.clock.Now())
	if err != nil {
		recordSpanError(span, err)
		return domain.AdmitResult{}, err
	}
	span.SetAttributes(attribute.String("rsvp.outcome", result.Outcome.Code()))

	if result.Admitted() {
		attendee, err := s.directory.GetByID(ctx, caller.ID)
		if err != nil {
			s.logger.Warn("rsvp confirmation skipped: attendee lookup failed",
				"event_id", event.ID, "attendee_id", caller.ID, "error", err)
		} else {
			s.notify(ctx, domain.NotificationRSVPConfirmed, event, result.Reservation, attendee)
		}
	}
	return result, nil
}

func (s *rsvpService) CheckIn(ctx context.Context, caller domain.Caller, eventID, attendeeEmailOrID string) (domain.CheckInResult, error) {
	if err := caller.RequireHost(); err != nil {
		return domain.CheckInResult{}, err
	}
	if attendeeEmailOrID == "" {
		return domain.CheckInResult{}, fmt.Errorf("%w: attendee email or id is required", domain.ErrInvalidInput)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "rsvp.checkin", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		recordSpanError(span, err)
		return domain.CheckInResult{}, err
	}
	if err := caller.RequireOwner(event); err != nil {
		recordSpanError(span, err)
		return domain.CheckInResult{}, err
	}

	now := s.clock.Now()
	if !s.checkInAnyDay && !event.SameCalendarDay(now) {
		recordSpanError(span, domain.ErrCheckInNotOpen)
		return domain.CheckInResult{}, domain.ErrCheckInNotOpen
	}

	result, err := s.checkIn.CheckIn(ctx, event, attendeeEmailOrID, now)
	if err != nil {
		recordSpanError(span, err)
		return domain.CheckInResult{}, err
	}
	span.SetAttributes(attribute.String("checkin.outcome", result.Outcome.String()))

	kind := domain.NotificationCheckedIn
	switch result.Outcome {
	case domain.CheckedInWalkIn:
		kind = domain.NotificationWalkInCheckedIn
	case domain.AlreadyCheckedIn:
		kind = domain.NotificationRecheckedIn
	}
	s.notify(ctx, kind, event, result.Reservation, result.Attendee)
	return result, nil
}

func (s *rsvpService) ListReservations(ctx context.Context, caller domain.Caller, eventID string) (*domain.EventRoster, error) {
	if err := caller.RequireHost(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := caller.RequireOwner(event); err != nil {
		return nil, err
	}

	reservations, err := s.store.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	admitted, err := s.store.AdmittedCount(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("admitted count: %w", err)
	}

	roster := &domain.EventRoster{
		Event:        event,
		Admitted:     admitted,
		Reservations: make([]*domain.ReservationWithAttendee, 0, len(reservations)),
	}
	for _, r := range reservations {
		line := &domain.ReservationWithAttendee{Reservation: r}
		attendee, err := s.directory.GetByID(ctx, r.AttendeeID)
		switch {
		case err == nil:
			line.Attendee = attendee
		case !domain.IsNotFound(err):
			return nil, fmt.Errorf("get attendee: %w", err)
		}
		roster.Reservations = append(roster.Reservations, line)
	}
	return roster, nil
}

func (s *rsvpService) ListMyReservations(ctx context.Context, caller domain.Caller) ([]*domain.ReservationWithEvent, error) {
	if err := caller.RequireAttendee(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reservations, err := s.store.ListByAttendee(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	out := make([]*domain.ReservationWithEvent, 0, len(reservations))
	for _, r := range reservations {
		event, err := s.eventRepo.GetByID(ctx, r.EventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get event: %w", err)
		}
		out = append(out, &domain.ReservationWithEvent{Reservation: r, Event: event})
	}
	return out, nil
}

// notify publishes after the decision has committed. Failures are logged only.
func (s *rsvpService) notify(ctx context.Context, kind domain.NotificationKind, event *domain.Event, res *domain.Reservation, attendee *domain.Attendee) {
	if s.publisher == nil || res == nil || attendee == nil {
		return
	}
	n := &domain.Notification{
		Kind:          kind,
		EventID:       event.ID,
		EventTitle:    event.Title,
		EventDate:     event.Date,
		EventLocation: event.Location(),
		ReservationID: res.ID,
		AttendeeID:    attendee.ID,
		AttendeeName:  attendee.Name,
		AttendeeEmail: attendee.Email,
		OccurredAt:    s.clock.Now(),
	}
	// The request context may be cancelled right after the response is written.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Warn("notification publish failed",
			"kind", kind, "event_id", event.ID, "attendee_id", attendee.ID, "error", err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
