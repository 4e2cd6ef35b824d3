package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventrsvp/internal/clock"
	"eventrsvp/internal/domain"
)

const defaultPageSize = 20

type eventService struct {
	eventRepo      domain.EventRepository
	registry       domain.ReservationRegistry
	clock          clock.Clock
	contextTimeout time.Duration
}

func NewEventService(eventRepo domain.EventRepository, registry domain.ReservationRegistry, clk clock.Clock, timeout time.Duration) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		registry:       registry,
		clock:          clk,
		contextTimeout: timeout,
	}
}

func (s *eventService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.contextTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.contextTimeout)
}

func validateEventInput(in domain.NewEventInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Timezone) == "" {
		return fmt.Errorf("%w: timezone is required", domain.ErrInvalidInput)
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, in.Timezone)
	}
	if in.RSVPDeadline.IsZero() {
		return fmt.Errorf("%w: rsvp_deadline is required", domain.ErrInvalidInput)
	}
	if in.MaxAttendees < 0 {
		return fmt.Errorf("%w: max_attendees must be zero (unbounded) or positive", domain.ErrInvalidInput)
	}
	return nil
}

func (s *eventService) CreateEvent(ctx context.Context, caller domain.Caller, in domain.NewEventInput) (*domain.Event, error) {
	if err := caller.RequireHost(); err != nil {
		return nil, err
	}
	if err := validateEventInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.clock.Now()
	event := &domain.Event{
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		Date:             in.Date.UTC(),
		Timezone:         in.Timezone,
		LocationPhysical: strings.TrimSpace(in.LocationPhysical),
		LocationVirtual:  strings.TrimSpace(in.LocationVirtual),
		RSVPDeadline:     in.RSVPDeadline.UTC(),
		MaxAttendees:     in.MaxAttendees,
		OwnerID:          caller.ID,
		Status:           domain.EventStatusScheduled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListMyEvents(ctx context.Context, caller domain.Caller) ([]*domain.Event, error) {
	if err := caller.RequireHost(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	events, err := s.eventRepo.ListByOwnerID(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, nil
}

func (s *eventService) ListScheduledEvents(ctx context.Context, page domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = defaultPageSize
	}
	events, total, err := s.eventRepo.ListByStatus(ctx, domain.EventStatusScheduled, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list scheduled events: %w", err)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return events, total, nil
}

func (s *eventService) GetEvent(ctx context.Context, caller domain.Caller, eventID string) (*domain.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	switch {
	case caller.IsHost():
		if err := caller.RequireOwner(event); err != nil {
			return nil, err
		}
	case caller.IsAttendee():
		if _, err := s.registry.Find(ctx, event.ID, caller.ID); err != nil {
			if domain.IsNotFound(err) {
				return nil, fmt.Errorf("%w: no reservation for this event", domain.ErrForbidden)
			}
			return nil, fmt.Errorf("find reservation: %w", err)
		}
	default:
		return nil, domain.ErrUnauthorized
	}
	return event, nil
}

func (s *eventService) UpdateStatus(ctx context.Context, caller domain.Caller, eventID string, status domain.EventStatus) (*domain.Event, error) {
	if err := caller.RequireHost(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseEventStatus(string(status)); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := caller.RequireOwner(event); err != nil {
		return nil, err
	}

	updated, err := s.eventRepo.UpdateStatus(ctx, eventID, status, s.clock.Now())
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return updated, nil
}
