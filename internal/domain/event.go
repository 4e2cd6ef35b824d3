package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventStatus is the lifecycle status of an event as managed by its host.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "Scheduled"
	EventStatusLive      EventStatus = "Live"
	EventStatusClosed    EventStatus = "Closed"
)

// ParseEventStatus returns the EventStatus for s or ErrInvalidInput.
func ParseEventStatus(s string) (EventStatus, error) {
	switch st := EventStatus(strings.TrimSpace(s)); st {
	case EventStatusScheduled, EventStatusLive, EventStatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("%w: status must be one of Scheduled, Live, Closed", ErrInvalidInput)
}

// Event represents a hosted event attendees can reserve a slot for.
// swagger:model Event
type Event struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Date             time.Time   `json:"date"`
	Timezone         string      `json:"timezone"`
	LocationPhysical string      `json:"location_physical,omitempty"`
	LocationVirtual  string      `json:"location_virtual,omitempty"`
	RSVPDeadline     time.Time   `json:"rsvp_deadline"`
	MaxAttendees     int         `json:"max_attendees"`
	OwnerID          string      `json:"owner_id"`
	Status           EventStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Unbounded reports whether the event accepts any number of reservations.
func (e *Event) Unbounded() bool {
	return e.MaxAttendees <= 0
}

// Location returns the physical location, falling back to the virtual one.
func (e *Event) Location() string {
	if e.LocationPhysical != "" {
		return e.LocationPhysical
	}
	return e.LocationVirtual
}

// SameCalendarDay reports whether now falls on the event's calendar day in the
// event's declared timezone. An unknown timezone falls back to UTC.
func (e *Event) SameCalendarDay(now time.Time) bool {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		loc = time.UTC
	}
	y1, m1, d1 := now.In(loc).Date()
	y2, m2, d2 := e.Date.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// NewEventInput holds the host-supplied fields for a new event.
type NewEventInput struct {
	Title            string
	Description      string
	Date             time.Time
	Timezone         string
	LocationPhysical string
	LocationVirtual  string
	RSVPDeadline     time.Time
	MaxAttendees     int
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByOwnerID(ctx context.Context, ownerID string) ([]*Event, error)
	ListByStatus(ctx context.Context, status EventStatus, page PaginationParams) ([]*Event, int, error)
	UpdateStatus(ctx context.Context, id string, status EventStatus, updatedAt time.Time) (*Event, error)
}

// EventService defines host-facing event management.
type EventService interface {
	CreateEvent(ctx context.Context, caller Caller, in NewEventInput) (*Event, error)
	ListMyEvents(ctx context.Context, caller Caller) ([]*Event, error)
	ListScheduledEvents(ctx context.Context, page PaginationParams) ([]*Event, int, error)
	GetEvent(ctx context.Context, caller Caller, eventID string) (*Event, error)
	UpdateStatus(ctx context.Context, caller Caller, eventID string, status EventStatus) (*Event, error)
}
