package domain

import (
	"context"
	"time"
)

// ReservationState is the lifecycle state of a reservation.
type ReservationState string

const (
	ReservationReserved  ReservationState = "reserved"
	ReservationCheckedIn ReservationState = "checked_in"
)

// Reservation binds one attendee to one event.
// swagger:model Reservation
type Reservation struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	AttendeeID  string           `json:"attendee_id"`
	State       ReservationState `json:"state"`
	IsWalkIn    bool             `json:"is_walk_in"`
	CreatedAt   time.Time        `json:"created_at"`
	CheckedInAt *time.Time       `json:"checked_in_at,omitempty"`
}

// CheckedIn reports whether the reservation reached its terminal state.
func (r *Reservation) CheckedIn() bool {
	return r.State == ReservationCheckedIn
}

// Clone returns a copy that shares no memory with r.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	if r.CheckedInAt != nil {
		t := *r.CheckedInAt
		c.CheckedInAt = &t
	}
	return &c
}

// NewReservation returns a Reserved reservation created by an admission.
func NewReservation(id, eventID, attendeeID string, createdAt time.Time) *Reservation {
	return &Reservation{
		ID:         id,
		EventID:    eventID,
		AttendeeID: attendeeID,
		State:      ReservationReserved,
		CreatedAt:  createdAt,
	}
}

// NewWalkInReservation returns a reservation created directly in CheckedIn state.
func NewWalkInReservation(id, eventID, attendeeID string, at time.Time) *Reservation {
	return &Reservation{
		ID:          id,
		EventID:     eventID,
		AttendeeID:  attendeeID,
		State:       ReservationCheckedIn,
		IsWalkIn:    true,
		CreatedAt:   at,
		CheckedInAt: &at,
	}
}

// CapacityLedger tracks admitted reservations per event.
type CapacityLedger interface {
	// TryReserveSlot increments the admitted count for eventID when it is strictly
	// below maxAttendees and reports whether it did. maxAttendees <= 0 is unbounded.
	TryReserveSlot(ctx context.Context, eventID string, maxAttendees int) (bool, error)
	// AdmittedCount returns the number of slots consumed for eventID.
	AdmittedCount(ctx context.Context, eventID string) (int, error)
}

// ReservationRegistry stores reservations keyed by (event, attendee).
type ReservationRegistry interface {
	// CreateIfAbsent inserts r unless a reservation exists for (r.EventID, r.AttendeeID).
	// It returns the stored reservation and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, r *Reservation) (*Reservation, bool, error)
	// Find returns ErrNotFound when there is no reservation for the pair.
	Find(ctx context.Context, eventID, attendeeID string) (*Reservation, error)
	// MarkCheckedIn moves a reservation to CheckedIn. It returns the record and
	// whether this call performed the transition; false means it was already checked in.
	MarkCheckedIn(ctx context.Context, reservationID string, at time.Time) (*Reservation, bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]*Reservation, error)
	ListByAttendee(ctx context.Context, attendeeID string) ([]*Reservation, error)
}

// ReservationStore is the single owner of the capacity counters and the
// uniqueness index. WithinEvent runs fn while holding the event's serialization
// point; ledger and registry calls made with the ctx passed to fn either all take
// effect or, when fn returns an error, none do.
type ReservationStore interface {
	CapacityLedger
	ReservationRegistry
	WithinEvent(ctx context.Context, eventID string, fn func(ctx context.Context) error) error
}

// AdmitOutcome is the verdict of the admission policy.
type AdmitOutcome int

const (
	Admitted AdmitOutcome = iota
	RejectedDeadlinePassed
	RejectedCapacityFull
	RejectedDuplicate
)

// Code is the reason code reported to clients.
func (o AdmitOutcome) Code() string {
	switch o {
	case Admitted:
		return "admitted"
	case RejectedDeadlinePassed:
		return "rsvp_deadline_passed"
	case RejectedCapacityFull:
		return "event_full"
	case RejectedDuplicate:
		return "already_reserved"
	default:
		return "unknown"
	}
}

func (o AdmitOutcome) String() string { return o.Code() }

// AdmitResult carries the admission verdict. Reservation is the new record when
// Admitted and the existing record when RejectedDuplicate.
type AdmitResult struct {
	Outcome     AdmitOutcome
	Reservation *Reservation
}

func (r AdmitResult) Admitted() bool { return r.Outcome == Admitted }

// CheckInOutcome is the result of the check-in state machine.
type CheckInOutcome int

const (
	CheckedInNormal CheckInOutcome = iota
	CheckedInWalkIn
	AlreadyCheckedIn
)

func (o CheckInOutcome) String() string {
	switch o {
	case CheckedInNormal:
		return "checked_in"
	case CheckedInWalkIn:
		return "walk_in"
	case AlreadyCheckedIn:
		return "already_checked_in"
	default:
		return "unknown"
	}
}

// CheckInResult carries the check-in outcome with the resolved attendee.
type CheckInResult struct {
	Outcome     CheckInOutcome
	Reservation *Reservation
	Attendee    *Attendee
}

// ReservationWithAttendee is a roster line for hosts.
type ReservationWithAttendee struct {
	Reservation *Reservation `json:"reservation"`
	Attendee    *Attendee    `json:"attendee,omitempty"`
}

// EventRoster is the host view of an event's reservations.
type EventRoster struct {
	Event        *Event                     `json:"event"`
	Admitted     int                        `json:"admitted"`
	Reservations []*ReservationWithAttendee `json:"reservations"`
}

// ReservationWithEvent bundles an attendee's reservation with its event.
type ReservationWithEvent struct {
	Reservation *Reservation `json:"reservation"`
	Event       *Event       `json:"event"`
}

// RSVPService defines the reservation and check-in operations exposed to the boundary layer.
type RSVPService interface {
	RSVP(ctx context.Context, caller Caller, eventID string) (AdmitResult, error)
	CheckIn(ctx context.Context, caller Caller, eventID, attendeeEmailOrID string) (CheckInResult, error)
	ListReservations(ctx context.Context, caller Caller, eventID string) (*EventRoster, error)
	ListMyReservations(ctx context.Context, caller Caller) ([]*ReservationWithEvent, error)
}
