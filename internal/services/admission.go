package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventrsvp/internal/domain"
)

// AdmissionPolicy decides whether an attendee gets one of an event's slots.
// Checks run in a fixed order: deadline, duplicate, capacity, insert. Only a
// genuine admission consumes a slot.
type AdmissionPolicy struct {
	store domain.ReservationStore
	newID func() string
}

// NewAdmissionPolicy returns an AdmissionPolicy over store.
func NewAdmissionPolicy(store domain.ReservationStore) *AdmissionPolicy {
	return &AdmissionPolicy{store: store, newID: uuid.NewString}
}

// Admit evaluates an RSVP for attendeeID at now. Rejections are outcomes, not errors;
// an error means nothing was written.
func (p *AdmissionPolicy) Admit(ctx context.Context, event *domain.Event, attendeeID string, now time.Time) (domain.AdmitResult, error) {
	if event == nil {
		return domain.AdmitResult{}, domain.ErrEventNotFound
	}
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return domain.AdmitResult{}, fmt.Errorf("%w: attendee id is required", domain.ErrInvalidInput)
	}

	if now.After(event.RSVPDeadline) {
		return domain.AdmitResult{Outcome: domain.RejectedDeadlinePassed}, nil
	}

	var result domain.AdmitResult
	err := p.store.WithinEvent(ctx, event.ID, func(ctx context.Context) error {
		existing, err := p.store.Find(ctx, event.ID, attendeeID)
		switch {
		case err == nil:
			result = domain.AdmitResult{Outcome: domain.RejectedDuplicate, Reservation: existing}
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("find reservation: %w", err)
		}

		ok, err := p.store.TryReserveSlot(ctx, event.ID, event.MaxAttendees)
		if err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		if !ok {
			result = domain.AdmitResult{Outcome: domain.RejectedCapacityFull}
			return nil
		}

		res, created, err := p.store.CreateIfAbsent(ctx, domain.NewReservation(p.newID(), event.ID, attendeeID, now))
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		if !created {
			// Lost to a concurrent request for the same attendee. The slot stays consumed.
			result = domain.AdmitResult{Outcome: domain.RejectedDuplicate, Reservation: res}
			return nil
		}
		result = domain.AdmitResult{Outcome: domain.Admitted, Reservation: res}
		return nil
	})
	if err != nil {
		return domain.AdmitResult{}, err
	}
	return result, nil
}
