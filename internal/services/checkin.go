package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventrsvp/internal/domain"
)

// CheckInMachine moves reservations from Reserved to CheckedIn and creates walk-in
// reservations for attendees with no record. Walk-ins never touch the capacity ledger.
type CheckInMachine struct {
	store     domain.ReservationStore
	directory domain.AttendeeDirectory
	newID     func() string
}

// NewCheckInMachine returns a CheckInMachine resolving attendees through directory.
func NewCheckInMachine(store domain.ReservationStore, directory domain.AttendeeDirectory) *CheckInMachine {
	return &CheckInMachine{store: store, directory: directory, newID: uuid.NewString}
}

// CheckIn checks in the attendee identified by email or id. Repeating it for the
// same attendee yields AlreadyCheckedIn without changing the record.
func (m *CheckInMachine) CheckIn(ctx context.Context, event *domain.Event, identity string, now time.Time) (domain.CheckInResult, error) {
	if event == nil {
		return domain.CheckInResult{}, domain.ErrEventNotFound
	}
	attendee, err := domain.ResolveAttendee(ctx, m.directory, identity)
	if err != nil {
		return domain.CheckInResult{}, err
	}

	result := domain.CheckInResult{Attendee: attendee}
	err = m.store.WithinEvent(ctx, event.ID, func(ctx context.Context) error {
		existing, err := m.store.Find(ctx, event.ID, attendee.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("find reservation: %w", err)
			}
			res, created, err := m.store.CreateIfAbsent(ctx, domain.NewWalkInReservation(m.newID(), event.ID, attendee.ID, now))
			if err != nil {
				return fmt.Errorf("create walk-in: %w", err)
			}
			if created {
				result.Outcome = domain.CheckedInWalkIn
				result.Reservation = res
				return nil
			}
			existing = res
		}

		if existing.CheckedIn() {
			result.Outcome = domain.AlreadyCheckedIn
			result.Reservation = existing
			return nil
		}

		updated, transitioned, err := m.store.MarkCheckedIn(ctx, existing.ID, now)
		if err != nil {
			return fmt.Errorf("mark checked in: %w", err)
		}
		result.Reservation = updated
		if transitioned {
			result.Outcome = domain.CheckedInNormal
		} else {
			result.Outcome = domain.AlreadyCheckedIn
		}
		return nil
	})
	if err != nil {
		return domain.CheckInResult{}, err
	}
	return result, nil
}
