// Package memory provides in-process implementations of the storage ports.
// State lives for the lifetime of the process only.
package memory

import (
	"context"
	"sync"
	"time"

	"eventrsvp/internal/domain"
)

// eventLedger is the per-event serialization point: the admitted counter and
// the uniqueness index for one event, guarded by one mutex.
type eventLedger struct {
	mu         sync.Mutex
	admitted   int
	byAttendee map[string]*domain.Reservation
	byID       map[string]*domain.Reservation
	order      []*domain.Reservation
}

type txKey struct{}

// memTx records how to undo writes made inside WithinEvent.
type memTx struct {
	eventID string
	undo    []func()
}

func (tx *memTx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func txFromContext(ctx context.Context, eventID string) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	if tx == nil || tx.eventID != eventID {
		return nil
	}
	return tx
}

type reservationStore struct {
	mu         sync.RWMutex
	events     map[string]*eventLedger
	eventOf    map[string]string   // reservation id -> event id
	attendeeEv map[string][]string // attendee id -> event ids in insertion order
}

// NewReservationStore returns an empty in-process ReservationStore.
func NewReservationStore() domain.ReservationStore {
	return &reservationStore{
		events:     make(map[string]*eventLedger),
		eventOf:    make(map[string]string),
		attendeeEv: make(map[string][]string),
	}
}

func (s *reservationStore) ledger(eventID string) *eventLedger {
	s.mu.RLock()
	l, ok := s.events[eventID]
	s.mu.RUnlock()
	if ok {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.events[eventID]; !ok {
		l = &eventLedger{
			byAttendee: make(map[string]*domain.Reservation),
			byID:       make(map[string]*domain.Reservation),
		}
		s.events[eventID] = l
	}
	return l
}

// lock acquires the event's mutex unless ctx already holds it through WithinEvent.
func (s *reservationStore) lock(ctx context.Context, eventID string) (*eventLedger, *memTx, func()) {
	l := s.ledger(eventID)
	if tx := txFromContext(ctx, eventID); tx != nil {
		return l, tx, func() {}
	}
	l.mu.Lock()
	return l, nil, l.mu.Unlock
}

func (s *reservationStore) WithinEvent(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	if txFromContext(ctx, eventID) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.ledger(eventID)
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{eventID: eventID}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *reservationStore) TryReserveSlot(ctx context.Context, eventID string, maxAttendees int) (bool, error) {
	l, tx, unlock := s.lock(ctx, eventID)
	defer unlock()

	if maxAttendees > 0 && l.admitted >= maxAttendees {
		return false, nil
	}
	l.admitted++
	if tx != nil {
		tx.onRollback(func() { l.admitted-- })
	}
	return true, nil
}

func (s *reservationStore) AdmittedCount(ctx context.Context, eventID string) (int, error) {
	l, _, unlock := s.lock(ctx, eventID)
	defer unlock()
	return l.admitted, nil
}

func (s *reservationStore) CreateIfAbsent(ctx context.Context, r *domain.Reservation) (*domain.Reservation, bool, error) {
	l, tx, unlock := s.lock(ctx, r.EventID)
	defer unlock()

	if existing, ok := l.byAttendee[r.AttendeeID]; ok {
		return existing.Clone(), false, nil
	}

	stored := r.Clone()
	l.byAttendee[stored.AttendeeID] = stored
	l.byID[stored.ID] = stored
	l.order = append(l.order, stored)

	s.mu.Lock()
	s.eventOf[stored.ID] = stored.EventID
	s.attendeeEv[stored.AttendeeID] = append(s.attendeeEv[stored.AttendeeID], stored.EventID)
	s.mu.Unlock()

	if tx != nil {
		tx.onRollback(func() {
			delete(l.byAttendee, stored.AttendeeID)
			delete(l.byID, stored.ID)
			l.order = l.order[:len(l.order)-1]
			s.mu.Lock()
			delete(s.eventOf, stored.ID)
			evs := s.attendeeEv[stored.AttendeeID]
			if len(evs) <= 1 {
				delete(s.attendeeEv, stored.AttendeeID)
			} else {
				s.attendeeEv[stored.AttendeeID] = evs[:len(evs)-1]
			}
			s.mu.Unlock()
		})
	}
	return stored.Clone(), true, nil
}

func (s *reservationStore) Find(ctx context.Context, eventID, attendeeID string) (*domain.Reservation, error) {
	l, _, unlock := s.lock(ctx, eventID)
	defer unlock()

	r, ok := l.byAttendee[attendeeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *reservationStore) MarkCheckedIn(ctx context.Context, reservationID string, at time.Time) (*domain.Reservation, bool, error) {
	s.mu.RLock()
	eventID, ok := s.eventOf[reservationID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, domain.ErrNotFound
	}

	l, tx, unlock := s.lock(ctx, eventID)
	defer unlock()

	r, ok := l.byID[reservationID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if r.CheckedIn() {
		return r.Clone(), false, nil
	}
	prev := *r
	r.State = domain.ReservationCheckedIn
	r.CheckedInAt = &at
	if tx != nil {
		tx.onRollback(func() { *r = prev })
	}
	return r.Clone(), true, nil
}

func (s *reservationStore) ListByEvent(ctx context.Context, eventID string) ([]*domain.Reservation, error) {
	l, _, unlock := s.lock(ctx, eventID)
	defer unlock()

	out := make([]*domain.Reservation, 0, len(l.order))
	for _, r := range l.order {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *reservationStore) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Reservation, error) {
	s.mu.RLock()
	eventIDs := append([]string(nil), s.attendeeEv[attendeeID]...)
	s.mu.RUnlock()

	out := make([]*domain.Reservation, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		r, err := s.Find(ctx, eventID, attendeeID)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
