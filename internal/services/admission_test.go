package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventrsvp/internal/domain"
	"eventrsvp/internal/repository/memory"
)

var errStoreDown = fmt.Errorf("insert: %w", domain.ErrStorageUnavailable)

// failingCreateStore fails every CreateIfAbsent after the ledger has been touched.
type failingCreateStore struct {
	domain.ReservationStore
}

func (s *failingCreateStore) CreateIfAbsent(ctx context.Context, r *domain.Reservation) (*domain.Reservation, bool, error) {
	return nil, false, errStoreDown
}

// racingStore reports no prior record but loses the insert to a concurrent request.
type racingStore struct {
	domain.ReservationStore
	winner *domain.Reservation
}

func (s *racingStore) Find(ctx context.Context, eventID, attendeeID string) (*domain.Reservation, error) {
	return nil, domain.ErrNotFound
}

func (s *racingStore) CreateIfAbsent(ctx context.Context, r *domain.Reservation) (*domain.Reservation, bool, error) {
	return s.winner, false, nil
}

func testEvent(max int, deadline time.Time) *domain.Event {
	return &domain.Event{
		ID:           "ev-1",
		Title:        "Go Meetup",
		Date:         deadline.Add(24 * time.Hour),
		Timezone:     "UTC",
		RSVPDeadline: deadline,
		MaxAttendees: max,
		OwnerID:      "host-1",
		Status:       domain.EventStatusScheduled,
	}
}

func TestAdmissionPolicy_Admit(t *testing.T) {
	ctx := context.Background()
	deadline := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("admits before the deadline and consumes a slot", func(t *testing.T) {
		store := memory.NewReservationStore()
		p := NewAdmissionPolicy(store)

		res, err := p.Admit(ctx, testEvent(1, deadline), "a1", deadline.Add(-time.Second))
		require.NoError(t, err)
		assert.Equal(t, domain.Admitted, res.Outcome)
		require.NotNil(t, res.Reservation)
		assert.Equal(t, domain.ReservationReserved, res.Reservation.State)
		assert.False(t, res.Reservation.IsWalkIn)

		n, err := store.AdmittedCount(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("admits exactly at the deadline", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		res, err := p.Admit(ctx, testEvent(1, deadline), "a1", deadline)
		require.NoError(t, err)
		assert.Equal(t, domain.Admitted, res.Outcome)
	})

	t.Run("rejects after the deadline even with free capacity", func(t *testing.T) {
		store := memory.NewReservationStore()
		p := NewAdmissionPolicy(store)

		res, err := p.Admit(ctx, testEvent(10, deadline), "a1", deadline.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedDeadlinePassed, res.Outcome)
		assert.Nil(t, res.Reservation)

		n, err := store.AdmittedCount(ctx, "ev-1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("second rsvp is a duplicate and consumes nothing", func(t *testing.T) {
		store := memory.NewReservationStore()
		p := NewAdmissionPolicy(store)
		event := testEvent(5, deadline)

		first, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)
		require.Equal(t, domain.Admitted, first.Outcome)

		second, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedDuplicate, second.Outcome)
		assert.Equal(t, first.Reservation.ID, second.Reservation.ID)

		n, err := store.AdmittedCount(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("deadline wins over duplicate", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		event := testEvent(5, deadline)
		_, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)

		res, err := p.Admit(ctx, event, "a1", deadline.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedDeadlinePassed, res.Outcome)
	})

	t.Run("duplicate wins over full capacity", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		event := testEvent(1, deadline)
		_, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)

		res, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedDuplicate, res.Outcome)
	})

	t.Run("rejects when full", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		event := testEvent(1, deadline)
		_, err := p.Admit(ctx, event, "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)

		res, err := p.Admit(ctx, event, "a2", deadline.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedCapacityFull, res.Outcome)
		assert.Nil(t, res.Reservation)
	})

	t.Run("zero max is unbounded", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		event := testEvent(0, deadline)
		for i := 0; i < 50; i++ {
			res, err := p.Admit(ctx, event, fmt.Sprintf("a%d", i), deadline.Add(-time.Hour))
			require.NoError(t, err)
			require.Equal(t, domain.Admitted, res.Outcome)
		}
	})

	t.Run("missing attendee id is invalid", func(t *testing.T) {
		p := NewAdmissionPolicy(memory.NewReservationStore())
		_, err := p.Admit(ctx, testEvent(1, deadline), " ", deadline.Add(-time.Hour))
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("storage failure leaves no partial effect", func(t *testing.T) {
		base := memory.NewReservationStore()
		p := NewAdmissionPolicy(&failingCreateStore{ReservationStore: base})

		_, err := p.Admit(ctx, testEvent(1, deadline), "a1", deadline.Add(-time.Hour))
		require.ErrorIs(t, err, domain.ErrStorageUnavailable)

		n, err := base.AdmittedCount(ctx, "ev-1")
		require.NoError(t, err)
		assert.Zero(t, n, "slot must not stay consumed when the insert fails")
		_, err = base.Find(ctx, "ev-1", "a1")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("lost insert race is a duplicate and keeps the slot", func(t *testing.T) {
		base := memory.NewReservationStore()
		winner := domain.NewReservation("r-winner", "ev-1", "a1", deadline.Add(-2*time.Hour))
		p := NewAdmissionPolicy(&racingStore{ReservationStore: base, winner: winner})

		res, err := p.Admit(ctx, testEvent(5, deadline), "a1", deadline.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.RejectedDuplicate, res.Outcome)
		assert.Equal(t, "r-winner", res.Reservation.ID)

		n, err := base.AdmittedCount(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestAdmissionPolicy_ConcurrentDistinctAttendees(t *testing.T) {
	ctx := context.Background()
	deadline := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		max      int
		requests int
	}{
		{max: 1, requests: 20},
		{max: 10, requests: 100},
		{max: 25, requests: 26},
		{max: 30, requests: 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d requests=%d", tt.max, tt.requests), func(t *testing.T) {
			store := memory.NewReservationStore()
			p := NewAdmissionPolicy(store)
			event := testEvent(tt.max, deadline)

			outcomes := make([]domain.AdmitOutcome, tt.requests)
			var wg sync.WaitGroup
			for i := 0; i < tt.requests; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := p.Admit(ctx, event, fmt.Sprintf("attendee-%d", i), deadline.Add(-time.Minute))
					if err != nil {
						t.Errorf("admit: %v", err)
						return
					}
					outcomes[i] = res.Outcome
				}(i)
			}
			wg.Wait()

			admitted, full := 0, 0
			for _, o := range outcomes {
				switch o {
				case domain.Admitted:
					admitted++
				case domain.RejectedCapacityFull:
					full++
				default:
					t.Fatalf("unexpected outcome %v", o)
				}
			}
			want := min(tt.requests, tt.max)
			assert.Equal(t, want, admitted)
			assert.Equal(t, tt.requests-want, full)

			n, err := store.AdmittedCount(ctx, "ev-1")
			require.NoError(t, err)
			assert.Equal(t, want, n)

			list, err := store.ListByEvent(ctx, "ev-1")
			require.NoError(t, err)
			assert.Len(t, list, want)
		})
	}
}

func TestAdmissionPolicy_ConcurrentSameAttendee(t *testing.T) {
	ctx := context.Background()
	deadline := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewReservationStore()
	p := NewAdmissionPolicy(store)
	event := testEvent(10, deadline)

	const callers = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		dup      int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Admit(ctx, event, "same-attendee", deadline.Add(-time.Minute))
			if err != nil {
				t.Errorf("admit: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch res.Outcome {
			case domain.Admitted:
				admitted++
			case domain.RejectedDuplicate:
				dup++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, callers-1, dup)
	n, err := store.AdmittedCount(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
