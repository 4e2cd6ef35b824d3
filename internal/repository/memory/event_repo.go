package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventrsvp/internal/domain"
)

type eventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.Event
}

// NewEventRepository returns an in-process EventRepository.
func NewEventRepository() domain.EventRepository {
	return &eventRepository{events: make(map[string]*domain.Event)}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c := *e
	r.events[e.ID] = &c
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (r *eventRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	return r.filter(func(e *domain.Event) bool { return e.OwnerID == ownerID }), nil
}

func (r *eventRepository) ListByStatus(ctx context.Context, status domain.EventStatus, page domain.PaginationParams) ([]*domain.Event, int, error) {
	all := r.filter(func(e *domain.Event) bool { return e.Status == status })
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Date.Equal(all[j].Date) {
			return all[i].ID < all[j].ID
		}
		return all[i].Date.Before(all[j].Date)
	})
	start, end := page.Window(len(all))
	return all[start:end], len(all), nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id string, status domain.EventStatus, updatedAt time.Time) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.Status = status
	e.UpdatedAt = updatedAt
	c := *e
	return &c, nil
}

// filter returns copies of matching events, newest first.
func (r *eventRepository) filter(keep func(*domain.Event) bool) []*domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Event, 0)
	for _, e := range r.events {
		if keep(e) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
