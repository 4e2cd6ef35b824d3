package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"eventrsvp/internal/domain"
)

// Directory is an in-process attendee directory.
type Directory struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Attendee
	byEmail map[string]*domain.Attendee
}

// NewDirectory returns a Directory holding the given attendees.
func NewDirectory(attendees ...*domain.Attendee) *Directory {
	d := &Directory{
		byID:    make(map[string]*domain.Attendee),
		byEmail: make(map[string]*domain.Attendee),
	}
	for _, a := range attendees {
		d.Add(a)
	}
	return d
}

// ParseSeed parses "id|name|email" entries into attendees.
func ParseSeed(entries []string) ([]*domain.Attendee, error) {
	out := make([]*domain.Attendee, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("%w: seed entry %q must be id|name|email", domain.ErrInvalidInput, entry)
		}
		out = append(out, &domain.Attendee{
			ID:    strings.TrimSpace(parts[0]),
			Name:  strings.TrimSpace(parts[1]),
			Email: domain.NormalizeEmail(parts[2]),
		})
	}
	return out, nil
}

// Add inserts or replaces an attendee.
func (d *Directory) Add(a *domain.Attendee) {
	c := *a
	c.Email = domain.NormalizeEmail(c.Email)
	d.mu.Lock()
	d.byID[c.ID] = &c
	d.byEmail[c.Email] = &c
	d.mu.Unlock()
}

func (d *Directory) GetByID(ctx context.Context, id string) (*domain.Attendee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (d *Directory) GetByEmail(ctx context.Context, email string) (*domain.Attendee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}
