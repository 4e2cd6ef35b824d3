package domain

import (
	"context"
	"strings"
)

// Attendee is a person known to the attendee directory.
// swagger:model Attendee
type Attendee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AttendeeDirectory resolves attendee records by id or email.
type AttendeeDirectory interface {
	GetByID(ctx context.Context, id string) (*Attendee, error)
	GetByEmail(ctx context.Context, email string) (*Attendee, error)
}

// NormalizeEmail lowercases and trims an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveAttendee looks identity up by email when it contains an "@", by id otherwise.
// It returns ErrAttendeeNotFound when the directory has no matching record.
func ResolveAttendee(ctx context.Context, dir AttendeeDirectory, identity string) (*Attendee, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrAttendeeNotFound
	}
	var (
		a   *Attendee
		err error
	)
	if strings.Contains(identity, "@") {
		a, err = dir.GetByEmail(ctx, NormalizeEmail(identity))
	} else {
		a, err = dir.GetByID(ctx, identity)
	}
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAttendeeNotFound
		}
		return nil, err
	}
	return a, nil
}
