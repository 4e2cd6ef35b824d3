package postgres

import (
	"context"
	"database/sql"
	"errors"

	"eventrsvp/internal/domain"
)

type attendeeRepository struct {
	DB *sql.DB
}

// NewAttendeeDirectory returns an AttendeeDirectory reading the attendees table.
func NewAttendeeDirectory(db *sql.DB) domain.AttendeeDirectory {
	return &attendeeRepository{DB: db}
}

func (r *attendeeRepository) GetByID(ctx context.Context, id string) (*domain.Attendee, error) {
	return r.get(ctx, `SELECT id, name, email FROM attendees WHERE id = $1`, id)
}

func (r *attendeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Attendee, error) {
	return r.get(ctx, `SELECT id, name, email FROM attendees WHERE email = $1`, domain.NormalizeEmail(email))
}

func (r *attendeeRepository) get(ctx context.Context, query, arg string) (*domain.Attendee, error) {
	a := &domain.Attendee{}
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Name, &a.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get attendee", err)
	}
	return a, nil
}
