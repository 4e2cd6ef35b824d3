package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventrsvp/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

const eventColumns = `id, title, description, date, timezone, location_physical, location_virtual,
		rsvp_deadline, max_attendees, owner_id, status, created_at, updated_at`

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (title, description, date, timezone, location_physical, location_virtual,
			rsvp_deadline, max_attendees, owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Date, e.Timezone, e.LocationPhysical, e.LocationVirtual,
		e.RSVPDeadline, e.MaxAttendees, e.OwnerID, string(e.Status), e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	return wrap("create event", err)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("get event", err)
	}
	return e, nil
}

func (r *eventRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerID)
}

func (r *eventRepository) ListByStatus(ctx context.Context, status domain.EventStatus, page domain.PaginationParams) ([]*domain.Event, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return nil, 0, wrap("count events", err)
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE status = $1 ORDER BY date ASC, id LIMIT $2 OFFSET $3`
	events, err := r.list(ctx, query, string(status), page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id string, status domain.EventStatus, updatedAt time.Time) (*domain.Event, error) {
	query := `
		UPDATE events SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + eventColumns
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id, string(status), updatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("update event status", err)
	}
	return e, nil
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list events", err)
	}
	return events, nil
}

func scanEvent(s rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var status string
	err := s.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.Timezone, &e.LocationPhysical, &e.LocationVirtual,
		&e.RSVPDeadline, &e.MaxAttendees, &e.OwnerID, &status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EventStatus(status)
	return e, nil
}
