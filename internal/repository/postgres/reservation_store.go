package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventrsvp/internal/domain"
)

type txKey struct{}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

type reservationStore struct {
	DB *sql.DB
}

// NewReservationStore returns a ReservationStore backed by the event_capacity and
// reservations tables. The event_capacity row of an event is its serialization point.
func NewReservationStore(db *sql.DB) domain.ReservationStore {
	return &reservationStore{DB: db}
}

func (r *reservationStore) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.DB
}

const (
	ensureLedgerRowQuery = `
		INSERT INTO event_capacity (event_id, admitted)
		VALUES ($1, 0)
		ON CONFLICT (event_id) DO NOTHING
	`
	lockLedgerRowQuery = `SELECT admitted FROM event_capacity WHERE event_id = $1 FOR UPDATE`
	reservationColumns = `id, event_id, attendee_id, state, is_walk_in, created_at, checked_in_at`
)

func (r *reservationStore) ensureLedgerRow(ctx context.Context, eventID string) error {
	if _, err := r.q(ctx).ExecContext(ctx, ensureLedgerRowQuery, eventID); err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return domain.ErrEventNotFound
		}
		return wrap("ensure ledger row", err)
	}
	return nil
}

func (r *reservationStore) WithinEvent(ctx context.Context, eventID string, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		if err := r.lockLedgerRow(ctx, eventID); err != nil {
			return err
		}
		return fn(ctx)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin tx", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := r.lockLedgerRow(txCtx, eventID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (r *reservationStore) lockLedgerRow(ctx context.Context, eventID string) error {
	if err := r.ensureLedgerRow(ctx, eventID); err != nil {
		return err
	}
	var admitted int
	if err := r.q(ctx).QueryRowContext(ctx, lockLedgerRowQuery, eventID).Scan(&admitted); err != nil {
		return wrap("lock ledger row", err)
	}
	return nil
}

func (r *reservationStore) TryReserveSlot(ctx context.Context, eventID string, maxAttendees int) (bool, error) {
	if err := r.ensureLedgerRow(ctx, eventID); err != nil {
		return false, err
	}
	// The conditional UPDATE is atomic per row: concurrent callers queue on the
	// row lock and re-check the predicate against the committed count.
	query := `
		UPDATE event_capacity
		SET admitted = admitted + 1
		WHERE event_id = $1 AND ($2 <= 0 OR admitted < $2)
	`
	res, err := r.q(ctx).ExecContext(ctx, query, eventID, maxAttendees)
	if err != nil {
		return false, wrap("reserve slot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("reserve slot", err)
	}
	return n == 1, nil
}

func (r *reservationStore) AdmittedCount(ctx context.Context, eventID string) (int, error) {
	var admitted int
	err := r.q(ctx).QueryRowContext(ctx, `SELECT admitted FROM event_capacity WHERE event_id = $1`, eventID).Scan(&admitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, wrap("admitted count", err)
	}
	return admitted, nil
}

func (r *reservationStore) CreateIfAbsent(ctx context.Context, res *domain.Reservation) (*domain.Reservation, bool, error) {
	query := `
		INSERT INTO reservations (id, event_id, attendee_id, state, is_walk_in, created_at, checked_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, attendee_id) DO NOTHING
		RETURNING id
	`
	var checkedInAt sql.NullTime
	if res.CheckedInAt != nil {
		checkedInAt = sql.NullTime{Time: *res.CheckedInAt, Valid: true}
	}
	var id string
	err := r.q(ctx).QueryRowContext(ctx, query,
		res.ID, res.EventID, res.AttendeeID, string(res.State), res.IsWalkIn, res.CreatedAt, checkedInAt,
	).Scan(&id)
	if err == nil {
		return res.Clone(), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if pqCode(err) == codeForeignKeyViolation {
			return nil, false, domain.ErrEventNotFound
		}
		return nil, false, wrap("create reservation", err)
	}
	existing, err := r.Find(ctx, res.EventID, res.AttendeeID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *reservationStore) Find(ctx context.Context, eventID, attendeeID string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE event_id = $1 AND attendee_id = $2`
	res, err := scanReservation(r.q(ctx).QueryRowContext(ctx, query, eventID, attendeeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, wrap("find reservation", err)
	}
	return res, nil
}

func (r *reservationStore) MarkCheckedIn(ctx context.Context, reservationID string, at time.Time) (*domain.Reservation, bool, error) {
	query := `
		UPDATE reservations
		SET state = 'checked_in', checked_in_at = $2
		WHERE id = $1 AND state = 'reserved'
		RETURNING ` + reservationColumns
	res, err := scanReservation(r.q(ctx).QueryRowContext(ctx, query, reservationID, at))
	if err == nil {
		return res, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, wrap("mark checked in", err)
	}

	res, err = scanReservation(r.q(ctx).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, reservationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, wrap("get reservation", err)
	}
	return res, false, nil
}

func (r *reservationStore) ListByEvent(ctx context.Context, eventID string) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE event_id = $1 ORDER BY created_at, id`
	return r.list(ctx, query, eventID)
}

func (r *reservationStore) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE attendee_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, attendeeID)
}

func (r *reservationStore) list(ctx context.Context, query string, arg string) ([]*domain.Reservation, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, wrap("list reservations", err)
	}
	defer rows.Close()

	out := make([]*domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, wrap("scan reservation", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list reservations", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	var state string
	var checkedInAt sql.NullTime
	if err := s.Scan(&res.ID, &res.EventID, &res.AttendeeID, &state, &res.IsWalkIn, &res.CreatedAt, &checkedInAt); err != nil {
		return nil, err
	}
	res.State = domain.ReservationState(state)
	if checkedInAt.Valid {
		t := checkedInAt.Time
		res.CheckedInAt = &t
	}
	return res, nil
}
