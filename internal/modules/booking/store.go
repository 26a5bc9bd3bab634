// README: Booking store backed by PostgreSQL; status writes are compare-and-swap on status_version.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"homefix/internal/infra"
	"homefix/internal/types"
)

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

const bookingColumns = `
	id, customer_id, technician_id, service_id, scheduled_at, address, problem_note,
	price, proposed_price, currency, status, status_version, cancel_reason,
	created_at, updated_at, completed_at, cancelled_at`

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		string(b.ID),
		string(b.CustomerID),
		toStringPtr(b.TechnicianID),
		string(b.ServiceID),
		b.ScheduledAt,
		b.Address,
		b.ProblemNote,
		toAmountPtr(b.Price),
		toAmountPtr(b.ProposedPrice),
		currencyOf(b),
		string(b.Status),
		b.StatusVersion,
		b.CancelReason,
		b.CreatedAt,
		b.UpdatedAt,
		b.CompletedAt,
		b.CancelledAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.get(ctx, id, false)
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Booking, error) {
	return s.get(ctx, id, true)
}

func (s *Store) get(ctx context.Context, id types.ID, lock bool) (*Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	b, err := scanBooking(s.db.Conn(ctx).QueryRow(ctx, q, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Store) Update(ctx context.Context, b *Booking, from Status, version int) (bool, error) {
	tag, err := s.db.Conn(ctx).Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    technician_id = $2,
		    price = $3,
		    proposed_price = $4,
		    currency = $5,
		    cancel_reason = $6,
		    updated_at = $7,
		    completed_at = $8,
		    cancelled_at = $9
		WHERE id = $10 AND status = $11 AND status_version = $12`,
		string(b.Status),
		toStringPtr(b.TechnicianID),
		toAmountPtr(b.Price),
		toAmountPtr(b.ProposedPrice),
		currencyOf(b),
		b.CancelReason,
		b.UpdatedAt,
		b.CompletedAt,
		b.CancelledAt,
		string(b.ID),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Booking, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CustomerID != nil {
		where = append(where, "customer_id = "+arg(string(*f.CustomerID)))
	}
	if f.TechnicianID != nil {
		where = append(where, "technician_id = "+arg(string(*f.TechnicianID)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at < "+arg(*f.CreatedBefore))
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	return s.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO booking_state_events (
			booking_id, from_status, to_status, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorRole,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	).Scan(&e.ID)
}

func (s *Store) ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor_role, actor_id, created_at
		FROM booking_state_events
		WHERE booking_id = $1
		ORDER BY id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.BookingID, &e.FromStatus, &e.ToStatus, &e.ActorRole, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			e.ActorID = types.IDPtr(types.ID(actorID.String))
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b             Booking
		technicianID  sql.NullString
		price         sql.NullInt64
		proposedPrice sql.NullInt64
		currency      string
		cancelReason  sql.NullString
		completedAt   sql.NullTime
		cancelledAt   sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &technicianID, &b.ServiceID, &b.ScheduledAt, &b.Address, &b.ProblemNote,
		&price, &proposedPrice, &currency, &b.Status, &b.StatusVersion, &cancelReason,
		&b.CreatedAt, &b.UpdatedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if technicianID.Valid {
		b.TechnicianID = types.IDPtr(types.ID(technicianID.String))
	}
	if price.Valid {
		b.Price = &types.Money{Amount: price.Int64, Currency: currency}
	}
	if proposedPrice.Valid {
		b.ProposedPrice = &types.Money{Amount: proposedPrice.Int64, Currency: currency}
	}
	if cancelReason.Valid {
		b.CancelReason = &cancelReason.String
	}
	b.CompletedAt = toTimePtr(completedAt)
	b.CancelledAt = toTimePtr(cancelledAt)
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toAmountPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

// currencyOf returns the single currency stored for both price columns.
func currencyOf(b *Booking) string {
	if b.Price != nil && b.Price.Currency != "" {
		return b.Price.Currency
	}
	if b.ProposedPrice != nil {
		return b.ProposedPrice.Currency
	}
	return ""
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
