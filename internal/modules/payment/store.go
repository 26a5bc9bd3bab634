package payment

import (
	"context"

	"homefix/internal/infra"
	"homefix/internal/types"
)

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, p *Payment) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, booking_id, amount, currency, method, status, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(p.ID),
		string(p.BookingID),
		p.Amount.Amount,
		p.Amount.Currency,
		p.Method,
		string(p.Status),
		string(p.RecordedBy),
		p.CreatedAt,
	)
	return err
}

func (s *Store) ListByBooking(ctx context.Context, bookingID types.ID) ([]Payment, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT id, booking_id, amount, currency, method, status, recorded_by, created_at
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at, id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Amount.Amount, &p.Amount.Currency,
			&p.Method, &p.Status, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
