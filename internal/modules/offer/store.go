// README: Offer store backed by PostgreSQL; one row per (booking, technician).
package offer

import (
	"context"
	"errors"

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

const offerColumns = `id, booking_id, technician_id, proposed_fare, currency, response_status, eta, created_at, updated_at`

func (s *Store) Upsert(ctx context.Context, o *Offer) (bool, error) {
	var inserted bool
	err := s.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO technician_responses (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (booking_id, technician_id) DO UPDATE
		SET proposed_fare = EXCLUDED.proposed_fare,
		    currency = EXCLUDED.currency,
		    response_status = EXCLUDED.response_status,
		    eta = EXCLUDED.eta,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)`,
		string(o.ID),
		string(o.BookingID),
		string(o.TechnicianID),
		o.ProposedFare.Amount,
		o.ProposedFare.Currency,
		string(o.ResponseStatus),
		o.ETA,
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&o.ID, &o.CreatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *Store) Get(ctx context.Context, bookingID, technicianID types.ID) (*Offer, error) {
	row := s.db.Conn(ctx).QueryRow(ctx, `
		SELECT `+offerColumns+`
		FROM technician_responses
		WHERE booking_id = $1 AND technician_id = $2`,
		string(bookingID), string(technicianID))
	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *Store) ListByBooking(ctx context.Context, bookingID types.ID) ([]Offer, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT `+offerColumns+`
		FROM technician_responses
		WHERE booking_id = $1
		ORDER BY created_at, id`, string(bookingID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Store) RespondedBookingIDs(ctx context.Context, technicianID types.ID) ([]types.ID, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT booking_id FROM technician_responses WHERE technician_id = $1`,
		string(technicianID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.BookingID, &o.TechnicianID,
		&o.ProposedFare.Amount, &o.ProposedFare.Currency,
		&o.ResponseStatus, &o.ETA, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
