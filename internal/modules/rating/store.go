// README: Rating store backed by PostgreSQL; (booking_id, customer_id) is unique.
package rating

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"homefix/internal/infra"
	"homefix/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *infra.DB
}

func NewStore(db *infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Rating) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO ratings (id, booking_id, technician_id, customer_id, score, review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID),
		string(r.BookingID),
		string(r.TechnicianID),
		string(r.CustomerID),
		r.Score,
		r.Review,
		r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (s *Store) Exists(ctx context.Context, bookingID, customerID types.ID) (bool, error) {
	var exists bool
	err := s.db.Conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ratings WHERE booking_id = $1 AND customer_id = $2
		)`, string(bookingID), string(customerID),
	).Scan(&exists)
	return exists, err
}

func (s *Store) ListByTechnician(ctx context.Context, technicianID types.ID, limit int) ([]Rating, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, `
		SELECT id, booking_id, technician_id, customer_id, score, review, created_at
		FROM ratings
		WHERE technician_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, string(technicianID), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.BookingID, &r.TechnicianID, &r.CustomerID, &r.Score, &r.Review, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context, technicianID types.ID, limit int) (int, int, error) {
	var sum, count int
	err := s.db.Conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(score), 0), COUNT(*)
		FROM (
			SELECT score FROM ratings
			WHERE technician_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent`, string(technicianID), limitArg(limit),
	).Scan(&sum, &count)
	return sum, count, err
}

// limitArg maps "no limit" to NULL, which Postgres treats as LIMIT ALL.
func limitArg(limit int) *int64 {
	if limit <= 0 {
		return nil
	}
	n := int64(limit)
	return &n
}
