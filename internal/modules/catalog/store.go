// README: Catalog store backed by PostgreSQL.
package catalog

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

const serviceColumns = `id, name, description, category, base_price, currency, created_at`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Category,
		&s.BasePrice.Amount, &s.BasePrice.Currency, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Store) GetService(ctx context.Context, id types.ID) (*Service, error) {
	row := s.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, string(id))
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	return svc, err
}

func (s *Store) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := s.db.Conn(ctx).Query(ctx,
		`SELECT `+serviceColumns+` FROM services ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

// CreateService is used by seeding and tests.
func (s *Store) CreateService(ctx context.Context, svc *Service) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO services (`+serviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(svc.ID), svc.Name, svc.Description, svc.Category,
		svc.BasePrice.Amount, svc.BasePrice.Currency, svc.CreatedAt,
	)
	return err
}

const technicianColumns = `id, name, email, phone, location, skills, created_at`

func scanTechnician(row pgx.Row) (*Technician, error) {
	var t Technician
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Location, &t.Skills, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTechnician(ctx context.Context, id types.ID) (*Technician, error) {
	row := s.db.Conn(ctx).QueryRow(ctx,
		`SELECT `+technicianColumns+` FROM technicians WHERE id = $1`, string(id))
	t, err := scanTechnician(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTechnicianNotFound
	}
	return t, err
}

func (s *Store) ListTechnicians(ctx context.Context) ([]Technician, error) {
	rows, err := s.db.Conn(ctx).Query(ctx,
		`SELECT `+technicianColumns+` FROM technicians ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) CreateTechnician(ctx context.Context, t *Technician) error {
	_, err := s.db.Conn(ctx).Exec(ctx, `
		INSERT INTO technicians (`+technicianColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(t.ID), t.Name, t.Email, t.Phone, t.Location, t.Skills, t.CreatedAt,
	)
	return err
}
