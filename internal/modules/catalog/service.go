// README: Catalog directory; read-only lookups of services and technicians.
package catalog

import (
	"context"
	"fmt"

	"homefix/internal/types"
)

var (
	ErrServiceNotFound    = fmt.Errorf("service %w", types.ErrNotFound)
	ErrTechnicianNotFound = fmt.Errorf("technician %w", types.ErrNotFound)
)

// Repository returns ErrServiceNotFound / ErrTechnicianNotFound for missing rows.
// ListTechnicians is ordered by creation time, then id.
type Repository interface {
	GetService(ctx context.Context, id types.ID) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)
	GetTechnician(ctx context.Context, id types.ID) (*Technician, error)
	ListTechnicians(ctx context.Context) ([]Technician, error)
}

type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) GetService(ctx context.Context, id types.ID) (*Service, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: service id is required", types.ErrInvalidInput)
	}
	return d.repo.GetService(ctx, id)
}

func (d *Directory) ListServices(ctx context.Context) ([]Service, error) {
	return d.repo.ListServices(ctx)
}

func (d *Directory) GetTechnician(ctx context.Context, id types.ID) (*Technician, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: technician id is required", types.ErrInvalidInput)
	}
	return d.repo.GetTechnician(ctx, id)
}

func (d *Directory) ListTechnicians(ctx context.Context) ([]Technician, error) {
	return d.repo.ListTechnicians(ctx)
}
