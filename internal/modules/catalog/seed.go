package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"homefix/internal/types"
)

// Writer is implemented by both the Postgres and in-memory catalog stores.
type Writer interface {
	CreateService(ctx context.Context, svc *Service) error
	CreateTechnician(ctx context.Context, t *Technician) error
}

type Seed struct {
	Services []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Category    string `yaml:"category"`
		BasePrice   int64  `yaml:"base_price"`
		Currency    string `yaml:"currency"`
	} `yaml:"services"`
	Technicians []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Phone    string `yaml:"phone"`
		Location string `yaml:"location"`
		Skills   string `yaml:"skills"`
	} `yaml:"technicians"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply writes every entry; entries without an id get a generated one.
func (s *Seed) Apply(ctx context.Context, w Writer, currency string) error {
	now := time.Now().UTC()
	for i, in := range s.Services {
		if in.Name == "" {
			return fmt.Errorf("%w: seed service %d has no name", types.ErrInvalidInput, i)
		}
		svc := &Service{
			ID:          seedID(in.ID),
			Name:        in.Name,
			Description: in.Description,
			Category:    in.Category,
			BasePrice:   types.Money{Amount: in.BasePrice, Currency: in.Currency},
			CreatedAt:   now,
		}
		if svc.BasePrice.Currency == "" {
			svc.BasePrice.Currency = currency
		}
		if err := w.CreateService(ctx, svc); err != nil {
			return fmt.Errorf("seed service %q: %w", in.Name, err)
		}
	}
	for i, in := range s.Technicians {
		if in.Name == "" {
			return fmt.Errorf("%w: seed technician %d has no name", types.ErrInvalidInput, i)
		}
		// Offsets keep file order for ListTechnicians.
		t := &Technician{
			ID:        seedID(in.ID),
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
			Location:  in.Location,
			Skills:    in.Skills,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := w.CreateTechnician(ctx, t); err != nil {
			return fmt.Errorf("seed technician %q: %w", in.Name, err)
		}
	}
	return nil
}

func seedID(v string) types.ID {
	if v == "" {
		return types.NewID()
	}
	return types.ID(v)
}
