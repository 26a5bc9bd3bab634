// README: In-memory implementation of every module repository, used for local runs and tests.
// Writes are serialized by one store-wide transaction lock; a failed transaction restores
// the snapshot taken when it began.
package memory

import (
	"context"
	"sort"
	"sync"

	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/modules/offer"
	"homefix/internal/modules/payment"
	"homefix/internal/modules/rating"
	"homefix/internal/types"
)

type offerKey struct {
	bookingID    types.ID
	technicianID types.ID
}

type bookingRow struct {
	booking.Booking
	seq int64
}

type offerRow struct {
	offer.Offer
	seq int64
}

type state struct {
	services    map[types.ID]catalog.Service
	technicians map[types.ID]catalog.Technician
	bookings    map[types.ID]bookingRow
	events      []booking.Event
	offers      map[offerKey]offerRow
	ratings     []rating.Rating
	payments    []payment.Payment
	seq         int64
}

func newState() state {
	return state{
		services:    map[types.ID]catalog.Service{},
		technicians: map[types.ID]catalog.Technician{},
		bookings:    map[types.ID]bookingRow{},
		offers:      map[offerKey]offerRow{},
	}
}

// clone copies the containers. Stored values are replaced on write, never mutated in place.
func (st state) clone() state {
	c := state{
		services:    make(map[types.ID]catalog.Service, len(st.services)),
		technicians: make(map[types.ID]catalog.Technician, len(st.technicians)),
		bookings:    make(map[types.ID]bookingRow, len(st.bookings)),
		events:      append([]booking.Event(nil), st.events...),
		offers:      make(map[offerKey]offerRow, len(st.offers)),
		ratings:     append([]rating.Rating(nil), st.ratings...),
		payments:    append([]payment.Payment(nil), st.payments...),
		seq:         st.seq,
	}
	for k, v := range st.services {
		c.services[k] = v
	}
	for k, v := range st.technicians {
		c.technicians[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	for k, v := range st.offers {
		c.offers[k] = v
	}
	return c
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
}

func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

// InTx runs fn with exclusive write access. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// write applies fn under the data lock, inside a transaction if ctx has none.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.InTx(ctx, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(&s.st)
	})
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.st)
}

func (st *state) next() int64 {
	st.seq++
	return st.seq
}

func (s *Store) Catalog() *Catalog   { return &Catalog{s: s} }
func (s *Store) Bookings() *Bookings { return &Bookings{s: s} }
func (s *Store) Offers() *Offers     { return &Offers{s: s} }
func (s *Store) Ratings() *Ratings   { return &Ratings{s: s} }
func (s *Store) Payments() *Payments { return &Payments{s: s} }

type Catalog struct{ s *Store }

func (c *Catalog) GetService(_ context.Context, id types.ID) (*catalog.Service, error) {
	var (
		svc catalog.Service
		ok  bool
	)
	c.s.read(func(st *state) { svc, ok = st.services[id] })
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	return &svc, nil
}

func (c *Catalog) ListServices(_ context.Context) ([]catalog.Service, error) {
	var out []catalog.Service
	c.s.read(func(st *state) {
		for _, svc := range st.services {
			out = append(out, svc)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (c *Catalog) CreateService(ctx context.Context, svc *catalog.Service) error {
	return c.s.write(ctx, func(st *state) error {
		st.services[svc.ID] = *svc
		return nil
	})
}

func (c *Catalog) GetTechnician(_ context.Context, id types.ID) (*catalog.Technician, error) {
	var (
		t  catalog.Technician
		ok bool
	)
	c.s.read(func(st *state) { t, ok = st.technicians[id] })
	if !ok {
		return nil, catalog.ErrTechnicianNotFound
	}
	return &t, nil
}

func (c *Catalog) ListTechnicians(_ context.Context) ([]catalog.Technician, error) {
	var out []catalog.Technician
	c.s.read(func(st *state) {
		for _, t := range st.technicians {
			out = append(out, t)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Catalog) CreateTechnician(ctx context.Context, t *catalog.Technician) error {
	return c.s.write(ctx, func(st *state) error {
		st.technicians[t.ID] = *t
		return nil
	})
}
