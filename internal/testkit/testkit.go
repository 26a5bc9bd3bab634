// README: Service wiring over the in-memory store or a test database, with a seeded catalog, for package tests.
package testkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/modules/offer"
	"homefix/internal/modules/payment"
	"homefix/internal/modules/rating"
	"homefix/internal/notify"
	"homefix/internal/store/memory"
	"homefix/internal/types"
)

// Clock advances one second on every reading so records order deterministically.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type Env struct {
	// Store is nil for Postgres-backed environments.
	Store    *memory.Store
	Repos    Repos
	Bus      *notify.Recorder
	Clock    *Clock
	Catalog  *catalog.Directory
	Bookings *booking.Service
	Offers   *offer.Service
	Ratings  *rating.Service
	Payments *payment.Service

	// Plumbing is a plumbing service priced at 1500 NPR.
	Plumbing catalog.Service
	// Technicians are, in creation order: plumber, electrician, appliance repair.
	Technicians []catalog.Technician

	Customer types.Actor
	Other    types.Actor
	Admin    types.Actor
}

// Repos is one storage backend.
type Repos struct {
	Catalog interface {
		catalog.Repository
		catalog.Writer
	}
	Bookings booking.Repository
	Offers   offer.Repository
	Ratings  rating.Repository
	Payments payment.Repository
	Tx       booking.TxRunner
}

// New wires every service over a fresh in-memory store.
func New(t testing.TB) *Env {
	t.Helper()
	store := memory.New()
	env := build(t, Repos{
		Catalog:  store.Catalog(),
		Bookings: store.Bookings(),
		Offers:   store.Offers(),
		Ratings:  store.Ratings(),
		Payments: store.Payments(),
		Tx:       store,
	})
	env.Store = store
	return env
}

// NewPostgres wires every service over the database named by HOMEFIX_TEST_DSN.
func NewPostgres(t testing.TB) *Env {
	t.Helper()
	db := Postgres(t)
	return build(t, Repos{
		Catalog:  catalog.NewStore(db),
		Bookings: booking.NewStore(db),
		Offers:   offer.NewStore(db),
		Ratings:  rating.NewStore(db),
		Payments: payment.NewStore(db),
		Tx:       db,
	})
}

func build(t testing.TB, repos Repos) *Env {
	t.Helper()
	ctx := context.Background()
	clock := NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	bus := &notify.Recorder{}

	env := &Env{
		Repos:    repos,
		Bus:      bus,
		Clock:    clock,
		Customer: types.Actor{ID: "cust-1", Role: types.RoleCustomer},
		Other:    types.Actor{ID: "cust-2", Role: types.RoleCustomer},
		Admin:    types.Actor{ID: "admin-1", Role: types.RoleAdmin},
	}

	env.Plumbing = catalog.Service{
		ID:          "svc-plumbing",
		Name:        "Pipe leak repair",
		Description: "Fix leaking pipes",
		Category:    "Plumbing",
		BasePrice:   types.Money{Amount: 1500, Currency: "NPR"},
		CreatedAt:   clock.Now(),
	}
	if err := repos.Catalog.CreateService(ctx, &env.Plumbing); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	for _, tech := range []catalog.Technician{
		{ID: "tech-plumber", Name: "Ram", Skills: "plumbing, pipe fitting"},
		{ID: "tech-electric", Name: "Sita", Skills: "electrical, wiring"},
		{ID: "tech-appliance", Name: "Hari", Skills: "appliance, ac repair"},
	} {
		tech.CreatedAt = clock.Now()
		if err := repos.Catalog.CreateTechnician(ctx, &tech); err != nil {
			t.Fatalf("seed technician: %v", err)
		}
		env.Technicians = append(env.Technicians, tech)
	}

	env.Catalog = catalog.NewDirectory(repos.Catalog)
	env.Bookings = booking.NewService(repos.Bookings, env.Catalog, repos.Tx, bus,
		booking.WithClock(clock.Now),
	)
	env.Ratings = rating.NewService(repos.Ratings, env.Bookings, env.Catalog, bus,
		rating.WithClock(clock.Now),
	)
	env.Offers = offer.NewService(repos.Offers, env.Bookings, env.Catalog, env.Ratings,
		offer.WithClock(clock.Now),
	)
	env.Payments = payment.NewService(repos.Payments, env.Bookings)
	return env
}

// Tech returns the actor of the i-th seeded technician.
func (e *Env) Tech(i int) types.Actor {
	return types.Actor{ID: e.Technicians[i].ID, Role: types.RoleTechnician}
}

// Direct creates a pending booking for the plumbing service.
func (e *Env) Direct(t testing.TB) *booking.Booking {
	t.Helper()
	b, err := e.Bookings.Create(context.Background(), booking.CreateCommand{
		Actor:     e.Customer,
		ServiceID: e.Plumbing.ID,
		Date:      "2025-03-10",
		Time:      "10:30",
		Address:   "Baneshwor, Kathmandu",
		Note:      "kitchen sink leaking",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// Requested creates a broadcast booking waiting for offers.
func (e *Env) Requested(t testing.TB) *booking.Booking {
	t.Helper()
	b, err := e.Bookings.Broadcast(context.Background(), booking.BroadcastCommand{
		Actor:     e.Customer,
		ServiceID: e.Plumbing.ID,
		Date:      "2025-03-11",
		Time:      "14:00",
		Location:  "Lalitpur",
	})
	if err != nil {
		t.Fatalf("broadcast booking: %v", err)
	}
	return b
}

// Completed creates a direct booking, grants it, and completes it as the assigned technician.
func (e *Env) Completed(t testing.TB) *booking.Booking {
	t.Helper()
	ctx := context.Background()
	b := e.Direct(t)
	b, err := e.Bookings.AdminDecision(ctx, booking.DecisionCommand{
		BookingID: b.ID, Actor: e.Admin, Action: booking.DecisionGrant,
	})
	if err != nil {
		t.Fatalf("grant booking: %v", err)
	}
	b, err = e.Bookings.Complete(ctx, booking.CompleteCommand{
		BookingID: b.ID,
		Actor:     types.Actor{ID: *b.TechnicianID, Role: types.RoleTechnician},
	})
	if err != nil {
		t.Fatalf("complete booking: %v", err)
	}
	return b
}
