// README: Booking lifecycle tests against the in-memory store (run with -race).
package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/notify"
	"homefix/internal/testkit"
	"homefix/internal/types"
)

func TestCreateDirectBooking(t *testing.T) {
	env := testkit.New(t)
	b := env.Direct(t)

	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, env.Customer.ID, b.CustomerID)
	assert.Nil(t, b.TechnicianID)
	require.NotNil(t, b.Price)
	assert.Equal(t, types.Money{Amount: 1500, Currency: "NPR"}, *b.Price)
	assert.Nil(t, b.ProposedPrice)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), b.ScheduledAt)
	assert.Equal(t, "kitchen sink leaking", b.ProblemNote)

	assert.Equal(t, []string{booking.EventBookingNew}, env.Bus.On(notify.ChannelTechnicians))

	events, err := env.Bookings.Events(context.Background(), b.ID, env.Customer)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, booking.StatusNone, events[0].FromStatus)
	assert.Equal(t, booking.StatusPending, events[0].ToStatus)
	assert.Equal(t, "customer", events[0].ActorRole)
}

func TestCreateValidation(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	ok := booking.CreateCommand{
		Actor:     env.Customer,
		ServiceID: env.Plumbing.ID,
		Date:      "2025-03-10",
		Time:      "10:30",
		Address:   "Baneshwor",
	}

	cmd := ok
	cmd.Actor = env.Tech(0)
	_, err := env.Bookings.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrForbidden)

	cmd = ok
	cmd.Address = "  "
	_, err = env.Bookings.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	cmd = ok
	cmd.Time = "half past ten"
	_, err = env.Bookings.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	cmd = ok
	cmd.ServiceID = "svc-missing"
	_, err = env.Bookings.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrNotFound)

	missing := types.ID("tech-missing")
	cmd = ok
	cmd.TechnicianID = &missing
	_, err = env.Bookings.Create(ctx, cmd)
	assert.ErrorIs(t, err, types.ErrNotFound)

	all, err := env.Bookings.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateWithChosenTechnician(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[1].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor:        env.Customer,
		ServiceID:    env.Plumbing.ID,
		Date:         "2025-03-10",
		Time:         "10:30",
		Address:      "Baneshwor",
		TechnicianID: &tech,
	})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, b.Status)
	require.NotNil(t, b.TechnicianID)
	assert.Equal(t, tech, *b.TechnicianID)

	// Grant keeps the chosen technician instead of auto-assigning.
	b, err = env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)
	assert.Equal(t, tech, *b.TechnicianID)
	assert.Contains(t, env.Bus.On(notify.Technician(tech)), booking.EventAdminDecision)
}

func TestBroadcastBooking(t *testing.T) {
	env := testkit.New(t)
	b := env.Requested(t)

	assert.Equal(t, booking.StatusRequested, b.Status)
	assert.Nil(t, b.TechnicianID)
	assert.Nil(t, b.Price)
	assert.Equal(t, "Lalitpur", b.Address)
	assert.Equal(t, []string{booking.EventBookingRequest}, env.Bus.On(notify.ChannelTechnicians))

	_, err := env.Bookings.Broadcast(context.Background(), booking.BroadcastCommand{
		Actor:     env.Customer,
		ServiceID: env.Plumbing.ID,
		Date:      "2025-03-11",
		Time:      "14:00",
	})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestAdminGrantAutoAssignsBySkill(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()

	appliance := catalog.Service{
		ID:        "svc-fridge",
		Name:      "Fridge repair",
		Category:  "Appliance",
		BasePrice: types.Money{Amount: 2000, Currency: "NPR"},
	}
	require.NoError(t, env.Repos.Catalog.CreateService(ctx, &appliance))

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor:     env.Customer,
		ServiceID: appliance.ID,
		Date:      "2025-03-12",
		Time:      "09:00",
		Address:   "Bhaktapur",
	})
	require.NoError(t, err)

	b, err = env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, b.Status)
	require.NotNil(t, b.TechnicianID)
	assert.Equal(t, env.Technicians[2].ID, *b.TechnicianID)
	assert.Equal(t, 1, b.StatusVersion)

	assert.Equal(t, []string{booking.EventAdminDecision}, env.Bus.On(notify.Technician(env.Technicians[2].ID)))
	assert.Equal(t, []string{booking.EventAdminDecision}, env.Bus.On(notify.Customer(env.Customer.ID)))

	stored, err := env.Bookings.Get(ctx, b.ID, env.Tech(2))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, stored.Status)
}

func TestAdminDeny(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	b := env.Direct(t)

	b, err := env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionDeny})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusRejected, b.Status)
	assert.Nil(t, b.TechnicianID)

	_, err = env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestAdminDecisionRequiresAdmin(t *testing.T) {
	env := testkit.New(t)
	b := env.Direct(t)

	_, err := env.Bookings.AdminDecision(context.Background(), booking.DecisionCommand{BookingID: b.ID, Actor: env.Customer, Action: booking.DecisionGrant})
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = env.Bookings.AdminDecision(context.Background(), booking.DecisionCommand{BookingID: "missing", Actor: env.Admin, Action: booking.DecisionGrant})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAdminDecisionOnBroadcastRequest(t *testing.T) {
	env := testkit.New(t)
	b := env.Requested(t)

	_, err := env.Bookings.AdminDecision(context.Background(), booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestAdminDecisionOnQuotedBooking(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[0].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &tech,
	})
	require.NoError(t, err)
	_, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: 2500})
	require.NoError(t, err)

	for _, action := range []booking.Decision{booking.DecisionGrant, booking.DecisionDeny} {
		_, err = env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: action})
		assert.ErrorIs(t, err, types.ErrInvalidTransition, "%s on a quoted booking", action)
	}

	got, err := env.Bookings.Find(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusQuoted, got.Status, "the quote still waits for the customer")
	assert.Equal(t, 1, got.StatusVersion)
}

func TestEventsCarryServiceClock(t *testing.T) {
	env := testkit.New(t)
	start := env.Clock.Now()
	b := env.Direct(t)
	_, err := env.Bookings.AdminDecision(context.Background(), booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)

	msgs := env.Bus.Messages()
	require.NotEmpty(t, msgs)
	for _, m := range msgs {
		assert.True(t, m.Event.At.After(start), "%s stamped %v", m.Event.Type, m.Event.At)
		assert.True(t, m.Event.At.Before(start.Add(time.Hour)), "%s stamped %v", m.Event.Type, m.Event.At)
	}
}

func TestQuoteFlow(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[0].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &tech,
	})
	require.NoError(t, err)

	_, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(1), Amount: 1800})
	assert.ErrorIs(t, err, types.ErrForbidden, "only the reserved technician may quote")

	_, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: 0})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	b, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: 1800})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusQuoted, b.Status)
	require.NotNil(t, b.ProposedPrice)
	assert.Equal(t, types.Money{Amount: 1800, Currency: "NPR"}, *b.ProposedPrice)
	assert.Contains(t, env.Bus.On(notify.Customer(env.Customer.ID)), booking.EventQuoted)

	_, err = env.Bookings.RespondToQuote(ctx, booking.QuoteResponseCommand{BookingID: b.ID, Actor: env.Other, Accept: true})
	assert.ErrorIs(t, err, types.ErrForbidden)

	b, err = env.Bookings.RespondToQuote(ctx, booking.QuoteResponseCommand{BookingID: b.ID, Actor: env.Customer, Accept: true})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
	assert.Contains(t, env.Bus.On(notify.Technician(tech)), booking.EventQuoteResponse)

	b, err = env.Bookings.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Actor: env.Tech(0)})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)
	assert.NotNil(t, b.CompletedAt)
}

func TestQuoteDeclined(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[0].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &tech,
	})
	require.NoError(t, err)
	_, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: 1800})
	require.NoError(t, err)

	b, err = env.Bookings.RespondToQuote(ctx, booking.QuoteResponseCommand{BookingID: b.ID, Actor: env.Customer, Accept: false})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusDeclined, b.Status)

	_, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Customer})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestConfirm(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[1].ID

	b := env.Direct(t)
	_, err := env.Bookings.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID, Actor: env.Admin, Status: "completed"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = env.Bookings.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID, Actor: env.Admin})
	assert.ErrorIs(t, err, types.ErrInvalidInput, "unassigned booking needs a technician")

	b, err = env.Bookings.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID, Actor: env.Admin, TechnicianID: &tech, Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusApproved, b.Status)
	assert.Equal(t, tech, *b.TechnicianID)
	assert.Equal(t, []string{booking.EventConfirmed}, env.Bus.On(notify.Technician(tech)))
	assert.Contains(t, env.Bus.On(notify.Customer(env.Customer.ID)), booking.EventConfirmed)

	_, err = env.Bookings.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID, Actor: env.Admin, TechnicianID: &tech})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestConfirmRejectsOtherTechnician(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	reserved := env.Technicians[0].ID
	other := env.Technicians[1].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &reserved,
	})
	require.NoError(t, err)

	_, err = env.Bookings.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID, Actor: env.Admin, TechnicianID: &other})
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestComplete(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	b := env.Direct(t)

	_, err := env.Bookings.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Actor: env.Admin})
	assert.ErrorIs(t, err, types.ErrInvalidTransition, "pending booking cannot complete")

	b, err = env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)

	_, err = env.Bookings.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Actor: env.Tech(1)})
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = env.Bookings.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Actor: env.Customer})
	assert.ErrorIs(t, err, types.ErrForbidden)

	b, err = env.Bookings.Complete(ctx, booking.CompleteCommand{BookingID: b.ID, Actor: env.Admin})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)
	assert.Contains(t, env.Bus.On(notify.Customer(env.Customer.ID)), booking.EventCompleted)
}

func TestCancel(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()

	b := env.Direct(t)
	_, err := env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Other})
	assert.ErrorIs(t, err, types.ErrForbidden)

	b, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Customer, Reason: " changed plans "})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, b.Status)
	require.NotNil(t, b.CancelReason)
	assert.Equal(t, "changed plans", *b.CancelReason)
	assert.NotNil(t, b.CancelledAt)
	assert.Equal(t, []string{booking.EventCancelled}, env.Bus.On(notify.ChannelAdmins))

	_, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Customer})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestAdminCancelNotifiesCustomerAndTechnician(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[0].ID

	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &tech,
	})
	require.NoError(t, err)
	_, err = env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: 2000})
	require.NoError(t, err)
	env.Bus.Reset()

	_, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Admin, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, []string{booking.EventCancelled}, env.Bus.On(notify.Technician(tech)))
	assert.Equal(t, []string{booking.EventCancelled}, env.Bus.On(notify.Customer(env.Customer.ID)))
	assert.Empty(t, env.Bus.On(notify.ChannelAdmins))
}

func TestNoCancelAfterApproval(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	b := env.Direct(t)
	_, err := env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)

	_, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Customer})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
	_, err = env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Admin})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestVisibilityAndLists(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	first := env.Direct(t)
	second := env.Requested(t)

	_, err := env.Bookings.Get(ctx, first.ID, env.Other)
	assert.ErrorIs(t, err, types.ErrForbidden)

	mine, err := env.Bookings.ListByCustomer(ctx, env.Customer.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	pending, err := env.Bookings.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	open, err := env.Bookings.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	b, err := env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: first.ID, Actor: env.Admin, Action: booking.DecisionGrant})
	require.NoError(t, err)
	assigned, err := env.Bookings.ListByTechnician(ctx, *b.TechnicianID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, first.ID, assigned[0].ID)

	none, err := env.Bookings.ListByCustomer(ctx, env.Other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEventsAuditTrail(t *testing.T) {
	env := testkit.New(t)
	b := env.Completed(t)

	events, err := env.Bookings.Events(context.Background(), b.ID, env.Admin)
	require.NoError(t, err)
	require.Len(t, events, 3)

	want := [][2]booking.Status{
		{booking.StatusNone, booking.StatusPending},
		{booking.StatusPending, booking.StatusApproved},
		{booking.StatusApproved, booking.StatusCompleted},
	}
	for i, e := range events {
		assert.Equal(t, want[i][0], e.FromStatus, "event %d", i)
		assert.Equal(t, want[i][1], e.ToStatus, "event %d", i)
	}
	assert.Equal(t, "admin", events[1].ActorRole)
	assert.Equal(t, "technician", events[2].ActorRole)
	assert.Equal(t, 2, b.StatusVersion)
}

func TestCountStale(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	env.Direct(t)
	env.Requested(t)
	env.Requested(t)

	n, err := env.Bookings.CountStale(ctx, env.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.Bookings.CountStale(ctx, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStaleMonitorStopsOnCancel(t *testing.T) {
	env := testkit.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.Bookings.RunStaleMonitor(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestConcurrentDecisionVsCancel(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	b := env.Direct(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := env.Bookings.AdminDecision(ctx, booking.DecisionCommand{BookingID: b.ID, Actor: env.Admin, Action: booking.DecisionGrant})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := env.Bookings.Cancel(ctx, booking.CancelCommand{BookingID: b.ID, Actor: env.Customer})
		errs <- err
	}()
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, types.ErrInvalidTransition) && !errors.Is(err, types.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}

	got, err := env.Bookings.Get(ctx, b.ID, env.Admin)
	require.NoError(t, err)
	assert.Contains(t, []booking.Status{booking.StatusApproved, booking.StatusCancelled}, got.Status)

	events, err := env.Bookings.Events(ctx, b.ID, env.Admin)
	require.NoError(t, err)
	assert.Len(t, events, 2, "exactly one transition is audited")
}

func TestConcurrentQuotesSameBooking(t *testing.T) {
	env := testkit.New(t)
	ctx := context.Background()
	tech := env.Technicians[0].ID
	b, err := env.Bookings.Create(ctx, booking.CreateCommand{
		Actor: env.Customer, ServiceID: env.Plumbing.ID, Date: "2025-03-10", Time: "10:30", Address: "Baneshwor", TechnicianID: &tech,
	})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := env.Bookings.Quote(ctx, booking.QuoteCommand{BookingID: b.ID, Actor: env.Tech(0), Amount: amount})
			errs <- err
		}(int64(1000 + i))
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, types.ErrInvalidTransition)
	}
	assert.Equal(t, 1, success)
}
