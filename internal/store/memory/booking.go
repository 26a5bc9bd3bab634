package memory

import (
	"context"
	"fmt"
	"sort"

	"homefix/internal/modules/booking"
	"homefix/internal/types"
)

type Bookings struct{ s *Store }

func (r *Bookings) Create(ctx context.Context, b *booking.Booking) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.bookings[b.ID]; ok {
			return fmt.Errorf("%w: booking %s already exists", types.ErrConflict, b.ID)
		}
		st.bookings[b.ID] = bookingRow{Booking: *b.Clone(), seq: st.next()}
		return nil
	})
}

func (r *Bookings) Get(_ context.Context, id types.ID) (*booking.Booking, error) {
	var (
		row bookingRow
		ok  bool
	)
	r.s.read(func(st *state) { row, ok = st.bookings[id] })
	if !ok {
		return nil, booking.ErrNotFound
	}
	return row.Clone(), nil
}

// GetForUpdate relies on InTx for exclusion.
func (r *Bookings) GetForUpdate(ctx context.Context, id types.ID) (*booking.Booking, error) {
	return r.Get(ctx, id)
}

func (r *Bookings) Update(ctx context.Context, b *booking.Booking, from booking.Status, version int) (bool, error) {
	var updated bool
	err := r.s.write(ctx, func(st *state) error {
		row, ok := st.bookings[b.ID]
		if !ok || row.Status != from || row.StatusVersion != version {
			return nil
		}
		next := b.Clone()
		next.StatusVersion = version + 1
		st.bookings[b.ID] = bookingRow{Booking: *next, seq: row.seq}
		updated = true
		return nil
	})
	return updated, err
}

func (r *Bookings) List(_ context.Context, f booking.Filter) ([]booking.Booking, error) {
	var rows []bookingRow
	r.s.read(func(st *state) {
		for _, row := range st.bookings {
			if matches(&row.Booking, f) {
				rows = append(rows, row)
			}
		}
	})
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.Clone())
	}
	return out, nil
}

func matches(b *booking.Booking, f booking.Filter) bool {
	if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
		return false
	}
	if f.TechnicianID != nil && !b.AssignedTo(*f.TechnicianID) {
		return false
	}
	if f.CreatedBefore != nil && !b.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if b.Status == st {
			return true
		}
	}
	return false
}

func (r *Bookings) AppendEvent(ctx context.Context, e *booking.Event) error {
	return r.s.write(ctx, func(st *state) error {
		e.ID = st.next()
		ev := *e
		if e.ActorID != nil {
			ev.ActorID = types.IDPtr(*e.ActorID)
		}
		st.events = append(st.events, ev)
		return nil
	})
}

func (r *Bookings) ListEvents(_ context.Context, bookingID types.ID) ([]booking.Event, error) {
	var out []booking.Event
	r.s.read(func(st *state) {
		for _, e := range st.events {
			if e.BookingID == bookingID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}
