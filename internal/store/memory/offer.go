package memory

import (
	"context"
	"sort"

	"homefix/internal/modules/offer"
	"homefix/internal/types"
)

type Offers struct{ s *Store }

func (r *Offers) Upsert(ctx context.Context, o *offer.Offer) (bool, error) {
	var created bool
	err := r.s.write(ctx, func(st *state) error {
		key := offerKey{bookingID: o.BookingID, technicianID: o.TechnicianID}
		prev, ok := st.offers[key]
		if ok {
			o.ID = prev.ID
			o.CreatedAt = prev.CreatedAt
			st.offers[key] = offerRow{Offer: *o, seq: prev.seq}
			return nil
		}
		st.offers[key] = offerRow{Offer: *o, seq: st.next()}
		created = true
		return nil
	})
	return created, err
}

func (r *Offers) Get(_ context.Context, bookingID, technicianID types.ID) (*offer.Offer, error) {
	var (
		row offerRow
		ok  bool
	)
	r.s.read(func(st *state) {
		row, ok = st.offers[offerKey{bookingID: bookingID, technicianID: technicianID}]
	})
	if !ok {
		return nil, offer.ErrNotFound
	}
	o := row.Offer
	return &o, nil
}

func (r *Offers) ListByBooking(_ context.Context, bookingID types.ID) ([]offer.Offer, error) {
	var rows []offerRow
	r.s.read(func(st *state) {
		for k, row := range st.offers {
			if k.bookingID == bookingID {
				rows = append(rows, row)
			}
		}
	})
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]offer.Offer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Offer)
	}
	return out, nil
}

func (r *Offers) RespondedBookingIDs(_ context.Context, technicianID types.ID) ([]types.ID, error) {
	var out []types.ID
	r.s.read(func(st *state) {
		for k := range st.offers {
			if k.technicianID == technicianID {
				out = append(out, k.bookingID)
			}
		}
	})
	return out, nil
}
