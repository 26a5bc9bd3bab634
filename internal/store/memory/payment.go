package memory

import (
	"context"

	"homefix/internal/modules/payment"
	"homefix/internal/types"
)

type Payments struct{ s *Store }

func (r *Payments) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.write(ctx, func(st *state) error {
		st.payments = append(st.payments, *p)
		return nil
	})
}

func (r *Payments) ListByBooking(_ context.Context, bookingID types.ID) ([]payment.Payment, error) {
	var out []payment.Payment
	r.s.read(func(st *state) {
		for _, p := range st.payments {
			if p.BookingID == bookingID {
				out = append(out, p)
			}
		}
	})
	return out, nil
}
