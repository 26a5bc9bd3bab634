package memory

import (
	"context"
	"sort"

	"homefix/internal/modules/rating"
	"homefix/internal/types"
)

type Ratings struct{ s *Store }

func (r *Ratings) Create(ctx context.Context, in *rating.Rating) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.ratings {
			if existing.BookingID == in.BookingID && existing.CustomerID == in.CustomerID {
				return rating.ErrDuplicate
			}
		}
		st.ratings = append(st.ratings, *in)
		return nil
	})
}

func (r *Ratings) Exists(_ context.Context, bookingID, customerID types.ID) (bool, error) {
	var found bool
	r.s.read(func(st *state) {
		for _, existing := range st.ratings {
			if existing.BookingID == bookingID && existing.CustomerID == customerID {
				found = true
				return
			}
		}
	})
	return found, nil
}

// newest returns the technician's ratings newest first; ties keep the later insert first.
func (r *Ratings) newest(technicianID types.ID, limit int) []rating.Rating {
	type indexed struct {
		rating.Rating
		pos int
	}
	var rows []indexed
	r.s.read(func(st *state) {
		for i, existing := range st.ratings {
			if existing.TechnicianID == technicianID {
				rows = append(rows, indexed{Rating: existing, pos: i})
			}
		}
	})
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].pos > rows[j].pos
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]rating.Rating, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Rating)
	}
	return out
}

func (r *Ratings) ListByTechnician(_ context.Context, technicianID types.ID, limit int) ([]rating.Rating, error) {
	return r.newest(technicianID, limit), nil
}

func (r *Ratings) Stats(_ context.Context, technicianID types.ID, limit int) (int, int, error) {
	rows := r.newest(technicianID, limit)
	sum := 0
	for _, row := range rows {
		sum += row.Score
	}
	return sum, len(rows), nil
}
