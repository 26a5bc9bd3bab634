// README: The single transition path: lock, validate, compare-and-swap, audit, publish after commit.
package booking

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"homefix/internal/metrics"
	"homefix/internal/notify"
	"homefix/internal/types"
)

// Transition is one status change requested of Apply. Mutate may change other fields.
type Transition struct {
	To     Status
	Actor  types.Actor
	Mutate func(b *Booking) error
}

// Apply validates and persists t against b, which must have been loaded in the current
// transaction. On success b holds the stored state.
func (s *Service) Apply(ctx context.Context, b *Booking, t Transition) error {
	from := b.Status
	if !CanTransition(from, t.To) {
		return invalidTransition(from, t.To)
	}
	next := b.Clone()
	next.Status = t.To
	now := s.now()
	next.UpdatedAt = now
	switch t.To {
	case StatusCompleted:
		next.CompletedAt = &now
	case StatusCancelled:
		next.CancelledAt = &now
	}
	if t.Mutate != nil {
		if err := t.Mutate(next); err != nil {
			return err
		}
	}
	if err := next.checkInvariants(); err != nil {
		return err
	}

	ok, err := s.repo.Update(ctx, next, from, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	next.StatusVersion = b.StatusVersion + 1
	if err := s.repo.AppendEvent(ctx, s.event(b.ID, from, t.To, t.Actor)); err != nil {
		return err
	}
	*b = *next
	return nil
}

// Transact loads the booking under lock and runs fn in one transaction. Notifications
// queued on batch are published after commit. A version conflict reruns fn on fresh state.
func (s *Service) Transact(ctx context.Context, id types.ID, fn func(ctx context.Context, b *Booking, batch *notify.Batch) error) (*Booking, error) {
	if id == "" {
		return nil, invalidInput("booking id is required")
	}
	for attempt := 1; ; attempt++ {
		var (
			out   *Booking
			from  Status
			batch = notify.NewBatch(s.now)
		)
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			b, err := s.repo.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			from = b.Status
			if err := fn(ctx, b, batch); err != nil {
				return err
			}
			out = b
			return nil
		})
		if errors.Is(err, ErrConflict) && attempt < s.maxRetries {
			s.log.WithFields(logrus.Fields{"booking_id": id, "attempt": attempt}).Debug("booking version conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.committed(out, from)
		batch.Flush(ctx, s.bus)
		return out, nil
	}
}

func (s *Service) insert(ctx context.Context, b *Booking, actor types.Actor) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := b.checkInvariants(); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, s.event(b.ID, StatusNone, b.Status, actor))
	})
	if err != nil {
		return err
	}
	s.committed(b, StatusNone)
	return nil
}

func (s *Service) committed(b *Booking, from Status) {
	if b.Status == from {
		return
	}
	metrics.IncTransition(string(from), string(b.Status))
	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"from":       from,
		"to":         b.Status,
		"version":    b.StatusVersion,
	}).Debug("booking transition")
}

func (s *Service) event(id types.ID, from, to Status, actor types.Actor) *Event {
	role := string(actor.Role)
	if role == "" {
		role = string(types.RoleSystem)
	}
	return &Event{
		BookingID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorRole:  role,
		ActorID:    types.IDPtr(actor.ID),
		CreatedAt:  s.now(),
	}
}
