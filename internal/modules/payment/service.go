package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/modules/booking"
	"homefix/internal/types"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	ListByBooking(ctx context.Context, bookingID types.ID) ([]Payment, error)
}

type Bookings interface {
	Find(ctx context.Context, id types.ID) (*booking.Booking, error)
}

type Service struct {
	repo     Repository
	bookings Bookings
	currency string
	log      logrus.FieldLogger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.OrDiscard(l) }
}

func WithCurrency(c string) Option {
	return func(s *Service) {
		if c != "" {
			s.currency = c
		}
	}
}

func NewService(repo Repository, bookings Bookings, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		bookings: bookings,
		currency: "NPR",
		log:      logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RecordCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Amount    int64
	Method    string
	Status    string
}

func (s *Service) Record(ctx context.Context, cmd RecordCommand) (*Payment, error) {
	if cmd.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidInput)
	}
	method := strings.TrimSpace(cmd.Method)
	if method == "" {
		return nil, fmt.Errorf("%w: payment method is required", types.ErrInvalidInput)
	}
	status, err := ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	b, err := s.authorized(ctx, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusCompleted {
		return nil, fmt.Errorf("%w: payments are recorded after completion (booking is %s)", types.ErrInvalidTransition, b.Status)
	}

	currency := s.currency
	if b.Price != nil && b.Price.Currency != "" {
		currency = b.Price.Currency
	}
	p := &Payment{
		ID:         types.NewID(),
		BookingID:  b.ID,
		Amount:     types.Money{Amount: cmd.Amount, Currency: currency},
		Method:     method,
		Status:     status,
		RecordedBy: cmd.Actor.ID,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"booking_id": p.BookingID,
		"amount":     p.Amount.String(),
		"status":     p.Status,
	}).Info("payment recorded")
	return p, nil
}

func (s *Service) List(ctx context.Context, bookingID types.ID, actor types.Actor) ([]Payment, error) {
	if _, err := s.authorized(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	out, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Payment{}
	}
	return out, nil
}

func (s *Service) authorized(ctx context.Context, bookingID types.ID, actor types.Actor) (*booking.Booking, error) {
	b, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Is(types.RoleCustomer) && b.OwnedBy(actor.ID)) {
		return nil, fmt.Errorf("%w: only the booking's customer or an admin", types.ErrForbidden)
	}
	return b, nil
}
