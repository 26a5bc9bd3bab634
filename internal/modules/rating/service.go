// README: Rating gate; a customer may rate a completed booking of theirs exactly once.
package rating

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/metrics"
	"homefix/internal/modules/booking"
	"homefix/internal/modules/catalog"
	"homefix/internal/notify"
	"homefix/internal/types"
)

var ErrDuplicate = fmt.Errorf("rating %w: booking already rated", types.ErrConflict)

// Repository persists ratings. Create returns ErrDuplicate when (booking, customer) exists.
type Repository interface {
	Create(ctx context.Context, r *Rating) error
	Exists(ctx context.Context, bookingID, customerID types.ID) (bool, error)
	// ListByTechnician returns the newest ratings first; limit <= 0 means all.
	ListByTechnician(ctx context.Context, technicianID types.ID, limit int) ([]Rating, error)
	// Stats averages the newest limit ratings; limit <= 0 means all.
	Stats(ctx context.Context, technicianID types.ID, limit int) (sum int, count int, err error)
}

type Bookings interface {
	Find(ctx context.Context, id types.ID) (*booking.Booking, error)
}

type Technicians interface {
	GetTechnician(ctx context.Context, id types.ID) (*catalog.Technician, error)
}

const EventRatingNew = "rating:new"

// DefaultAverage is shown for technicians nobody has rated yet.
const DefaultAverage = 4.5

type Config struct {
	DefaultAverage float64
	// RecentWindow is how many recent ratings feed the average shown with offers.
	RecentWindow int
	// ListLimit caps ListForTechnician.
	ListLimit int
}

func DefaultConfig() Config {
	return Config{DefaultAverage: DefaultAverage, RecentWindow: 10, ListLimit: 20}
}

type Service struct {
	repo        Repository
	bookings    Bookings
	technicians Technicians
	bus         notify.Publisher
	cfg         Config
	log         logrus.FieldLogger
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.OrDiscard(l) }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, bookings Bookings, technicians Technicians, bus notify.Publisher, opts ...Option) *Service {
	if bus == nil {
		bus = notify.Discard
	}
	s := &Service{
		repo:        repo,
		bookings:    bookings,
		technicians: technicians,
		bus:         bus,
		cfg:         DefaultConfig(),
		log:         logging.Discard(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitCommand struct {
	BookingID    types.ID
	TechnicianID types.ID
	Actor        types.Actor
	Score        int
	Review       string
}

func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Rating, error) {
	if !cmd.Actor.Is(types.RoleCustomer) {
		return nil, fmt.Errorf("%w: only customers can rate", types.ErrForbidden)
	}
	if cmd.Score < MinScore || cmd.Score > MaxScore {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", types.ErrInvalidInput, MinScore, MaxScore)
	}
	if cmd.BookingID == "" || cmd.TechnicianID == "" {
		return nil, fmt.Errorf("%w: booking id and technician id are required", types.ErrInvalidInput)
	}
	b, err := s.bookings.Find(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(cmd.Actor.ID) {
		return nil, fmt.Errorf("%w: not your booking", types.ErrForbidden)
	}
	if !b.AssignedTo(cmd.TechnicianID) {
		return nil, fmt.Errorf("%w: technician does not match booking", types.ErrInvalidInput)
	}
	if b.Status != booking.StatusCompleted {
		return nil, fmt.Errorf("%w: only completed bookings can be rated (booking is %s)", types.ErrInvalidTransition, b.Status)
	}
	exists, err := s.repo.Exists(ctx, b.ID, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicate
	}

	r := &Rating{
		ID:           types.NewID(),
		BookingID:    b.ID,
		TechnicianID: cmd.TechnicianID,
		CustomerID:   cmd.Actor.ID,
		Score:        cmd.Score,
		Review:       strings.TrimSpace(cmd.Review),
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	metrics.IncRating()
	s.log.WithFields(logrus.Fields{
		"booking_id":    r.BookingID,
		"technician_id": r.TechnicianID,
		"score":         r.Score,
	}).Debug("rating recorded")

	s.bus.Publish(ctx, notify.Technician(r.TechnicianID), notify.Event{
		Type:      EventRatingNew,
		BookingID: r.BookingID,
		Data: map[string]any{
			"rating":      r.Score,
			"review":      r.Review,
			"customer_id": r.CustomerID,
		},
		At: r.CreatedAt,
	})
	return r, nil
}

// ListForTechnician returns the newest ratings and their average.
func (s *Service) ListForTechnician(ctx context.Context, technicianID types.ID) (*Summary, error) {
	if _, err := s.technicians.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	ratings, err := s.repo.ListByTechnician(ctx, technicianID, s.cfg.ListLimit)
	if err != nil {
		return nil, err
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	if ratings == nil {
		ratings = []Rating{}
	}
	return &Summary{
		Ratings: ratings,
		Average: s.average(technicianID, sum, len(ratings)),
	}, nil
}

// Average aggregates every rating the technician has received.
func (s *Service) Average(ctx context.Context, technicianID types.ID) (*Average, error) {
	if _, err := s.technicians.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	sum, count, err := s.repo.Stats(ctx, technicianID, 0)
	if err != nil {
		return nil, err
	}
	avg := s.average(technicianID, sum, count)
	return &avg, nil
}

// RecentAverage averages the most recent ratings, as shown next to offers.
func (s *Service) RecentAverage(ctx context.Context, technicianID types.ID) (float64, int, bool, error) {
	sum, count, err := s.repo.Stats(ctx, technicianID, s.cfg.RecentWindow)
	if err != nil {
		return 0, 0, false, err
	}
	avg := s.average(technicianID, sum, count)
	return avg.Value, avg.Count, avg.Fallback, nil
}

func (s *Service) average(technicianID types.ID, sum, count int) Average {
	if count == 0 {
		return Average{TechnicianID: technicianID, Value: s.cfg.DefaultAverage, Fallback: true}
	}
	return Average{
		TechnicianID: technicianID,
		Value:        math.Round(float64(sum)/float64(count)*10) / 10,
		Count:        count,
	}
}
