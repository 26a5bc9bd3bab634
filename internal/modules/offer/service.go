// README: Offer collection manager; upserts offers, advances the booking on the first one, and handles selection.
package offer

import (
	"context"
	"fmt"
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

var ErrNotFound = fmt.Errorf("offer %w", types.ErrNotFound)

// Repository persists offers, unique on (booking, technician).
type Repository interface {
	// Upsert inserts or overwrites the technician's offer and reports whether it was new.
	// o.ID and o.CreatedAt are set from the stored row.
	Upsert(ctx context.Context, o *Offer) (bool, error)
	Get(ctx context.Context, bookingID, technicianID types.ID) (*Offer, error)
	// ListByBooking is ordered by creation time.
	ListByBooking(ctx context.Context, bookingID types.ID) ([]Offer, error)
	RespondedBookingIDs(ctx context.Context, technicianID types.ID) ([]types.ID, error)
}

type Bookings interface {
	Transact(ctx context.Context, id types.ID, fn func(ctx context.Context, b *booking.Booking, batch *notify.Batch) error) (*booking.Booking, error)
	Apply(ctx context.Context, b *booking.Booking, t booking.Transition) error
	Find(ctx context.Context, id types.ID) (*booking.Booking, error)
	ListOpen(ctx context.Context) ([]booking.Booking, error)
}

type Technicians interface {
	GetTechnician(ctx context.Context, id types.ID) (*catalog.Technician, error)
}

// RatingSource returns the average shown next to offers; fallback marks a placeholder value.
type RatingSource interface {
	RecentAverage(ctx context.Context, technicianID types.ID) (avg float64, count int, fallback bool, err error)
}

const (
	EventOfferNew      = "offer:new"
	EventOfferSelected = "offer:selected"
	// EventDirectResponse tells admins how a technician answered a direct booking.
	EventDirectResponse = "booking:technician_response"
)

type Service struct {
	repo        Repository
	bookings    Bookings
	technicians Technicians
	ratings     RatingSource
	log         logrus.FieldLogger
	currency    string
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.OrDiscard(l) }
}

// WithCurrency sets the fare currency for bookings that carry no price yet.
func WithCurrency(c string) Option {
	return func(s *Service) {
		if c != "" {
			s.currency = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, bookings Bookings, technicians Technicians, ratings RatingSource, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		bookings:    bookings,
		technicians: technicians,
		ratings:     ratings,
		log:         logging.Discard(),
		currency:    "NPR",
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Fare      int64
	ETA       string
	Status    ResponseStatus
}

type SelectCommand struct {
	BookingID    types.ID
	TechnicianID types.ID
	Actor        types.Actor
}

// Submit records the technician's response. Resubmitting overwrites the previous one.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Offer, error) {
	if !cmd.Actor.Is(types.RoleTechnician) {
		return nil, fmt.Errorf("%w: only technicians can respond to requests", types.ErrForbidden)
	}
	if cmd.Status == "" {
		cmd.Status = ResponseAccepted
	}
	if cmd.Status != ResponseAccepted && cmd.Status != ResponseRejected {
		return nil, fmt.Errorf("%w: unknown response status %q", types.ErrInvalidInput, cmd.Status)
	}
	if cmd.Fare < 0 || (cmd.Status == ResponseAccepted && cmd.Fare == 0) {
		return nil, fmt.Errorf("%w: proposed fare must be positive", types.ErrInvalidInput)
	}
	tech, err := s.technicians.GetTechnician(ctx, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}

	var (
		out     *Offer
		created bool
	)
	_, err = s.bookings.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *booking.Booking, batch *notify.Batch) error {
		if !b.Status.AcceptsOffers() {
			return fmt.Errorf("%w: booking is %s and does not take offers", types.ErrInvalidTransition, b.Status)
		}
		now := s.now()
		o := &Offer{
			ID:             types.NewID(),
			BookingID:      b.ID,
			TechnicianID:   tech.ID,
			ProposedFare:   types.Money{Amount: cmd.Fare, Currency: s.currencyFor(b)},
			ResponseStatus: cmd.Status,
			ETA:            strings.TrimSpace(cmd.ETA),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		isNew, err := s.repo.Upsert(ctx, o)
		if err != nil {
			return err
		}
		if b.Status == booking.StatusRequested {
			if err := s.bookings.Apply(ctx, b, booking.Transition{To: booking.StatusOffersSent, Actor: cmd.Actor}); err != nil {
				return err
			}
		}

		data := map[string]any{
			"offer_id":        o.ID,
			"technician_id":   tech.ID,
			"technician_name": tech.Name,
			"proposed_fare":   o.ProposedFare,
			"eta":             o.ETA,
			"response_status": o.ResponseStatus,
			"updated":         !isNew,
		}
		batch.Add(notify.Customer(b.CustomerID), EventOfferNew, b.ID, data)
		batch.Add(notify.ChannelAdmins, EventOfferNew, b.ID, data)
		out, created = o, isNew
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncOffer(created)
	s.log.WithFields(logrus.Fields{
		"booking_id":    out.BookingID,
		"technician_id": out.TechnicianID,
		"created":       created,
	}).Debug("offer recorded")
	return out, nil
}

// Respond answers a direct (pending) booking from the technician queue. The response is
// stored like an offer so the booking leaves the queue. Accepting assigns the technician and
// quotes the fare, or the booking price when no fare is given; the customer then answers the
// quote. Declining leaves the booking pending for other technicians and the admin.
func (s *Service) Respond(ctx context.Context, cmd SubmitCommand) (*booking.Booking, error) {
	if !cmd.Actor.Is(types.RoleTechnician) {
		return nil, fmt.Errorf("%w: only technicians can respond to requests", types.ErrForbidden)
	}
	if cmd.Status == "" {
		cmd.Status = ResponseAccepted
	}
	if cmd.Status != ResponseAccepted && cmd.Status != ResponseRejected {
		return nil, fmt.Errorf("%w: unknown response status %q", types.ErrInvalidInput, cmd.Status)
	}
	if cmd.Fare < 0 {
		return nil, fmt.Errorf("%w: proposed fare must be positive", types.ErrInvalidInput)
	}
	tech, err := s.technicians.GetTechnician(ctx, cmd.Actor.ID)
	if err != nil {
		return nil, err
	}

	return s.bookings.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *booking.Booking, batch *notify.Batch) error {
		if b.Status != booking.StatusPending {
			return fmt.Errorf("%w: booking is %s and does not take direct responses", types.ErrInvalidTransition, b.Status)
		}
		if b.TechnicianID != nil && *b.TechnicianID != tech.ID {
			return fmt.Errorf("%w: booking is reserved for another technician", types.ErrForbidden)
		}
		fare := types.Money{Amount: cmd.Fare, Currency: s.currencyFor(b)}
		if cmd.Fare == 0 && b.Price != nil {
			fare = *b.Price
		}
		if cmd.Status == ResponseAccepted && fare.Amount <= 0 {
			return fmt.Errorf("%w: proposed fare must be positive", types.ErrInvalidInput)
		}
		now := s.now()
		o := &Offer{
			ID:             types.NewID(),
			BookingID:      b.ID,
			TechnicianID:   tech.ID,
			ProposedFare:   fare,
			ResponseStatus: cmd.Status,
			ETA:            strings.TrimSpace(cmd.ETA),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.repo.Upsert(ctx, o); err != nil {
			return err
		}

		data := map[string]any{
			"technician_id":   tech.ID,
			"technician_name": tech.Name,
			"proposed_fare":   fare,
			"eta":             o.ETA,
			"response_status": o.ResponseStatus,
		}
		if cmd.Status == ResponseAccepted {
			err := s.bookings.Apply(ctx, b, booking.Transition{
				To:    booking.StatusQuoted,
				Actor: cmd.Actor,
				Mutate: func(n *booking.Booking) error {
					n.TechnicianID = types.IDPtr(tech.ID)
					n.ProposedPrice = fare.Ptr()
					return nil
				},
			})
			if err != nil {
				return err
			}
			batch.Add(notify.Customer(b.CustomerID), booking.EventQuoted, b.ID, map[string]any{
				"technician_id":  tech.ID,
				"proposed_price": fare,
			})
		}
		batch.Add(notify.ChannelAdmins, EventDirectResponse, b.ID, data)
		return nil
	})
}

// List returns the booking's offers with technician identity and rating, oldest first.
func (s *Service) List(ctx context.Context, bookingID types.ID, actor types.Actor) ([]View, error) {
	b, err := s.bookings.Find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Is(types.RoleCustomer) && b.OwnedBy(actor.ID)) {
		return nil, fmt.Errorf("%w: not your booking", types.ErrForbidden)
	}
	offers, err := s.repo.ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(offers))
	for _, o := range offers {
		tech, err := s.technicians.GetTechnician(ctx, o.TechnicianID)
		if err != nil {
			return nil, err
		}
		avg, count, fallback, err := s.ratings.RecentAverage(ctx, o.TechnicianID)
		if err != nil {
			return nil, err
		}
		out = append(out, View{
			Offer: o,
			Technician: TechnicianSummary{
				ID:             tech.ID,
				Name:           tech.Name,
				Email:          tech.Email,
				Phone:          tech.Phone,
				Skills:         tech.Skills,
				AverageRating:  avg,
				RatingCount:    count,
				RatingFallback: fallback,
			},
		})
	}
	return out, nil
}

// Select assigns the booking to the technician behind the chosen offer at the offered fare.
// Competing offers stay as they are.
func (s *Service) Select(ctx context.Context, cmd SelectCommand) (*booking.Booking, error) {
	if !cmd.Actor.Is(types.RoleCustomer) {
		return nil, fmt.Errorf("%w: only customers can select an offer", types.ErrForbidden)
	}
	if cmd.TechnicianID == "" {
		return nil, fmt.Errorf("%w: technician id is required", types.ErrInvalidInput)
	}
	return s.bookings.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *booking.Booking, batch *notify.Batch) error {
		if !b.OwnedBy(cmd.Actor.ID) {
			return fmt.Errorf("%w: not your booking", types.ErrForbidden)
		}
		o, err := s.repo.Get(ctx, b.ID, cmd.TechnicianID)
		if err != nil {
			return err
		}
		if o.ResponseStatus != ResponseAccepted {
			return fmt.Errorf("%w: technician declined this request", types.ErrInvalidTransition)
		}
		err = s.bookings.Apply(ctx, b, booking.Transition{
			To:    booking.StatusCustomerSelected,
			Actor: cmd.Actor,
			Mutate: func(n *booking.Booking) error {
				n.TechnicianID = types.IDPtr(o.TechnicianID)
				n.Price = o.ProposedFare.Ptr()
				return nil
			},
		})
		if err != nil {
			return err
		}

		data := map[string]any{
			"technician_id": o.TechnicianID,
			"price":         o.ProposedFare,
			"customer_id":   b.CustomerID,
		}
		batch.Add(notify.ChannelAdmins, EventOfferSelected, b.ID, data)
		batch.Add(notify.Technician(o.TechnicianID), EventOfferSelected, b.ID, data)
		return nil
	})
}

// PendingForTechnician lists open bookings the technician has not responded to yet.
// Direct bookings reserved for another technician are left out.
func (s *Service) PendingForTechnician(ctx context.Context, technicianID types.ID, actor types.Actor) ([]booking.Booking, error) {
	if !actor.IsAdmin() && !(actor.Is(types.RoleTechnician) && actor.ID == technicianID) {
		return nil, fmt.Errorf("%w: cannot list another technician's requests", types.ErrForbidden)
	}
	if _, err := s.technicians.GetTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	open, err := s.bookings.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	responded, err := s.repo.RespondedBookingIDs(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	seen := make(map[types.ID]struct{}, len(responded))
	for _, id := range responded {
		seen[id] = struct{}{}
	}

	out := make([]booking.Booking, 0, len(open))
	for _, b := range open {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		if b.TechnicianID != nil && *b.TechnicianID != technicianID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Service) currencyFor(b *booking.Booking) string {
	if b.Price != nil && b.Price.Currency != "" {
		return b.Price.Currency
	}
	return s.currency
}
