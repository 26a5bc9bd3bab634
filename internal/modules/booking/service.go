// README: Booking lifecycle engine; validates and persists every status change and queues notifications.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/modules/catalog"
	"homefix/internal/notify"
	"homefix/internal/types"
)

// Repository persists bookings. Update is a compare-and-swap on (status, status_version)
// and reports false when the row no longer matches.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	GetForUpdate(ctx context.Context, id types.ID) (*Booking, error)
	Update(ctx context.Context, b *Booking, from Status, version int) (bool, error)
	List(ctx context.Context, f Filter) ([]Booking, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, bookingID types.ID) ([]Event, error)
}

type Catalog interface {
	GetService(ctx context.Context, id types.ID) (*catalog.Service, error)
	GetTechnician(ctx context.Context, id types.ID) (*catalog.Technician, error)
	ListTechnicians(ctx context.Context) ([]catalog.Technician, error)
}

// TxRunner runs fn in one storage transaction; nested calls join the outer one.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notification types emitted by the engine.
const (
	EventBookingNew     = "booking:new"
	EventBookingRequest = "booking:request"
	EventAdminDecision  = "booking:admin_decision"
	EventQuoted         = "booking:quoted"
	EventQuoteResponse  = "booking:quote_response"
	EventConfirmed      = "booking:confirmed"
	EventCompleted      = "booking:completed"
	EventCancelled      = "booking:cancelled"
)

const (
	defaultMaxRetries = 3
	defaultCurrency   = "NPR"
)

type Service struct {
	repo       Repository
	catalog    Catalog
	tx         TxRunner
	bus        notify.Publisher
	selector   TechnicianSelector
	log        logrus.FieldLogger
	currency   string
	maxRetries int
	now        func() time.Time
}

type Option func(*Service)

func WithSelector(sel TechnicianSelector) Option {
	return func(s *Service) { s.selector = sel }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = logging.OrDiscard(l) }
}

// WithCurrency sets the currency for quotes on bookings that carry no price yet.
func WithCurrency(c string) Option {
	return func(s *Service) {
		if c != "" {
			s.currency = c
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, cat Catalog, tx TxRunner, bus notify.Publisher, opts ...Option) *Service {
	if bus == nil {
		bus = notify.Discard
	}
	s := &Service{
		repo:       repo,
		catalog:    cat,
		tx:         tx,
		bus:        bus,
		selector:   SkillMatch{},
		log:        logging.Discard(),
		currency:   defaultCurrency,
		maxRetries: defaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCommand struct {
	Actor     types.Actor
	ServiceID types.ID
	Date      string
	Time      string
	Address   string
	Note      string
	// TechnicianID optionally books a specific technician up front.
	TechnicianID *types.ID
}

type BroadcastCommand struct {
	Actor     types.Actor
	ServiceID types.ID
	Date      string
	Time      string
	Location  string
	Note      string
}

type Decision string

const (
	DecisionGrant Decision = "grant"
	DecisionDeny  Decision = "deny"
)

func ParseDecision(v string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "grant", "approve", "approved", "accept":
		return DecisionGrant, nil
	case "deny", "reject", "rejected", "decline":
		return DecisionDeny, nil
	}
	return "", invalidInput("decision must be grant or deny, got %q", v)
}

type DecisionCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Action    Decision
}

type QuoteCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Amount    int64
}

// ParseQuoteResponse returns true for accept and false for reject.
func ParseQuoteResponse(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "accept", "accepted":
		return true, nil
	case "reject", "rejected", "decline", "declined":
		return false, nil
	}
	return false, invalidInput("response must be accept or reject, got %q", v)
}

type QuoteResponseCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Accept    bool
}

type ConfirmCommand struct {
	BookingID    types.ID
	Actor        types.Actor
	TechnicianID *types.ID
	// Status is optional; "confirmed" and the approval spellings all mean approved.
	Status string
}

type CompleteCommand struct {
	BookingID types.ID
	Actor     types.Actor
}

type CancelCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if !cmd.Actor.Is(types.RoleCustomer) {
		return nil, forbidden("only customers can book a service")
	}
	if cmd.ServiceID == "" || blank(cmd.Date) || blank(cmd.Time) || blank(cmd.Address) {
		return nil, invalidInput("service, date, time and address are required")
	}
	at, err := parseSchedule(cmd.Date, cmd.Time)
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.GetService(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}
	var techID *types.ID
	if cmd.TechnicianID != nil {
		tech, err := s.catalog.GetTechnician(ctx, *cmd.TechnicianID)
		if err != nil {
			return nil, err
		}
		techID = types.IDPtr(tech.ID)
	}

	now := s.now()
	b := &Booking{
		ID:           types.NewID(),
		CustomerID:   cmd.Actor.ID,
		TechnicianID: techID,
		ServiceID:    svc.ID,
		ScheduledAt:  at,
		Address:      strings.TrimSpace(cmd.Address),
		ProblemNote:  strings.TrimSpace(cmd.Note),
		Price:        svc.BasePrice.Ptr(),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.insert(ctx, b, cmd.Actor); err != nil {
		return nil, err
	}

	batch := notify.NewBatch(s.now)
	batch.Add(notify.ChannelTechnicians, EventBookingNew, b.ID, map[string]any{
		"service":      svc.Name,
		"category":     svc.Category,
		"scheduled_at": b.ScheduledAt,
		"address":      b.Address,
		"price":        b.Price,
	})
	batch.Flush(ctx, s.bus)
	return b, nil
}

func (s *Service) Broadcast(ctx context.Context, cmd BroadcastCommand) (*Booking, error) {
	if !cmd.Actor.Is(types.RoleCustomer) {
		return nil, forbidden("only customers can request offers")
	}
	if cmd.ServiceID == "" || blank(cmd.Date) || blank(cmd.Time) || blank(cmd.Location) {
		return nil, invalidInput("service, date, time and location are required")
	}
	at, err := parseSchedule(cmd.Date, cmd.Time)
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.GetService(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &Booking{
		ID:          types.NewID(),
		CustomerID:  cmd.Actor.ID,
		ServiceID:   svc.ID,
		ScheduledAt: at,
		Address:     strings.TrimSpace(cmd.Location),
		ProblemNote: strings.TrimSpace(cmd.Note),
		Status:      StatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.insert(ctx, b, cmd.Actor); err != nil {
		return nil, err
	}

	batch := notify.NewBatch(s.now)
	batch.Add(notify.ChannelTechnicians, EventBookingRequest, b.ID, map[string]any{
		"service":      svc.Name,
		"category":     svc.Category,
		"scheduled_at": b.ScheduledAt,
		"location":     b.Address,
		"problem_note": b.ProblemNote,
		"customer_id":  b.CustomerID,
	})
	batch.Flush(ctx, s.bus)
	return b, nil
}

func (s *Service) AdminDecision(ctx context.Context, cmd DecisionCommand) (*Booking, error) {
	if !cmd.Actor.IsAdmin() {
		return nil, forbidden("only admins can decide on bookings")
	}
	if cmd.Action != DecisionGrant && cmd.Action != DecisionDeny {
		return nil, invalidInput("unknown decision %q", cmd.Action)
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		to := StatusRejected
		if cmd.Action == DecisionGrant {
			to = StatusApproved
		}
		if b.Status != StatusPending && b.Status != StatusCustomerSelected {
			return invalidTransition(b.Status, to)
		}
		if !CanTransition(b.Status, to) {
			return invalidTransition(b.Status, to)
		}
		var assign *types.ID
		if to == StatusApproved && b.TechnicianID == nil {
			id, err := s.autoAssign(ctx, b)
			if err != nil {
				return err
			}
			assign = id
		}
		err := s.Apply(ctx, b, Transition{To: to, Actor: cmd.Actor, Mutate: func(n *Booking) error {
			if assign != nil {
				n.TechnicianID = assign
			}
			return nil
		}})
		if err != nil {
			return err
		}

		data := map[string]any{"decision": string(cmd.Action), "status": b.Status}
		if b.TechnicianID != nil {
			batch.Add(notify.Technician(*b.TechnicianID), EventAdminDecision, b.ID, data)
		}
		batch.Add(notify.Customer(b.CustomerID), EventAdminDecision, b.ID, data)
		return nil
	})
}

func (s *Service) autoAssign(ctx context.Context, b *Booking) (*types.ID, error) {
	svc, err := s.catalog.GetService(ctx, b.ServiceID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.catalog.ListTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	pick := s.selector.SelectTechnician(*svc, candidates)
	if pick == nil {
		s.log.WithField("booking_id", b.ID).Info("auto-assign: no technicians available")
		return nil, nil
	}
	return types.IDPtr(pick.ID), nil
}

func (s *Service) Quote(ctx context.Context, cmd QuoteCommand) (*Booking, error) {
	if !cmd.Actor.Is(types.RoleTechnician) {
		return nil, forbidden("only technicians can quote")
	}
	if cmd.Amount <= 0 {
		return nil, invalidInput("proposed price must be positive")
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		if !b.AssignedTo(cmd.Actor.ID) {
			return forbidden("booking is not assigned to this technician")
		}
		price := types.Money{Amount: cmd.Amount, Currency: s.currencyFor(b)}
		err := s.Apply(ctx, b, Transition{To: StatusQuoted, Actor: cmd.Actor, Mutate: func(n *Booking) error {
			n.ProposedPrice = &price
			return nil
		}})
		if err != nil {
			return err
		}
		batch.Add(notify.Customer(b.CustomerID), EventQuoted, b.ID, map[string]any{
			"technician_id":  cmd.Actor.ID,
			"proposed_price": price,
		})
		return nil
	})
}

func (s *Service) RespondToQuote(ctx context.Context, cmd QuoteResponseCommand) (*Booking, error) {
	if !cmd.Actor.Is(types.RoleCustomer) {
		return nil, forbidden("only customers can respond to quotes")
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		if !b.OwnedBy(cmd.Actor.ID) {
			return forbidden("not your booking")
		}
		to := StatusDeclined
		if cmd.Accept {
			to = StatusConfirmed
		}
		if err := s.Apply(ctx, b, Transition{To: to, Actor: cmd.Actor}); err != nil {
			return err
		}
		batch.Add(notify.Technician(*b.TechnicianID), EventQuoteResponse, b.ID, map[string]any{
			"accepted":       cmd.Accept,
			"status":         b.Status,
			"proposed_price": b.ProposedPrice,
		})
		return nil
	})
}

// Confirm approves a booking on the admin's word, optionally naming the technician.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Booking, error) {
	if !cmd.Actor.IsAdmin() {
		return nil, forbidden("only admins can confirm bookings")
	}
	if !confirmAlias(cmd.Status) {
		return nil, invalidInput("confirm only moves bookings to approved, got %q", cmd.Status)
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		if !CanTransition(b.Status, StatusApproved) {
			return invalidTransition(b.Status, StatusApproved)
		}
		tech := b.TechnicianID
		if cmd.TechnicianID != nil {
			if tech != nil && *tech != *cmd.TechnicianID {
				return fmt.Errorf("%w: booking is assigned to another technician", types.ErrConflict)
			}
			t, err := s.catalog.GetTechnician(ctx, *cmd.TechnicianID)
			if err != nil {
				return err
			}
			tech = types.IDPtr(t.ID)
		}
		if tech == nil {
			return invalidInput("technician id is required to confirm an unassigned booking")
		}
		err := s.Apply(ctx, b, Transition{To: StatusApproved, Actor: cmd.Actor, Mutate: func(n *Booking) error {
			n.TechnicianID = tech
			return nil
		}})
		if err != nil {
			return err
		}
		data := map[string]any{"status": b.Status}
		batch.Add(notify.Technician(*b.TechnicianID), EventConfirmed, b.ID, data)
		batch.Add(notify.Customer(b.CustomerID), EventConfirmed, b.ID, data)
		return nil
	})
}

// Complete records that the service was delivered. It enables rating.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	if !cmd.Actor.IsAdmin() && !cmd.Actor.Is(types.RoleTechnician) {
		return nil, forbidden("only the assigned technician or an admin can complete a booking")
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		if !cmd.Actor.IsAdmin() && !b.AssignedTo(cmd.Actor.ID) {
			return forbidden("booking is not assigned to this technician")
		}
		if b.TechnicianID == nil {
			return invalidTransition(b.Status, StatusCompleted)
		}
		if err := s.Apply(ctx, b, Transition{To: StatusCompleted, Actor: cmd.Actor}); err != nil {
			return err
		}
		batch.Add(notify.Customer(b.CustomerID), EventCompleted, b.ID, map[string]any{
			"technician_id": *b.TechnicianID,
		})
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	if !cmd.Actor.IsAdmin() && !cmd.Actor.Is(types.RoleCustomer) {
		return nil, forbidden("only the customer or an admin can cancel a booking")
	}
	return s.Transact(ctx, cmd.BookingID, func(ctx context.Context, b *Booking, batch *notify.Batch) error {
		if !cmd.Actor.IsAdmin() && !b.OwnedBy(cmd.Actor.ID) {
			return forbidden("not your booking")
		}
		reason := strings.TrimSpace(cmd.Reason)
		err := s.Apply(ctx, b, Transition{To: StatusCancelled, Actor: cmd.Actor, Mutate: func(n *Booking) error {
			if reason != "" {
				n.CancelReason = &reason
			}
			return nil
		}})
		if err != nil {
			return err
		}
		data := map[string]any{"reason": reason, "cancelled_by": string(cmd.Actor.Role)}
		if b.TechnicianID != nil {
			batch.Add(notify.Technician(*b.TechnicianID), EventCancelled, b.ID, data)
		}
		if cmd.Actor.IsAdmin() {
			batch.Add(notify.Customer(b.CustomerID), EventCancelled, b.ID, data)
		} else {
			batch.Add(notify.ChannelAdmins, EventCancelled, b.ID, data)
		}
		return nil
	})
}

// Get returns the booking if actor may see it.
func (s *Service) Get(ctx context.Context, id types.ID, actor types.Actor) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(b, actor) {
		return nil, forbidden("booking is not visible to this user")
	}
	return b, nil
}

// Find returns the booking without any visibility check.
func (s *Service) Find(ctx context.Context, id types.ID) (*Booking, error) {
	return s.repo.Get(ctx, id)
}

// Visible: admins see everything, customers their own bookings, technicians their
// assignments and bookings still open for pickup.
func Visible(b *Booking, actor types.Actor) bool {
	switch actor.Role {
	case types.RoleAdmin:
		return true
	case types.RoleCustomer:
		return b.OwnedBy(actor.ID)
	case types.RoleTechnician:
		return b.AssignedTo(actor.ID) || b.Status.Open()
	}
	return false
}

func (s *Service) Events(ctx context.Context, id types.ID, actor types.Actor) ([]Event, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]Booking, error) {
	return s.repo.List(ctx, Filter{})
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID) ([]Booking, error) {
	return s.repo.List(ctx, Filter{CustomerID: &customerID})
}

func (s *Service) ListByTechnician(ctx context.Context, technicianID types.ID) ([]Booking, error) {
	return s.repo.List(ctx, Filter{TechnicianID: &technicianID})
}

// ListPending returns direct bookings awaiting an admin decision.
func (s *Service) ListPending(ctx context.Context) ([]Booking, error) {
	return s.repo.List(ctx, Filter{Statuses: []Status{StatusPending}})
}

// ListOpen returns bookings a technician could still pick up.
func (s *Service) ListOpen(ctx context.Context) ([]Booking, error) {
	return s.repo.List(ctx, Filter{Statuses: []Status{StatusPending, StatusRequested, StatusOffersSent}})
}

func (s *Service) currencyFor(b *Booking) string {
	if b.Price != nil && b.Price.Currency != "" {
		return b.Price.Currency
	}
	return s.currency
}

var timeLayouts = []string{"15:04", "15:04:05"}

// parseSchedule combines a YYYY-MM-DD date and an HH:MM[:SS] time in UTC.
func parseSchedule(date, clock string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, invalidInput("date must be YYYY-MM-DD, got %q", date)
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(clock))
		if err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, invalidInput("time must be HH:MM, got %q", clock)
}

// confirmAlias accepts an empty status, "confirmed", or any spelling of approved.
func confirmAlias(v string) bool {
	if blank(v) || strings.EqualFold(strings.TrimSpace(v), string(StatusConfirmed)) {
		return true
	}
	st, err := ParseStatus(v)
	return err == nil && st == StatusApproved
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
