// README: Booking aggregate, the closed status set and the allowed transitions.
package booking

import (
	"fmt"
	"strings"
	"time"

	"homefix/internal/types"
)

type Status string

const (
	StatusNone             Status = "none"
	StatusPending          Status = "pending"
	StatusRequested        Status = "requested"
	StatusOffersSent       Status = "offers_sent"
	StatusQuoted           Status = "quoted"
	StatusCustomerSelected Status = "customer_selected"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusDeclined         Status = "declined"
	StatusConfirmed        Status = "confirmed"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

// Statuses is every value a stored booking may hold.
var Statuses = []Status{
	StatusPending,
	StatusRequested,
	StatusOffersSent,
	StatusQuoted,
	StatusCustomerSelected,
	StatusApproved,
	StatusRejected,
	StatusDeclined,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
}

// synonyms maps spellings found in older clients and data onto canonical values.
var synonyms = map[string]Status{
	"Pending":             StatusPending,
	"Approved":            StatusApproved,
	"accepted":            StatusApproved,
	"admin_approved":      StatusApproved,
	"technician_assigned": StatusApproved,
	"Rejected":            StatusRejected,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus returns the canonical status for v, accepting known synonyms.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if s := Status(v); s.Valid() {
		return s, nil
	}
	if s, ok := synonyms[v]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", types.ErrInvalidInput, v)
}

// AcceptsOffers reports whether technicians may still respond to the booking.
func (s Status) AcceptsOffers() bool {
	return s == StatusRequested || s == StatusOffersSent
}

// Open reports whether the booking still waits for a technician to pick it up.
func (s Status) Open() bool {
	return s == StatusPending || s.AcceptsOffers()
}

func (s Status) Terminal() bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

type Booking struct {
	ID            types.ID     `json:"id"`
	CustomerID    types.ID     `json:"customer_id"`
	TechnicianID  *types.ID    `json:"technician_id"`
	ServiceID     types.ID     `json:"service_id"`
	ScheduledAt   time.Time    `json:"scheduled_at"`
	Address       string       `json:"address"`
	ProblemNote   string       `json:"problem_note,omitempty"`
	Price         *types.Money `json:"price"`
	ProposedPrice *types.Money `json:"proposed_price"`
	Status        Status       `json:"status"`
	StatusVersion int          `json:"status_version"`
	CancelReason  *string      `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CancelledAt   *time.Time   `json:"cancelled_at,omitempty"`
}

func (b *Booking) AssignedTo(id types.ID) bool {
	return b.TechnicianID != nil && *b.TechnicianID == id
}

func (b *Booking) OwnedBy(id types.ID) bool {
	return b.CustomerID == id
}

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.TechnicianID != nil {
		v := *b.TechnicianID
		c.TechnicianID = &v
	}
	if b.Price != nil {
		v := *b.Price
		c.Price = &v
	}
	if b.ProposedPrice != nil {
		v := *b.ProposedPrice
		c.ProposedPrice = &v
	}
	if b.CancelReason != nil {
		v := *b.CancelReason
		c.CancelReason = &v
	}
	if b.CompletedAt != nil {
		v := *b.CompletedAt
		c.CompletedAt = &v
	}
	if b.CancelledAt != nil {
		v := *b.CancelledAt
		c.CancelledAt = &v
	}
	return &c
}

// checkInvariants rejects field combinations no transition may persist.
func (b *Booking) checkInvariants() error {
	if !b.Status.Valid() {
		return fmt.Errorf("booking %s: status %q outside the closed set", b.ID, b.Status)
	}
	switch b.Status {
	case StatusRequested, StatusOffersSent:
		if b.TechnicianID != nil {
			return fmt.Errorf("booking %s: technician set while %s", b.ID, b.Status)
		}
	case StatusQuoted, StatusCustomerSelected, StatusConfirmed, StatusCompleted:
		if b.TechnicianID == nil {
			return fmt.Errorf("booking %s: %s without technician", b.ID, b.Status)
		}
	}
	if b.ProposedPrice != nil && b.TechnicianID == nil {
		return fmt.Errorf("booking %s: proposed price without technician", b.ID)
	}
	return nil
}

type Event struct {
	ID         int64     `json:"id"`
	BookingID  types.ID  `json:"booking_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ActorRole  string    `json:"actor_role"`
	ActorID    *types.ID `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AllowedTransitions represents the booking state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:          {StatusApproved, StatusRejected, StatusQuoted, StatusCancelled},
	StatusRequested:        {StatusOffersSent, StatusCancelled},
	StatusOffersSent:       {StatusCustomerSelected, StatusCancelled},
	StatusQuoted:           {StatusConfirmed, StatusDeclined, StatusApproved, StatusCancelled},
	StatusCustomerSelected: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:         {StatusCompleted},
	StatusConfirmed:        {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Filter selects bookings for list queries. Zero fields do not filter.
type Filter struct {
	CustomerID    *types.ID
	TechnicianID  *types.ID
	Statuses      []Status
	CreatedBefore *time.Time
}
