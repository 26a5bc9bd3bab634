// README: Technician offers (responses) against broadcast booking requests.
package offer

import (
	"fmt"
	"strings"
	"time"

	"homefix/internal/types"
)

type ResponseStatus string

const (
	ResponseAccepted ResponseStatus = "accepted"
	ResponseRejected ResponseStatus = "rejected"
)

// ParseResponseStatus defaults to accepted when v is empty.
func ParseResponseStatus(v string) (ResponseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "accepted", "accept":
		return ResponseAccepted, nil
	case "rejected", "reject", "declined", "decline":
		return ResponseRejected, nil
	}
	return "", fmt.Errorf("%w: unknown response status %q", types.ErrInvalidInput, v)
}

type Offer struct {
	ID             types.ID       `json:"id"`
	BookingID      types.ID       `json:"booking_id"`
	TechnicianID   types.ID       `json:"technician_id"`
	ProposedFare   types.Money    `json:"proposed_fare"`
	ResponseStatus ResponseStatus `json:"response_status"`
	ETA            string         `json:"eta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TechnicianSummary is the technician identity shown next to an offer.
// AverageRating falls back to a display default when RatingCount is zero.
type TechnicianSummary struct {
	ID             types.ID `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Skills         string   `json:"skills"`
	AverageRating  float64  `json:"average_rating"`
	RatingCount    int      `json:"rating_count"`
	RatingFallback bool     `json:"rating_fallback"`
}

type View struct {
	Offer
	Technician TechnicianSummary `json:"technician"`
}
