// README: Post-completion ratings and technician rating aggregates.
package rating

import (
	"time"

	"homefix/internal/types"
)

type Rating struct {
	ID           types.ID  `json:"id"`
	BookingID    types.ID  `json:"booking_id"`
	TechnicianID types.ID  `json:"technician_id"`
	CustomerID   types.ID  `json:"customer_id"`
	Score        int       `json:"score"`
	Review       string    `json:"review,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	MinScore = 1
	MaxScore = 5
)

// Average is an aggregate over a technician's ratings. When Count is zero, Value is a
// display placeholder and Fallback is true; it carries no information about the technician.
type Average struct {
	TechnicianID types.ID `json:"technician_id"`
	Value        float64  `json:"average_rating"`
	Count        int      `json:"total_ratings"`
	Fallback     bool     `json:"fallback"`
}

type Summary struct {
	Ratings []Rating `json:"ratings"`
	Average
}
