// README: Payment annotations recorded against completed bookings; no gateway integration.
package payment

import (
	"fmt"
	"strings"
	"time"

	"homefix/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

func ParseStatus(v string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case "":
		return StatusPaid, nil
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown payment status %q", types.ErrInvalidInput, v)
	}
}

type Payment struct {
	ID         types.ID    `json:"id"`
	BookingID  types.ID    `json:"booking_id"`
	Amount     types.Money `json:"amount"`
	Method     string      `json:"method"`
	Status     Status      `json:"status"`
	RecordedBy types.ID    `json:"recorded_by"`
	CreatedAt  time.Time   `json:"created_at"`
}
