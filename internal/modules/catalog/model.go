// README: Service catalog and technician directory entries.
package catalog

import (
	"strings"
	"time"

	"homefix/internal/types"
)

type Service struct {
	ID          types.ID    `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	BasePrice   types.Money `json:"base_price"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Technician struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Location  string    `json:"location"`
	Skills    string    `json:"skills"`
	CreatedAt time.Time `json:"created_at"`
}

// HasSkill reports whether term appears in the free-text skills field, ignoring case.
func (t Technician) HasSkill(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(t.Skills), strings.ToLower(term))
}
