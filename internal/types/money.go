// README: Common money value object used across modules.
package types

import "fmt"

// Money is an amount in whole currency units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

// Ptr returns a pointer to a copy of m.
func (m Money) Ptr() *Money {
	return &m
}
