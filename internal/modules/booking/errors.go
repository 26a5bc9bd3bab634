package booking

import (
	"fmt"

	"homefix/internal/types"
)

var (
	ErrNotFound = fmt.Errorf("booking %w", types.ErrNotFound)
	// ErrConflict means the row changed between read and write.
	ErrConflict = fmt.Errorf("booking state %w", types.ErrConflict)
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrForbidden, fmt.Sprintf(format, args...))
}

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", types.ErrInvalidTransition, from, to)
}
