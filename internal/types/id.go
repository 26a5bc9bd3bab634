// README: Opaque entity identifiers.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// IDPtr returns nil for the empty ID.
func IDPtr(id ID) *ID {
	if id == "" {
		return nil
	}
	return &id
}
