// README: Token verification port; providers resolve a raw bearer token into a typed actor.
package infra

import (
	"context"
	"errors"
	"fmt"

	"homefix/internal/types"
)

var (
	ErrMissingRole = errors.New("token has no usable role claim")
	ErrMissingID   = errors.New("token has no subject")
)

// TokenVerifier verifies a raw token and returns who is calling.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (types.Actor, error)
}

func actorFromClaims(subject string, role any) (types.Actor, error) {
	if subject == "" {
		return types.Actor{}, ErrMissingID
	}
	s, ok := role.(string)
	if !ok {
		return types.Actor{}, ErrMissingRole
	}
	r, ok := types.ParseRole(s)
	if !ok {
		return types.Actor{}, fmt.Errorf("%w: %q", ErrMissingRole, s)
	}
	return types.Actor{ID: types.ID(subject), Role: r}, nil
}
