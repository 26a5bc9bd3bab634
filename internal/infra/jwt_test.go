package infra

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefix/internal/types"
)

func TestJWTRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("secret", "homefix")
	require.NoError(t, err)

	raw, err := v.Issue(types.Actor{ID: "tech-1", Role: types.RoleTechnician}, time.Hour)
	require.NoError(t, err)

	actor, err := v.VerifyToken(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, types.Actor{ID: "tech-1", Role: types.RoleTechnician}, actor)
}

func TestJWTRejects(t *testing.T) {
	v, err := NewJWTVerifier("secret", "homefix")
	require.NoError(t, err)
	ctx := context.Background()

	expired, err := v.Issue(types.Actor{ID: "c1", Role: types.RoleCustomer}, -time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(ctx, expired)
	assert.Error(t, err)

	other, err := NewJWTVerifier("other", "homefix")
	require.NoError(t, err)
	forged, err := other.Issue(types.Actor{ID: "c1", Role: types.RoleCustomer}, time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyToken(ctx, forged)
	assert.Error(t, err)

	wrongIssuer, err := NewJWTVerifier("secret", "someone-else")
	require.NoError(t, err)
	tok, err := wrongIssuer.Issue(types.Actor{ID: "c1", Role: types.RoleCustomer}, time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyToken(ctx, tok)
	assert.Error(t, err)

	_, err = v.VerifyToken(ctx, "not-a-jwt")
	assert.Error(t, err)
}

func TestJWTClaimMapping(t *testing.T) {
	v, err := NewJWTVerifier("secret", "")
	require.NoError(t, err)
	ctx := context.Background()

	sign := func(sub, role string) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Role:             role,
			RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		return raw
	}

	actor, err := v.VerifyToken(ctx, sign("u1", "user"))
	require.NoError(t, err)
	assert.Equal(t, types.RoleCustomer, actor.Role, "legacy user role means customer")

	_, err = v.VerifyToken(ctx, sign("u1", "driver"))
	assert.ErrorIs(t, err, ErrMissingRole)

	_, err = v.VerifyToken(ctx, sign("u1", ""))
	assert.ErrorIs(t, err, ErrMissingRole)

	_, err = v.VerifyToken(ctx, sign("", "admin"))
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestNewJWTVerifierNeedsSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "homefix")
	assert.Error(t, err)
}
