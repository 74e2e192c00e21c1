package auth

import (
	"context"
	"testing"
	"time"

	"promoledger/config"
	"promoledger/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	require := require.New(t)
	cfg := &config.AuthConfig{JWTSecret: "secret", Issuer: "promoledger"}

	token, err := GenerateToken(cfg, Principal{UserID: "u-1", Role: domain.RoleBusinessOwner, BusinessID: "b-1"}, time.Minute)
	require.NoError(err)

	p, err := NewJWTVerifier(cfg).Verify(context.Background(), token)
	require.NoError(err)
	require.Equal("u-1", p.UserID)
	require.Equal(domain.Actor{UserID: "u-1", Role: domain.RoleBusinessOwner, BusinessID: "b-1"}, p.Actor())
}

func TestJWTRejects(t *testing.T) {
	require := require.New(t)
	cfg := &config.AuthConfig{JWTSecret: "secret", Issuer: "promoledger"}
	v := NewJWTVerifier(cfg)

	expired, err := GenerateToken(cfg, Principal{UserID: "u-1", Role: domain.RoleAdmin}, -time.Minute)
	require.NoError(err)
	_, err = v.Verify(context.Background(), expired)
	require.ErrorIs(err, ErrInvalidToken)

	other, err := GenerateToken(&config.AuthConfig{JWTSecret: "other", Issuer: "promoledger"}, Principal{UserID: "u-1"}, time.Minute)
	require.NoError(err)
	_, err = v.Verify(context.Background(), other)
	require.ErrorIs(err, ErrInvalidToken)

	wrongIssuer, err := GenerateToken(&config.AuthConfig{JWTSecret: "secret", Issuer: "elsewhere"}, Principal{UserID: "u-1"}, time.Minute)
	require.NoError(err)
	_, err = v.Verify(context.Background(), wrongIssuer)
	require.ErrorIs(err, ErrInvalidToken)

	_, err = v.Verify(context.Background(), "not-a-token")
	require.ErrorIs(err, ErrInvalidToken)
}

func TestPrincipalFromClaims(t *testing.T) {
	require := require.New(t)
	p := principalFromClaims("uid", map[string]interface{}{"role": domain.RoleInfluencer, "email": "a@b.c", "business_id": 7})
	require.Equal(domain.RoleInfluencer, p.Role)
	require.Equal("a@b.c", p.Email)
	require.Empty(p.BusinessID)

	require.Equal(domain.RoleCustomer, principalFromClaims("uid", nil).Role)
}
