package auth

import (
	"context"
	"errors"
	"time"

	"promoledger/config"
	"promoledger/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal is the verified identity behind a bearer token.
type Principal struct {
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	BusinessID string `json:"businessId,omitempty"`
}

func (p *Principal) Actor() domain.Actor {
	return domain.Actor{UserID: p.UserID, Role: p.Role, BusinessID: p.BusinessID}
}

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type Claims struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens signed with the shared secret. Service
// callers (order service, ad server) and local development use it.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(cfg *config.AuthConfig) *JWTVerifier {
	return &JWTVerifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role, BusinessID: claims.BusinessID}, nil
}

// GenerateToken signs a token for p valid for ttl.
func GenerateToken(cfg *config.AuthConfig, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     p.UserID,
		Email:      p.Email,
		Role:       p.Role,
		BusinessID: p.BusinessID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
