// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// DefaultTokenTTL is used when no TTL is configured.
const DefaultTokenTTL = 24 * time.Hour

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string
	Role   shared.Role
}

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and parses HS256 tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    shared.Clock
}

// NewJWTService creates a token service. An empty secret is rejected.
func NewJWTService(secret, issuer string, ttl time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTService{secret: []byte(secret), issuer: issuer, ttl: ttl, now: shared.SystemClock}, nil
}

// WithClock replaces the time source. Used in tests.
func (s *JWTService) WithClock(c shared.Clock) *JWTService {
	s.now = c.OrSystem()
	return s
}

// Issue mints a token for userID.
func (s *JWTService) Issue(userID string, role shared.Role) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Resolve verifies a token and returns its identity. Every failure maps to
// shared.ErrInvalidCredential.
func (s *JWTService) Resolve(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, shared.ErrMissingCredential
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, shared.WrapError("auth", "Resolve", shared.ErrUnauthorized, "invalid or expired credential", err)
	}

	// expiry is checked against the injected clock
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return nil, shared.ErrInvalidCredential
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, shared.ErrInvalidCredential
	}

	role := shared.Role(claims.Role)
	if claims.Subject == "" || !role.IsValid() {
		return nil, shared.ErrInvalidCredential
	}
	return &Identity{UserID: claims.Subject, Role: role}, nil
}
