package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
)

const issuer = "starred-sync"

// TokenService issues and verifies the HS256 session tokens handed out after login.
// The subject is the local user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewTokenService(secret string, ttl time.Duration, clock clockwork.Clock) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", ttl)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Generate signs a token for userID valid for the configured lifetime.
func (s *TokenService) Generate(userID string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature, algorithm, issuer and expiry and returns the user id.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.NewUnauthorizedError("token expired", err)
		}
		return "", apperrors.NewUnauthorizedError("invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", apperrors.NewUnauthorizedError("token has no subject", nil)
	}
	return claims.Subject, nil
}
