package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/learningreport/account-service/internal/core/domain"
)

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 session tokens with a shared secret.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

// Option customises a JWTIssuer.
type Option func(*JWTIssuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) { i.now = now }
}

// NewJWTIssuer returns an issuer for secret. An empty secret is rejected.
func NewJWTIssuer(secret string, opts ...Option) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}
	i := &JWTIssuer{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue returns a signed token asserting claims until now+ttl.
func (i *JWTIssuer) Issue(claims domain.Claims, ttl time.Duration) (string, error) {
	now := i.now()
	payload := sessionClaims{
		Email: claims.Email,
		Role:  claims.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token with zero leeway. A token is
// still valid at its exact expiry instant and expired strictly after it.
func (i *JWTIssuer) Verify(token string) (domain.Claims, error) {
	var payload sessionClaims
	_, err := jwt.ParseWithClaims(token, &payload,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.expiryClock),
	)
	if err != nil {
		return domain.Claims{}, classify(err)
	}

	role, ok := domain.ParseRole(payload.Role)
	if !ok || payload.Email == "" {
		return domain.Claims{}, domain.ErrTokenMalformed
	}
	return domain.Claims{Email: payload.Email, Role: role}, nil
}

// expiryClock is the verification clock. jwt accepts a token only while
// now < exp; stepping back one nanosecond turns that into now <= exp.
func (i *JWTIssuer) expiryClock() time.Time {
	return i.now().Add(-time.Nanosecond)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return domain.ErrTokenMalformed
	}
}
