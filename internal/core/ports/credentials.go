package ports

import (
	"time"

	"github.com/learningreport/account-service/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password produced hash. A malformed hash never matches.
	Verify(password, hash string) bool
}

// TokenIssuer mints signed session tokens.
type TokenIssuer interface {
	Issue(claims domain.Claims, ttl time.Duration) (string, error)
}

// TokenVerifier checks signature and expiry and returns the embedded claims.
type TokenVerifier interface {
	Verify(token string) (domain.Claims, error)
}
