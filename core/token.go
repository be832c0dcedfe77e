package core

import "time"

// TokenType represents the type of a credential token
type TokenType string

const (
	// TokenTypeAccess represents a short-lived access token
	TokenTypeAccess TokenType = "access"

	// TokenTypeRefresh represents a refresh token
	TokenTypeRefresh TokenType = "refresh"

	// TokenTypeEmailConfirmation represents an email confirmation token
	TokenTypeEmailConfirmation TokenType = "email-confirmation"

	// TokenTypePasswordRecovery represents a password recovery token
	TokenTypePasswordRecovery TokenType = "password-recovery"
)

// TokenTypes lists every known token type.
var TokenTypes = []TokenType{
	TokenTypeAccess,
	TokenTypeRefresh,
	TokenTypeEmailConfirmation,
	TokenTypePasswordRecovery,
}

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeEmailConfirmation, TokenTypePasswordRecovery:
		return true
	}
	return false
}

// TokenValue is the decoded, in-memory representation of a credential.
// It is immutable after construction; revocation status is never stored on
// the token itself, it is looked up through the invalidation repository.
type TokenValue struct {
	ID        string
	Subject   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewTokenValue builds a TokenValue and checks its construction invariants.
func NewTokenValue(id, subject string, tokenType TokenType, issuedAt, expiresAt time.Time) (TokenValue, error) {
	if id == "" || subject == "" {
		return TokenValue{}, ErrInvalidToken
	}
	if !tokenType.Valid() {
		return TokenValue{}, ErrInvalidToken
	}
	if !issuedAt.Before(expiresAt) {
		return TokenValue{}, ErrInvalidToken
	}
	return TokenValue{
		ID:        id,
		Subject:   subject,
		Type:      tokenType,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Expired reports whether the token has passed its own expiry.
func (t TokenValue) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

const (
	// DefaultAccessExpiry is the default lifetime ceiling for access tokens
	DefaultAccessExpiry = 15 * time.Minute

	// DefaultRefreshExpiry is the default lifetime ceiling for refresh tokens
	DefaultRefreshExpiry = 5 * 24 * time.Hour

	// DefaultEmailConfirmationExpiry is the default lifetime ceiling for
	// email confirmation tokens
	DefaultEmailConfirmationExpiry = 24 * time.Hour

	// DefaultPasswordRecoveryExpiry is the default lifetime ceiling for
	// password recovery tokens
	DefaultPasswordRecoveryExpiry = time.Hour
)

// RevocationTTLs holds the invalidation-marker TTL per token type.
//
// Invariant: every marker TTL must be at least the token type's own lifetime
// ceiling, so a marker never expires before the last token it could
// invalidate would have expired anyway. Keeping the whole table in one struct
// keeps that invariant auditable in one place.
type RevocationTTLs struct {
	Access            time.Duration
	Refresh           time.Duration
	EmailConfirmation time.Duration
	PasswordRecovery  time.Duration
}

// DefaultRevocationTTLs returns marker TTLs that dominate the default token
// lifetimes with headroom for clock skew.
func DefaultRevocationTTLs() RevocationTTLs {
	return RevocationTTLs{
		Access:            time.Hour,
		Refresh:           7 * 24 * time.Hour,
		EmailConfirmation: 48 * time.Hour,
		PasswordRecovery:  4 * time.Hour,
	}
}

// For returns the marker TTL for the given token type.
func (r RevocationTTLs) For(tokenType TokenType) time.Duration {
	switch tokenType {
	case TokenTypeAccess:
		return r.Access
	case TokenTypeRefresh:
		return r.Refresh
	case TokenTypeEmailConfirmation:
		return r.EmailConfirmation
	case TokenTypePasswordRecovery:
		return r.PasswordRecovery
	}
	return r.Max()
}

// Max returns the longest ceiling among all types. Subject-wide markers use
// it because they must survive as long as the longest-lived token they can
// affect.
func (r RevocationTTLs) Max() time.Duration {
	max := r.Access
	for _, ttl := range []time.Duration{r.Refresh, r.EmailConfirmation, r.PasswordRecovery} {
		if ttl > max {
			max = ttl
		}
	}
	return max
}
