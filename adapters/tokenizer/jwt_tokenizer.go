package tokenizer

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

// JWTTokenizer implements the Tokenizer port using HMAC-signed JWTs. Token
// issuing belongs to the external authentication layer; this adapter only
// decodes credentials into token values (Sign exists for tests and tooling).
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(secret []byte) *JWTTokenizer {
	return &JWTTokenizer{secret: secret}
}

// Decode parses and verifies a credential string into a TokenValue.
func (j *JWTTokenizer) Decode(credential string) (core.TokenValue, error) {
	// Expiry is not validated here: the caller-facing verification path
	// reports expiry as a verdict, not a decode failure.
	token, err := jwt.ParseWithClaims(credential, &CredentialClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return core.TokenValue{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return core.TokenValue{}, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok {
		return core.TokenValue{}, core.ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return core.TokenValue{}, core.ErrInvalidToken
	}
	if len(claims.Audience) == 0 {
		return core.TokenValue{}, core.ErrInvalidToken
	}

	return core.NewTokenValue(
		claims.ID,
		claims.Subject,
		core.TokenType(claims.Audience[0]),
		claims.IssuedAt.Time,
		claims.ExpiresAt.Time,
	)
}

// Sign produces a credential string for a TokenValue.
func (j *JWTTokenizer) Sign(value core.TokenValue) (string, error) {
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   value.Subject,
			ID:        value.ID,
			Audience:  jwt.ClaimStrings{string(value.Type)},
			IssuedAt:  jwt.NewNumericDate(value.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(value.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)
