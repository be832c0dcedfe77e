package tokenizer

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims are the registered claims of a credential token. The
// token type travels in the audience claim.
type CredentialClaims struct {
	jwt.RegisteredClaims
}
