package ports

import "github.com/cerberus-auth/cerberus/core"

// Tokenizer converts between transport credentials and token values. The
// signing protocol itself lives with the external authentication layer; this
// core only needs the decoded form.
type Tokenizer interface {
	// Decode parses and verifies a transport credential into a TokenValue.
	Decode(credential string) (core.TokenValue, error)
}
