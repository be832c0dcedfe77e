package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	// PublishLogout announces that a single token was revoked.
	PublishLogout(ctx context.Context, subject string, tokenID string) error

	// PublishCredentialInvalidation announces a cutoff-style revocation for
	// a subject. Scope is a token type, or "all" for subject-wide.
	PublishCredentialInvalidation(ctx context.Context, subject string, scope string) error
}
