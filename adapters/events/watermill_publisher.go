package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/cerberus-auth/cerberus/ports"
)

// LogoutEvent announces that a single token was revoked
type LogoutEvent struct {
	Subject string `json:"subject"`
	TokenID string `json:"token_id"`
}

// CredentialInvalidationEvent announces a cutoff-style revocation
type CredentialInvalidationEvent struct {
	Subject string `json:"subject"`
	Scope   string `json:"scope"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher         message.Publisher
	logoutTopic       string
	invalidationTopic string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher:         publisher,
		logoutTopic:       "cerberus.logout",
		invalidationTopic: "cerberus.credential_invalidation",
	}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string, tokenID string) error {
	return p.publish(p.logoutTopic, tokenID, LogoutEvent{
		Subject: subject,
		TokenID: tokenID,
	})
}

// PublishCredentialInvalidation publishes a credential invalidation event
func (p *WatermillPublisher) PublishCredentialInvalidation(ctx context.Context, subject string, scope string) error {
	return p.publish(p.invalidationTopic, uuid.New().String(), CredentialInvalidationEvent{
		Subject: subject,
		Scope:   scope,
	})
}

func (p *WatermillPublisher) publish(topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
