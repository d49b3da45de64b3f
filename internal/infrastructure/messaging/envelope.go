// Package messaging consumes platform events from Kafka and feeds them to
// the same router the webhook endpoints use.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/infrastructure/ecommerce"
)

// ErrInvalidEnvelope marks a message that can never be processed
var ErrInvalidEnvelope = errors.New("messaging: invalid envelope")

// Envelope is the wire format on the ingestion topic. Type is a platform
// webhook topic such as "orders/create"; Payload is the webhook body.
type Envelope struct {
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	WebhookID string          `json:"webhook_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// ParsedEnvelope is an Envelope with its fields checked
type ParsedEnvelope struct {
	Topic     ecommerce.Topic
	TenantID  uuid.UUID
	WebhookID string
	Payload   []byte
}

// ParseEnvelope decodes and validates a raw message value
func ParseEnvelope(data []byte) (*ParsedEnvelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	topic, err := ecommerce.ParseTopic(env.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	tenantID, err := uuid.Parse(env.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant_id %q", ErrInvalidEnvelope, env.TenantID)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidEnvelope)
	}
	return &ParsedEnvelope{
		Topic:     topic,
		TenantID:  tenantID,
		WebhookID: env.WebhookID,
		Payload:   env.Payload,
	}, nil
}
