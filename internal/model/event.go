// Package model defines the wire and storage types shared across packages.
package model

import "encoding/json"

// WebhookEnvelope is the raw inbound webhook request as received off the
// wire. It is transient and never persisted.
type WebhookEnvelope struct {
	Body       []byte
	Signature  string
	Timestamp  string
	ReceivedAt int64
}

// CanonicalEvent is the normalized, provider-agnostic representation of
// an inbound webhook. ID is fresh per processed webhook, so a redelivery
// of the same provider event produces a new CanonicalEvent; downstream
// consumers dedupe on SourceID+EventType if they need to.
type CanonicalEvent struct {
	ID              string          `json:"id"`
	Timestamp       int64           `json:"timestamp"`
	EventType       string          `json:"eventType"`
	SourceID        string          `json:"sourceId"`
	Payload         map[string]any  `json:"payload"`
	OriginalPayload json.RawMessage `json:"originalPayload"`
}

// EmailWebhook is the email provider's event envelope: a type tag plus a
// data object carrying the provider's email record.
type EmailWebhook struct {
	Type      string         `json:"type"`
	CreatedAt string         `json:"created_at,omitempty"`
	Data      map[string]any `json:"data"`
}
