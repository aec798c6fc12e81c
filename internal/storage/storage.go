// Package storage provides the TTL key-value abstraction backing the
// webhook pipeline and the call lifecycle. Two backends implement the
// same contract: Redis when configured, and an in-process map otherwise.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
)

// Store is the key-value contract. A TTL of zero means no expiry.
// Get returns nil without error when the key is absent or expired.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (any, error)
	Delete(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context, prefix string, limit int) ([]string, error)
}

func validateKey(key string) error {
	if key == "" {
		return apperror.Validation("storage key must be non-empty")
	}
	return nil
}

// encodeValue serializes non-string values to JSON. Strings are stored
// verbatim so opaque provider payloads round-trip untouched.
func encodeValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", apperror.Storage("value is not serializable", err)
	}
	return string(b), nil
}

// decodeValue reconstructs the stored type best-effort: JSON decodes
// back to structured data, anything else comes back as the raw string.
func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
