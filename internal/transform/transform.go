// Package transform normalizes provider webhook payloads into canonical
// events.
package transform

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
)

// metadataFields are the provider sub-fields copied into the canonical
// payload when present. Everything else stays only in originalPayload.
var metadataFields = []string{"to", "from", "subject", "created_at", "delivered_at"}

// Transformer converts raw webhook bodies into CanonicalEvents. The
// clock is injectable for tests.
type Transformer struct {
	now func() time.Time
}

func New() *Transformer {
	return &Transformer{now: time.Now}
}

// Validate checks the structural contract: a JSON object with top-level
// "type" and "data" fields. Unknown event types are not rejected here;
// only malformed payloads are.
func (t *Transformer) Validate(raw []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return apperror.Validation("payload is not a JSON object")
	}
	if _, ok := probe["type"]; !ok {
		return apperror.Validation("payload missing required field: type")
	}
	if _, ok := probe["data"]; !ok {
		return apperror.Validation("payload missing required field: data")
	}
	return nil
}

// Transform builds a CanonicalEvent from a payload that passed Validate.
// The event id and timestamp are fresh per call; the provider's own
// timestamps are preserved inside the payload metadata and the verbatim
// body is retained for audit.
func (t *Transformer) Transform(raw []byte) (*model.CanonicalEvent, error) {
	var hook model.EmailWebhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		return nil, apperror.Validation("payload is not decodable")
	}

	metadata := make(map[string]any)
	for _, field := range metadataFields {
		if v, ok := hook.Data[field]; ok {
			metadata[field] = v
		}
	}
	if hook.CreatedAt != "" {
		metadata["provider_created_at"] = hook.CreatedAt
	}

	sourceID, _ := hook.Data["id"].(string)

	event := &model.CanonicalEvent{
		ID:        uuid.NewString(),
		Timestamp: t.now().Unix(),
		EventType: hook.Type,
		SourceID:  sourceID,
		Payload:   map[string]any{"metadata": metadata},
		// Keep the exact bytes we received, not a re-encoding.
		OriginalPayload: json.RawMessage(append([]byte(nil), raw...)),
	}
	return event, nil
}
