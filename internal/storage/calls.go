package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
)

const callKeyPrefix = "call:"

// CallKey returns the storage key for a call id.
func CallKey(callID string) string { return callKeyPrefix + callID }

// CallStore layers typed call-record access over a Store. Updates to a
// single call id are serialized through a per-key mutex so a provider
// webhook racing a reschedule cannot lose a write within this process.
// Cross-instance writers still race; Redis provides no CAS here.
type CallStore struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCallStore wraps store. ttl applies to every call record write;
// zero means records never expire.
func NewCallStore(store Store, ttl time.Duration) *CallStore {
	return &CallStore{store: store, ttl: ttl, locks: make(map[string]*sync.Mutex)}
}

func (c *CallStore) keyLock(callID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[callID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[callID] = l
	}
	return l
}

// StoreCallData persists a call record.
func (c *CallStore) StoreCallData(ctx context.Context, callID string, record *model.CallRecord) error {
	if callID == "" {
		return apperror.Validation("callId must be non-empty")
	}
	return c.store.Set(ctx, CallKey(callID), record, c.ttl)
}

// GetCallData loads a call record, returning nil when absent.
func (c *CallStore) GetCallData(ctx context.Context, callID string) (*model.CallRecord, error) {
	if callID == "" {
		return nil, apperror.Validation("callId must be non-empty")
	}
	value, err := c.store.Get(ctx, CallKey(callID))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	// The generic store hands back decoded JSON; round-trip it into
	// the typed record.
	b, err := json.Marshal(value)
	if err != nil {
		return nil, apperror.Storage("call record is not decodable", err)
	}
	var record model.CallRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, apperror.Storage("call record is malformed", err)
	}
	return &record, nil
}

// UpdateCallData applies a read-modify-write update under the per-key
// lock. fn receives the current record or nil and returns the record to
// persist; returning an error from fn aborts without writing.
func (c *CallStore) UpdateCallData(ctx context.Context, callID string, fn func(current *model.CallRecord) (*model.CallRecord, error)) (*model.CallRecord, error) {
	if callID == "" {
		return nil, apperror.Validation("callId must be non-empty")
	}

	lock := c.keyLock(callID)
	lock.Lock()
	defer lock.Unlock()

	current, err := c.GetCallData(ctx, callID)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := c.StoreCallData(ctx, callID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// ListCallIDs returns the ids of stored call records.
func (c *CallStore) ListCallIDs(ctx context.Context, limit int) ([]string, error) {
	keys, err := c.store.ListKeys(ctx, callKeyPrefix, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(callKeyPrefix):])
	}
	return ids, nil
}
