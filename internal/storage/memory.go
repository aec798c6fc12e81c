package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value         string
	expiryEpochMs int64 // zero means no expiry
}

// MemoryStore is the in-process fallback backend. It is not durable and
// not visible across process instances; it exists for local and offline
// operation only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}

	var expiry int64
	if ttl > 0 {
		expiry = s.now().Add(ttl).UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: raw, expiryEpochMs: expiry}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (any, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(entry) {
		delete(s.entries, key)
		return nil, nil
	}
	return decodeValue(entry.value), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	return !s.expired(entry), nil
}

// ListKeys returns keys matching prefix, evicting expired entries as a
// side effect of the scan.
func (s *MemoryStore) ListKeys(_ context.Context, prefix string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
			continue
		}
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		if limit > 0 && len(keys) >= limit {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return entry.expiryEpochMs > 0 && entry.expiryEpochMs <= s.now().UnixMilli()
}
