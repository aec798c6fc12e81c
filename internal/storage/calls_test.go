package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ruvnet/phone-agent-sub000/internal/model"
)

func TestCallStore_StoreAndGet(t *testing.T) {
	calls := NewCallStore(NewMemoryStore(), 0)
	ctx := context.Background()

	record := &model.CallRecord{
		CallID:        "call-1",
		Status:        model.CallStatusScheduled,
		PhoneNumber:   "+15551234567",
		ScheduledTime: "2026-09-01T10:00:00Z",
	}
	assert.NoError(t, calls.StoreCallData(ctx, "call-1", record))

	got, err := calls.GetCallData(ctx, "call-1")
	assert.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestCallStore_GetMissingReturnsNil(t *testing.T) {
	calls := NewCallStore(NewMemoryStore(), 0)

	got, err := calls.GetCallData(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCallStore_UpdateCreatesWhenAbsent(t *testing.T) {
	calls := NewCallStore(NewMemoryStore(), 0)
	ctx := context.Background()

	updated, err := calls.UpdateCallData(ctx, "call-9", func(current *model.CallRecord) (*model.CallRecord, error) {
		assert.Nil(t, current)
		return &model.CallRecord{CallID: "call-9", Status: model.CallStatusScheduled}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusScheduled, updated.Status)

	got, err := calls.GetCallData(ctx, "call-9")
	assert.NoError(t, err)
	assert.Equal(t, "call-9", got.CallID)
}

func TestCallStore_ConcurrentUpdatesSerialized(t *testing.T) {
	calls := NewCallStore(NewMemoryStore(), 0)
	ctx := context.Background()

	assert.NoError(t, calls.StoreCallData(ctx, "call-1", &model.CallRecord{
		CallID: "call-1", Status: model.CallStatusScheduled,
	}))

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := calls.UpdateCallData(ctx, "call-1", func(current *model.CallRecord) (*model.CallRecord, error) {
				current.DurationMinutes++
				return current, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := calls.GetCallData(ctx, "call-1")
	assert.NoError(t, err)
	assert.Equal(t, workers, got.DurationMinutes)
}

func TestCallStore_ListCallIDs(t *testing.T) {
	store := NewMemoryStore()
	calls := NewCallStore(store, 0)
	ctx := context.Background()

	assert.NoError(t, calls.StoreCallData(ctx, "a", &model.CallRecord{CallID: "a"}))
	assert.NoError(t, calls.StoreCallData(ctx, "b", &model.CallRecord{CallID: "b"}))
	assert.NoError(t, store.Set(ctx, "failed:x", "dead letter", 0))

	ids, err := calls.ListCallIDs(ctx, 0)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
