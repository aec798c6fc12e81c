// Package lifecycle owns the call record: it is the sole writer of call
// state, driving the provider API on explicit requests and applying
// asynchronous provider webhooks that may arrive out of order or be
// redelivered.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
	"github.com/ruvnet/phone-agent-sub000/internal/notify"
	"github.com/ruvnet/phone-agent-sub000/internal/provider"
	"github.com/ruvnet/phone-agent-sub000/internal/storage"
)

// Provider webhook event types.
const (
	EventCallStarted = "call.started"
	EventCallEnded   = "call.ended"
	EventCallFailed  = "call.failed"
)

// Manager coordinates the provider client, call storage and the
// notification side effect. All dependencies are injected once at
// construction; there is no module-level state.
type Manager struct {
	log      *zap.Logger
	calls    *storage.CallStore
	provider provider.CallProvider
	notifier notify.Notifier
	now      func() time.Time
}

func NewManager(calls *storage.CallStore, p provider.CallProvider, n notify.Notifier, log *zap.Logger) *Manager {
	return &Manager{
		log:      log,
		calls:    calls,
		provider: p,
		notifier: n,
		now:      time.Now,
	}
}

// WebhookOutcome reports how a provider webhook was applied.
type WebhookOutcome struct {
	CallID       string
	Status       model.CallStatus
	UnknownEvent bool
}

// ScheduleCall validates the request, schedules the call with the
// provider, then persists the new record. Persistence happens only
// after the provider call succeeds, so no partial record is ever
// stored. Notification failure does not fail the operation.
func (m *Manager) ScheduleCall(ctx context.Context, req model.ScheduleCallRequest) (*model.CallRecord, error) {
	if req.PhoneNumber == "" {
		return nil, apperror.Validation("phoneNumber is required")
	}
	if req.ScheduledTime == "" {
		return nil, apperror.Validation("scheduledTime is required")
	}
	when, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return nil, apperror.Validation("scheduledTime must be RFC3339")
	}
	if when.Before(m.now()) {
		return nil, apperror.Validation("scheduledTime must not be in the past")
	}

	resp, err := m.provider.ScheduleCall(ctx, provider.ScheduleRequest{
		PhoneNumber:     req.PhoneNumber,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
		Task:            req.Topic,
	})
	if err != nil {
		return nil, err
	}

	nowStr := m.now().UTC().Format(time.RFC3339)
	record := &model.CallRecord{
		CallID:          resp.CallID,
		Status:          model.CallStatusScheduled,
		PhoneNumber:     req.PhoneNumber,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
		RecipientName:   req.RecipientName,
		RecipientEmail:  req.RecipientEmail,
		Topic:           req.Topic,
		CreatedAt:       nowStr,
		UpdatedAt:       nowStr,
	}

	m.notifier.CallScheduled(ctx, record)

	if err := m.calls.StoreCallData(ctx, record.CallID, record); err != nil {
		return nil, err
	}

	m.log.Info("call scheduled",
		zap.String("callId", record.CallID),
		zap.String("scheduledTime", record.ScheduledTime))
	return record, nil
}

// RescheduleCall moves a scheduled call to a new time. Only records in
// the scheduled state may be rescheduled; a call already in progress or
// finished cannot move.
func (m *Manager) RescheduleCall(ctx context.Context, callID, newTime, reason string) (*model.CallRecord, error) {
	if _, err := time.Parse(time.RFC3339, newTime); err != nil {
		return nil, apperror.Validation("newScheduledTime must be RFC3339")
	}

	record, err := m.calls.GetCallData(ctx, callID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperror.NotFound("call %s not found", callID)
	}
	if record.Status != model.CallStatusScheduled {
		return nil, apperror.NotFound("call %s is %s and cannot be rescheduled", callID, record.Status)
	}

	if err := m.provider.RescheduleCall(ctx, callID, newTime); err != nil {
		return nil, err
	}

	updated, err := m.calls.UpdateCallData(ctx, callID, func(current *model.CallRecord) (*model.CallRecord, error) {
		if current == nil {
			current = record
		}
		current.PreviousScheduledTime = current.ScheduledTime
		current.ScheduledTime = newTime
		current.Status = model.CallStatusRescheduled
		current.RescheduledAt = m.now().UTC().Format(time.RFC3339)
		current.UpdatedAt = current.RescheduledAt
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	m.notifier.CallRescheduled(ctx, updated)
	m.log.Info("call rescheduled",
		zap.String("callId", callID),
		zap.String("newTime", newTime),
		zap.String("reason", reason))
	return updated, nil
}

// CancelCall cancels a scheduled call. Cancellation is terminal.
func (m *Manager) CancelCall(ctx context.Context, callID, reason string) (*model.CallRecord, error) {
	record, err := m.calls.GetCallData(ctx, callID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperror.NotFound("call %s not found", callID)
	}
	if record.Status != model.CallStatusScheduled {
		return nil, apperror.NotFound("call %s is %s and cannot be cancelled", callID, record.Status)
	}

	if err := m.provider.CancelCall(ctx, callID); err != nil {
		return nil, err
	}

	updated, err := m.calls.UpdateCallData(ctx, callID, func(current *model.CallRecord) (*model.CallRecord, error) {
		if current == nil {
			current = record
		}
		current.Status = model.CallStatusCancelled
		current.CancelledAt = m.now().UTC().Format(time.RFC3339)
		current.CancellationReason = reason
		current.UpdatedAt = current.CancelledAt
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	m.notifier.CallCancelled(ctx, updated)
	m.log.Info("call cancelled", zap.String("callId", callID), zap.String("reason", reason))
	return updated, nil
}

// GetCall loads a call record.
func (m *Manager) GetCall(ctx context.Context, callID string) (*model.CallRecord, error) {
	record, err := m.calls.GetCallData(ctx, callID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperror.NotFound("call %s not found", callID)
	}
	return record, nil
}

// ProcessProviderWebhook applies an asynchronous provider event to the
// call record. A webhook may land before the scheduling write finished,
// so a minimal record is created when none exists. Re-applying a
// terminal event leaves the record in the same terminal state.
func (m *Manager) ProcessProviderWebhook(ctx context.Context, event model.CallProviderWebhook) (*WebhookOutcome, error) {
	if event.CallID == "" {
		return nil, apperror.Validation("call_id is required")
	}

	nowStr := m.now().UTC().Format(time.RFC3339)
	unknown := false

	updated, err := m.calls.UpdateCallData(ctx, event.CallID, func(current *model.CallRecord) (*model.CallRecord, error) {
		if current == nil {
			current = &model.CallRecord{
				CallID:    event.CallID,
				Status:    model.CallStatusScheduled,
				CreatedAt: nowStr,
			}
		}
		current.UpdatedAt = nowStr
		current.LastWebhookEvent = event.Type

		switch event.Type {
		case EventCallStarted:
			// A late or redelivered start must not reopen a call
			// that already reached a terminal state.
			if !current.Status.Terminal() {
				current.Status = model.CallStatusInProgress
			}
			current.StartedAt = stringField(event.Data, "started_at", nowStr)
			if d, ok := intField(event.Data, "estimated_duration"); ok {
				current.DurationMinutes = d
			}
		case EventCallEnded:
			current.Status = model.CallStatusCompleted
			current.EndedAt = stringField(event.Data, "ended_at", nowStr)
			if d, ok := intField(event.Data, "duration_seconds"); ok {
				current.ActualDurationSeconds = d
			}
			current.Outcome = stringField(event.Data, "outcome", current.Outcome)
		case EventCallFailed:
			current.Status = model.CallStatusFailed
			current.FailureReason = stringField(event.Data, "reason", stringField(event.Data, "error", "unknown"))
		default:
			// Status untouched; only the last-webhook marker moves.
			unknown = true
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("provider webhook applied",
		zap.String("callId", event.CallID),
		zap.String("eventType", event.Type),
		zap.String("status", string(updated.Status)),
		zap.Bool("unknownEvent", unknown))

	return &WebhookOutcome{CallID: event.CallID, Status: updated.Status, UnknownEvent: unknown}, nil
}

func stringField(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intField(data map[string]any, key string) (int, bool) {
	switch v := data[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
