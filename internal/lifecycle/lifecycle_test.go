package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
	"github.com/ruvnet/phone-agent-sub000/internal/provider"
	"github.com/ruvnet/phone-agent-sub000/internal/storage"
)

type mockProvider struct {
	scheduleCalls   int
	rescheduleCalls int
	cancelCalls     int
	scheduleErr     error
	rescheduleErr   error
	cancelErr       error
	nextCallID      string
}

func (m *mockProvider) ScheduleCall(_ context.Context, _ provider.ScheduleRequest) (*provider.ScheduleResponse, error) {
	m.scheduleCalls++
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	id := m.nextCallID
	if id == "" {
		id = "call-1"
	}
	return &provider.ScheduleResponse{CallID: id, Status: "scheduled"}, nil
}

func (m *mockProvider) RescheduleCall(_ context.Context, _, _ string) error {
	m.rescheduleCalls++
	return m.rescheduleErr
}

func (m *mockProvider) CancelCall(_ context.Context, _ string) error {
	m.cancelCalls++
	return m.cancelErr
}

type recordingNotifier struct {
	scheduled, rescheduled, cancelled int
}

func (n *recordingNotifier) CallScheduled(context.Context, *model.CallRecord)   { n.scheduled++ }
func (n *recordingNotifier) CallRescheduled(context.Context, *model.CallRecord) { n.rescheduled++ }
func (n *recordingNotifier) CallCancelled(context.Context, *model.CallRecord)   { n.cancelled++ }

func newTestManager(t *testing.T) (*Manager, *mockProvider, *recordingNotifier, *storage.CallStore) {
	t.Helper()

	calls := storage.NewCallStore(storage.NewMemoryStore(), 0)
	p := &mockProvider{}
	n := &recordingNotifier{}
	m := NewManager(calls, p, n, zaptest.NewLogger(t))
	return m, p, n, calls
}

func futureTime() string {
	return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
}

func validRequest() model.ScheduleCallRequest {
	return model.ScheduleCallRequest{
		PhoneNumber:    "+15551234567",
		ScheduledTime:  futureTime(),
		RecipientEmail: "user@example.com",
		Topic:          "quarterly review",
	}
}

func TestScheduleCall_Success(t *testing.T) {
	m, p, n, calls := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)
	assert.Equal(t, "call-1", record.CallID)
	assert.Equal(t, model.CallStatusScheduled, record.Status)
	assert.NotEmpty(t, record.CreatedAt)
	assert.Equal(t, 1, p.scheduleCalls)
	assert.Equal(t, 1, n.scheduled)

	stored, err := calls.GetCallData(context.Background(), "call-1")
	assert.NoError(t, err)
	assert.Equal(t, record, stored)
}

func TestScheduleCall_PastTimeRejectedBeforeProviderCall(t *testing.T) {
	m, p, _, _ := newTestManager(t)

	req := validRequest()
	req.ScheduledTime = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	_, err := m.ScheduleCall(context.Background(), req)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, 0, p.scheduleCalls)
}

func TestScheduleCall_MissingFields(t *testing.T) {
	m, p, _, _ := newTestManager(t)

	req := validRequest()
	req.PhoneNumber = ""
	_, err := m.ScheduleCall(context.Background(), req)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	req = validRequest()
	req.ScheduledTime = ""
	_, err = m.ScheduleCall(context.Background(), req)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	assert.Equal(t, 0, p.scheduleCalls)
}

func TestScheduleCall_ProviderErrorAbortsBeforePersistence(t *testing.T) {
	m, p, n, calls := newTestManager(t)
	p.scheduleErr = apperror.Provider(429, "provider rate limit exceeded", nil)

	_, err := m.ScheduleCall(context.Background(), validRequest())
	assert.True(t, apperror.IsKind(err, apperror.KindProvider))
	assert.Equal(t, 429, apperror.From(err).HTTPStatus())
	assert.Equal(t, 0, n.scheduled)

	ids, listErr := calls.ListCallIDs(context.Background(), 0)
	assert.NoError(t, listErr)
	assert.Empty(t, ids)
}

func TestRescheduleCall_Success(t *testing.T) {
	m, p, n, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)
	originalTime := record.ScheduledTime

	newTime := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	updated, err := m.RescheduleCall(context.Background(), record.CallID, newTime, "conflict")
	assert.NoError(t, err)

	assert.Equal(t, model.CallStatusRescheduled, updated.Status)
	assert.Equal(t, newTime, updated.ScheduledTime)
	assert.Equal(t, originalTime, updated.PreviousScheduledTime)
	assert.NotEmpty(t, updated.RescheduledAt)
	assert.Equal(t, 1, p.rescheduleCalls)
	assert.Equal(t, 1, n.rescheduled)
}

func TestRescheduleCall_UnknownCall(t *testing.T) {
	m, p, _, _ := newTestManager(t)

	_, err := m.RescheduleCall(context.Background(), "unknown-id", futureTime(), "")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.Equal(t, 0, p.rescheduleCalls)
}

func TestRescheduleCall_InProgressRejected(t *testing.T) {
	m, p, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	_, err = m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type: EventCallStarted, CallID: record.CallID,
	})
	assert.NoError(t, err)

	_, err = m.RescheduleCall(context.Background(), record.CallID, futureTime(), "")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.Equal(t, 0, p.rescheduleCalls)
}

func TestCancelCall_Success(t *testing.T) {
	m, p, n, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	updated, err := m.CancelCall(context.Background(), record.CallID, "no longer needed")
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusCancelled, updated.Status)
	assert.Equal(t, "no longer needed", updated.CancellationReason)
	assert.NotEmpty(t, updated.CancelledAt)
	assert.Equal(t, 1, p.cancelCalls)
	assert.Equal(t, 1, n.cancelled)
}

func TestCancelCall_UnknownCall(t *testing.T) {
	m, p, _, _ := newTestManager(t)

	_, err := m.CancelCall(context.Background(), "unknown-id", "")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.Equal(t, 0, p.cancelCalls)
}

func TestProcessProviderWebhook_StartedAndEnded(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	outcome, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type:   EventCallStarted,
		CallID: record.CallID,
		Data:   map[string]any{"started_at": "2026-09-01T10:00:05Z"},
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusInProgress, outcome.Status)

	outcome, err = m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type:   EventCallEnded,
		CallID: record.CallID,
		Data:   map[string]any{"ended_at": "2026-09-01T10:25:00Z", "duration_seconds": float64(1495), "outcome": "completed"},
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusCompleted, outcome.Status)

	stored, err := m.GetCall(context.Background(), record.CallID)
	assert.NoError(t, err)
	assert.Equal(t, 1495, stored.ActualDurationSeconds)
	assert.Equal(t, "completed", stored.Outcome)
}

func TestProcessProviderWebhook_TerminalEventIdempotent(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	ended := model.CallProviderWebhook{
		Type:   EventCallEnded,
		CallID: record.CallID,
		Data:   map[string]any{"ended_at": "2026-09-01T10:25:00Z"},
	}

	first, err := m.ProcessProviderWebhook(context.Background(), ended)
	assert.NoError(t, err)
	second, err := m.ProcessProviderWebhook(context.Background(), ended)
	assert.NoError(t, err)

	assert.Equal(t, model.CallStatusCompleted, first.Status)
	assert.Equal(t, model.CallStatusCompleted, second.Status)
}

func TestProcessProviderWebhook_LateStartDoesNotReopen(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	_, err = m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type: EventCallEnded, CallID: record.CallID,
	})
	assert.NoError(t, err)

	outcome, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type: EventCallStarted, CallID: record.CallID,
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusCompleted, outcome.Status)
}

func TestProcessProviderWebhook_CreatesMinimalRecord(t *testing.T) {
	m, _, _, calls := newTestManager(t)

	outcome, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type:   EventCallStarted,
		CallID: "early-webhook",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusInProgress, outcome.Status)

	stored, err := calls.GetCallData(context.Background(), "early-webhook")
	assert.NoError(t, err)
	assert.Equal(t, "early-webhook", stored.CallID)
	assert.NotEmpty(t, stored.CreatedAt)
}

func TestProcessProviderWebhook_FailedCall(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	outcome, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type:   EventCallFailed,
		CallID: record.CallID,
		Data:   map[string]any{"reason": "no answer"},
	})
	assert.NoError(t, err)
	assert.Equal(t, model.CallStatusFailed, outcome.Status)

	stored, err := m.GetCall(context.Background(), record.CallID)
	assert.NoError(t, err)
	assert.Equal(t, "no answer", stored.FailureReason)
}

func TestProcessProviderWebhook_UnknownEventKeepsStatus(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	record, err := m.ScheduleCall(context.Background(), validRequest())
	assert.NoError(t, err)

	outcome, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{
		Type:   "call.transcript_ready",
		CallID: record.CallID,
	})
	assert.NoError(t, err)
	assert.True(t, outcome.UnknownEvent)
	assert.Equal(t, model.CallStatusScheduled, outcome.Status)

	stored, err := m.GetCall(context.Background(), record.CallID)
	assert.NoError(t, err)
	assert.Equal(t, "call.transcript_ready", stored.LastWebhookEvent)
}

func TestProcessProviderWebhook_MissingCallID(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	_, err := m.ProcessProviderWebhook(context.Background(), model.CallProviderWebhook{Type: EventCallStarted})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
