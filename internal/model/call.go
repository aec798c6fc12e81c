package model

// CallStatus enumerates the lifecycle states of a scheduled call.
type CallStatus string

const (
	CallStatusScheduled   CallStatus = "scheduled"
	CallStatusInProgress  CallStatus = "in_progress"
	CallStatusCompleted   CallStatus = "completed"
	CallStatusFailed      CallStatus = "failed"
	CallStatusRescheduled CallStatus = "rescheduled"
	CallStatusCancelled   CallStatus = "cancelled"
)

// Terminal reports whether no further status transition is expected.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed || s == CallStatusCancelled
}

// CallRecord is the durable representation of one scheduled, active or
// finished phone call. CallID is assigned by the call provider at
// schedule time and is the only stable external identifier. The record
// is mutated in place on every transition and never deleted; expiry is
// a storage TTL concern.
type CallRecord struct {
	CallID          string     `json:"callId"`
	Status          CallStatus `json:"status"`
	PhoneNumber     string     `json:"phoneNumber"`
	ScheduledTime   string     `json:"scheduledTime"`
	DurationMinutes int        `json:"durationMinutes"`
	RecipientName   string     `json:"recipientName,omitempty"`
	RecipientEmail  string     `json:"recipientEmail,omitempty"`
	Topic           string     `json:"topic,omitempty"`
	CreatedAt       string     `json:"createdAt"`
	UpdatedAt       string     `json:"updatedAt"`

	StartedAt             string `json:"startedAt,omitempty"`
	EndedAt               string `json:"endedAt,omitempty"`
	ActualDurationSeconds int    `json:"actualDurationSeconds,omitempty"`
	Outcome               string `json:"outcome,omitempty"`
	FailureReason         string `json:"failureReason,omitempty"`
	CancelledAt           string `json:"cancelledAt,omitempty"`
	CancellationReason    string `json:"cancellationReason,omitempty"`
	RescheduledAt         string `json:"rescheduledAt,omitempty"`
	PreviousScheduledTime string `json:"previousScheduledTime,omitempty"`

	// LastWebhookEvent records the most recent provider event type
	// seen for this call, including types that do not change status.
	LastWebhookEvent string `json:"lastWebhookEvent,omitempty"`
}

// CallProviderWebhook is the voice provider's event envelope.
type CallProviderWebhook struct {
	Type      string         `json:"type"`
	CallID    string         `json:"call_id"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// ScheduleCallRequest is the inbound API payload for scheduling a call.
type ScheduleCallRequest struct {
	PhoneNumber     string `json:"phoneNumber" validate:"required,e164phone"`
	ScheduledTime   string `json:"scheduledTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=1"`
	RecipientName   string `json:"recipientName"`
	RecipientEmail  string `json:"recipientEmail" validate:"omitempty,email"`
	Topic           string `json:"topic"`
}

// RescheduleCallRequest is the inbound API payload for rescheduling.
type RescheduleCallRequest struct {
	NewScheduledTime string `json:"newScheduledTime" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Reason           string `json:"reason"`
}

// CancelCallRequest is the inbound API payload for cancellation.
type CancelCallRequest struct {
	Reason string `json:"reason"`
}
