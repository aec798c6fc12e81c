// Package handler contains HTTP handlers for the webhook and call APIs.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/lifecycle"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
	"github.com/ruvnet/phone-agent-sub000/internal/pipeline"
)

// Header names used by the email provider's webhook delivery.
const (
	SignatureHeader = "Webhook-Signature"
	TimestampHeader = "Webhook-Timestamp"
)

const maxBodyBytes = 1 << 20

// PhoneValidator accepts E.164 phone numbers (e.g. +15551234567).
var PhoneValidator = func(fl validator.FieldLevel) bool {
	pattern := `^\+[1-9]\d{6,14}$`
	matched, _ := regexp.MatchString(pattern, fl.Field().String())
	return matched
}

// Handler wraps HTTP handlers with the pipeline, lifecycle manager and
// request validator.
type Handler struct {
	log      *zap.Logger
	pipe     *pipeline.Pipeline
	calls    *lifecycle.Manager
	validate *validator.Validate
}

// New creates a new Handler instance.
func New(log *zap.Logger, pipe *pipeline.Pipeline, calls *lifecycle.Manager, v *validator.Validate) *Handler {
	return &Handler{log: log, pipe: pipe, calls: calls, validate: v}
}

// Routes mounts all endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Post("/webhooks/email", h.EmailWebhook)
	r.Post("/webhooks/call", h.CallWebhook)
	r.Post("/calls", h.ScheduleCall)
	r.Get("/calls/{callID}", h.GetCall)
	r.Post("/calls/{callID}/reschedule", h.RescheduleCall)
	r.Post("/calls/{callID}/cancel", h.CancelCall)
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// EmailWebhook runs the verify/transform/forward pipeline over an
// inbound email-provider webhook.
func (h *Handler) EmailWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "unreadable body",
		})
		return
	}

	env := model.WebhookEnvelope{
		Body:       body,
		Signature:  r.Header.Get(SignatureHeader),
		Timestamp:  r.Header.Get(TimestampHeader),
		ReceivedAt: time.Now().Unix(),
	}

	res := h.pipe.Process(r.Context(), env)
	if !res.Success {
		h.writeJSON(w, res.StatusCode, map[string]any{
			"success": false, "error": res.Error,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"webhookId": res.WebhookID,
		"eventType": res.EventType,
		"timestamp": res.Timestamp,
	})
}

// CallWebhook ingests a voice-provider lifecycle event.
func (h *Handler) CallWebhook(w http.ResponseWriter, r *http.Request) {
	var event model.CallProviderWebhook
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.log.Error("failed to decode call webhook", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "invalid request payload",
		})
		return
	}

	outcome, err := h.calls.ProcessProviderWebhook(r.Context(), event)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{
		"success": true,
		"callId":  outcome.CallID,
		"status":  outcome.Status,
	}
	if outcome.UnknownEvent {
		resp["result"] = "unknown_event"
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ScheduleCall schedules a new call through the lifecycle manager.
func (h *Handler) ScheduleCall(w http.ResponseWriter, r *http.Request) {
	var req model.ScheduleCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error("failed to decode schedule request", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "invalid request payload",
		})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("schedule validation failed", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "validation failed",
			"details": apperror.CustomValidationError(err),
		})
		return
	}

	record, err := h.calls.ScheduleCall(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"success":       true,
		"callId":        record.CallID,
		"status":        record.Status,
		"scheduledTime": record.ScheduledTime,
	})
}

// GetCall returns the stored record for one call.
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	record, err := h.calls.GetCall(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "call": record})
}

// RescheduleCall moves a scheduled call to a new time.
func (h *Handler) RescheduleCall(w http.ResponseWriter, r *http.Request) {
	var req model.RescheduleCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "invalid request payload",
		})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "validation failed",
			"details": apperror.CustomValidationError(err),
		})
		return
	}

	record, err := h.calls.RescheduleCall(r.Context(), chi.URLParam(r, "callID"), req.NewScheduledTime, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"callId":           record.CallID,
		"status":           record.Status,
		"newScheduledTime": record.ScheduledTime,
	})
}

// CancelCall cancels a scheduled call.
func (h *Handler) CancelCall(w http.ResponseWriter, r *http.Request) {
	var req model.CancelCallRequest
	if r.Body != nil {
		// A missing or empty body is fine; reason is optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	record, err := h.calls.CancelCall(r.Context(), chi.URLParam(r, "callID"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"callId":      record.CallID,
		"status":      record.Status,
		"cancelledAt": record.CancelledAt,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	ae := apperror.From(err)
	h.log.Warn("request failed",
		zap.String("kind", string(ae.Kind)),
		zap.Int("status", ae.HTTPStatus()),
		zap.Error(err))
	h.writeJSON(w, ae.HTTPStatus(), map[string]any{
		"success": false, "error": ae.Message,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("unable to write response stream", zap.Error(err))
	}
}
