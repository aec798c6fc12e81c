// Package forward delivers canonical events to the configured downstream
// target with bounded retries and dead-letter persistence.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/config"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
	"github.com/ruvnet/phone-agent-sub000/internal/storage"
)

// FailedKeyPrefix namespaces dead-lettered events in storage.
const FailedKeyPrefix = "failed:"

// Result reports the outcome of a delivery, including how many attempts
// were made and the last HTTP status observed (zero on network failure).
type Result struct {
	Success    bool
	StatusCode int
	Attempts   int
	Error      string
}

// Forwarder posts events to one target URL. Retry delays grow
// geometrically (base, 3x, 9x, ...) capped at the configured maximum.
type Forwarder struct {
	log    *zap.Logger
	cfg    config.ForwardConfig
	client *http.Client
	store  storage.Store
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Forwarder. store may be nil when failed-payload
// persistence is disabled.
func New(cfg config.ForwardConfig, store storage.Store, log *zap.Logger) *Forwarder {
	return &Forwarder{
		log:    log,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		store:  store,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Forward delivers event, retrying transient failures until the attempt
// budget is spent. Exhausted events are dead-lettered when enabled. The
// context aborts remaining retries when the caller goes away.
func (f *Forwarder) Forward(ctx context.Context, event *model.CanonicalEvent) Result {
	payload, err := json.Marshal(event)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal event: %v", err)}
	}

	var lastStatus int
	var lastErr string
	attempts := 0

	for attempt := 0; attempt < f.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, f.backoffDelay(attempt-1)); err != nil {
				lastErr = "delivery aborted: " + err.Error()
				break
			}
		}

		attempts++
		status, err := f.attempt(ctx, payload)
		lastStatus = status
		if err == nil && status >= 200 && status < 300 {
			f.log.Info("event forwarded",
				zap.String("eventId", event.ID),
				zap.String("eventType", event.EventType),
				zap.Int("status", status),
				zap.Int("attempts", attempts))
			return Result{Success: true, StatusCode: status, Attempts: attempts}
		}

		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = fmt.Sprintf("target returned status %d", status)
		}
		f.log.Warn("forward attempt failed",
			zap.String("eventId", event.ID),
			zap.Int("attempt", attempts),
			zap.Int("status", status),
			zap.String("error", lastErr))

		if !f.retryable(status, err) {
			break
		}
	}

	f.deadLetter(ctx, event)
	return Result{StatusCode: lastStatus, Attempts: attempts, Error: lastErr}
}

func (f *Forwarder) attempt(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TargetURL, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.AuthToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// retryable classifies failures: network errors and 5xx are transient,
// 4xx is a permanent client error unless RetryOn4xx is set.
func (f *Forwarder) retryable(status int, err error) bool {
	if err != nil {
		return true
	}
	if status >= 500 {
		return true
	}
	if status >= 400 {
		return f.cfg.RetryOn4xx
	}
	return true
}

func (f *Forwarder) backoffDelay(attempt int) time.Duration {
	delay := f.cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 3
		if f.cfg.MaxDelay > 0 && delay >= f.cfg.MaxDelay {
			return f.cfg.MaxDelay
		}
	}
	if f.cfg.MaxDelay > 0 && delay > f.cfg.MaxDelay {
		delay = f.cfg.MaxDelay
	}
	return delay
}

func (f *Forwarder) deadLetter(ctx context.Context, event *model.CanonicalEvent) {
	if !f.cfg.StoreFailedPayloads || f.store == nil {
		return
	}
	key := FailedKeyPrefix + event.ID
	if err := f.store.Set(ctx, key, event, 0); err != nil {
		f.log.Error("failed to persist dead-lettered event",
			zap.String("eventId", event.ID), zap.Error(err))
		return
	}
	f.log.Info("event dead-lettered for replay",
		zap.String("eventId", event.ID), zap.String("key", key))
}

// ErrFromResult converts a failed Result into a typed forward error.
func ErrFromResult(r Result) error {
	if r.Success {
		return nil
	}
	return apperror.Forward(r.StatusCode, r.Error, nil)
}
