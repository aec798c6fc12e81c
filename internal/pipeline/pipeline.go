// Package pipeline composes signature verification, payload
// transformation and downstream forwarding for inbound email webhooks.
package pipeline

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/forward"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
	"github.com/ruvnet/phone-agent-sub000/internal/transform"
	"github.com/ruvnet/phone-agent-sub000/internal/verify"
)

// Stage names a pipeline step for error reporting and debug logging.
type Stage string

const (
	StageSignature Stage = "signature"
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageForward   Stage = "forward"
)

// Result is the HTTP-shaped outcome of processing one webhook. On
// failure Stage and Error identify the step that short-circuited.
type Result struct {
	Success    bool
	StatusCode int
	WebhookID  string
	EventType  string
	Timestamp  int64
	Stage      Stage
	Error      string
}

// EventForwarder is the downstream delivery dependency.
type EventForwarder interface {
	Forward(ctx context.Context, event *model.CanonicalEvent) forward.Result
}

// Pipeline runs verify, validate, transform, forward in order,
// terminating on the first failure.
type Pipeline struct {
	log         *zap.Logger
	verifier    *verify.Verifier
	transformer *transform.Transformer
	forwarder   EventForwarder
	secret      string
	debug       bool
}

func New(verifier *verify.Verifier, transformer *transform.Transformer, forwarder EventForwarder, secret string, debug bool, log *zap.Logger) *Pipeline {
	return &Pipeline{
		log:         log,
		verifier:    verifier,
		transformer: transformer,
		forwarder:   forwarder,
		secret:      secret,
		debug:       debug,
	}
}

// Process runs the full pipeline over one envelope. Debug mode adds
// logging only; it never changes control flow.
func (p *Pipeline) Process(ctx context.Context, env model.WebhookEnvelope) Result {
	if p.debug {
		p.log.Debug("webhook received",
			zap.ByteString("body", env.Body),
			zap.String("timestamp", env.Timestamp))
	}

	vres := p.verifier.Verify(string(env.Body), env.Signature, env.Timestamp, p.secret)
	if p.debug {
		p.log.Debug("signature checked", zap.Bool("valid", vres.Valid), zap.String("error", vres.Err))
	}
	if !vres.Valid {
		p.log.Warn("webhook rejected: invalid signature", zap.String("reason", vres.Err))
		return Result{StatusCode: http.StatusUnauthorized, Stage: StageSignature, Error: "Invalid signature"}
	}

	if err := p.transformer.Validate(env.Body); err != nil {
		p.log.Warn("webhook rejected: invalid payload", zap.Error(err))
		return Result{StatusCode: http.StatusBadRequest, Stage: StageValidate, Error: err.Error()}
	}

	event, err := p.transformer.Transform(env.Body)
	if err != nil {
		p.log.Warn("webhook rejected: transform failed", zap.Error(err))
		return Result{StatusCode: http.StatusBadRequest, Stage: StageTransform, Error: err.Error()}
	}
	if p.debug {
		p.log.Debug("event transformed",
			zap.String("eventId", event.ID),
			zap.String("eventType", event.EventType),
			zap.String("sourceId", event.SourceID))
	}

	fres := p.forwarder.Forward(ctx, event)
	if p.debug {
		p.log.Debug("forward finished",
			zap.Bool("success", fres.Success),
			zap.Int("attempts", fres.Attempts),
			zap.Int("status", fres.StatusCode))
	}
	if !fres.Success {
		return Result{StatusCode: http.StatusBadGateway, Stage: StageForward, Error: "delivery failed: " + fres.Error}
	}

	return Result{
		Success:    true,
		StatusCode: http.StatusOK,
		WebhookID:  event.ID,
		EventType:  event.EventType,
		Timestamp:  event.Timestamp,
	}
}
