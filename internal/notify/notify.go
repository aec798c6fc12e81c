// Package notify sends call confirmation emails through the email
// provider. Notification failures are logged and never fail the
// lifecycle operation that triggered them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ruvnet/phone-agent-sub000/internal/config"
	"github.com/ruvnet/phone-agent-sub000/internal/model"
)

// Notifier is the side-effect collaborator of the lifecycle manager.
type Notifier interface {
	CallScheduled(ctx context.Context, record *model.CallRecord)
	CallRescheduled(ctx context.Context, record *model.CallRecord)
	CallCancelled(ctx context.Context, record *model.CallRecord)
}

// New selects the email notifier when an API key is configured, a
// log-only notifier otherwise.
func New(cfg config.EmailConfig, log *zap.Logger) Notifier {
	if cfg.APIKey == "" {
		return &logNotifier{log: log}
	}
	return &emailNotifier{
		cfg:    cfg,
		log:    log,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type logNotifier struct {
	log *zap.Logger
}

func (n *logNotifier) CallScheduled(_ context.Context, r *model.CallRecord) {
	n.log.Info("notification skipped: no email provider configured",
		zap.String("callId", r.CallID), zap.String("kind", "scheduled"))
}

func (n *logNotifier) CallRescheduled(_ context.Context, r *model.CallRecord) {
	n.log.Info("notification skipped: no email provider configured",
		zap.String("callId", r.CallID), zap.String("kind", "rescheduled"))
}

func (n *logNotifier) CallCancelled(_ context.Context, r *model.CallRecord) {
	n.log.Info("notification skipped: no email provider configured",
		zap.String("callId", r.CallID), zap.String("kind", "cancelled"))
}

type emailNotifier struct {
	cfg    config.EmailConfig
	log    *zap.Logger
	client *http.Client
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (n *emailNotifier) CallScheduled(ctx context.Context, r *model.CallRecord) {
	n.send(ctx, r,
		fmt.Sprintf("Call scheduled: %s", r.Topic),
		fmt.Sprintf("Your call is scheduled for %s.", r.ScheduledTime))
}

func (n *emailNotifier) CallRescheduled(ctx context.Context, r *model.CallRecord) {
	n.send(ctx, r,
		fmt.Sprintf("Call rescheduled: %s", r.Topic),
		fmt.Sprintf("Your call has been moved from %s to %s.", r.PreviousScheduledTime, r.ScheduledTime))
}

func (n *emailNotifier) CallCancelled(ctx context.Context, r *model.CallRecord) {
	n.send(ctx, r,
		fmt.Sprintf("Call cancelled: %s", r.Topic),
		fmt.Sprintf("Your call scheduled for %s has been cancelled.", r.ScheduledTime))
}

func (n *emailNotifier) send(ctx context.Context, r *model.CallRecord, subject, text string) {
	if r.RecipientEmail == "" {
		return
	}

	body, err := json.Marshal(emailRequest{
		From:    n.cfg.From,
		To:      []string{r.RecipientEmail},
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		n.log.Error("failed to build notification", zap.String("callId", r.CallID), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL+"/emails", bytes.NewReader(body))
	if err != nil {
		n.log.Error("failed to build notification request", zap.String("callId", r.CallID), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notification send failed", zap.String("callId", r.CallID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.log.Warn("notification rejected by email provider",
			zap.String("callId", r.CallID), zap.Int("status", resp.StatusCode))
		return
	}
	n.log.Info("notification sent", zap.String("callId", r.CallID), zap.String("subject", subject))
}
