// Package provider is the HTTP client for the voice-call provider API.
// Provider errors are surfaced typed and never retried here: scheduling
// is not idempotent, so retry policy belongs to the caller.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ruvnet/phone-agent-sub000/internal/apperror"
	"github.com/ruvnet/phone-agent-sub000/internal/config"
)

// CallProvider is the surface the lifecycle manager drives.
type CallProvider interface {
	ScheduleCall(ctx context.Context, req ScheduleRequest) (*ScheduleResponse, error)
	RescheduleCall(ctx context.Context, callID, newTime string) error
	CancelCall(ctx context.Context, callID string) error
}

// ScheduleRequest is the provider-side call description.
type ScheduleRequest struct {
	PhoneNumber     string `json:"phone_number"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"max_duration,omitempty"`
	AgentID         string `json:"agent_id,omitempty"`
	Task            string `json:"task,omitempty"`
}

// ScheduleResponse carries the provider-assigned call id.
type ScheduleResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// Client talks to the provider's REST API.
type Client struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) ScheduleCall(ctx context.Context, req ScheduleRequest) (*ScheduleResponse, error) {
	if req.AgentID == "" {
		req.AgentID = c.cfg.AgentID
	}
	if req.DurationMinutes == 0 || req.DurationMinutes > c.cfg.MaxCallDuration {
		req.DurationMinutes = c.cfg.MaxCallDuration
	}

	body, err := c.post(ctx, "/v1/calls", req)
	if err != nil {
		return nil, err
	}

	var sr ScheduleResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, apperror.Provider(0, "provider returned undecodable schedule response", err)
	}
	if sr.CallID == "" {
		return nil, apperror.Provider(0, "provider response missing call_id", nil)
	}
	return &sr, nil
}

func (c *Client) RescheduleCall(ctx context.Context, callID, newTime string) error {
	payload := map[string]string{"scheduled_time": newTime}
	_, err := c.post(ctx, "/v1/calls/"+callID+"/reschedule", payload)
	return err
}

func (c *Client) CancelCall(ctx context.Context, callID string) error {
	_, err := c.post(ctx, "/v1/calls/"+callID+"/cancel", nil)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = b
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperror.Provider(0, "provider unreachable", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Provider(resp.StatusCode, providerMessage(resp.StatusCode), fmt.Errorf("provider status %d", resp.StatusCode))
	}
	return body, nil
}

// providerMessage summarizes upstream failures without passing the
// provider's body through to callers.
func providerMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "provider rate limit exceeded"
	case http.StatusUnauthorized:
		return "provider rejected credentials"
	case http.StatusBadRequest:
		return "provider rejected the call request"
	default:
		return fmt.Sprintf("provider request failed with status %d", status)
	}
}
