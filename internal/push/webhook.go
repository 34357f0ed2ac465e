package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// WebhookSender POSTs warning events to an HTTP endpoint, typically the
// marketplace app's internal notification route.
type WebhookSender struct {
	url        string
	authKey    string // sent as X-Webhook-Key; empty = no auth header
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSender creates a webhook sender. Returns nil if url is empty
// (webhook delivery disabled).
func NewWebhookSender(url, authKey string, logger *slog.Logger) *WebhookSender {
	if url == "" {
		return nil
	}
	return &WebhookSender{
		url:     url,
		authKey: authKey,
		httpClient: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Send posts one warning event. No-op on a nil sender.
func (s *WebhookSender) Send(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authKey != "" {
		req.Header.Set("X-Webhook-Key", s.authKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
