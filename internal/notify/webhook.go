package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts transitions as JSON to an HTTP endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhook creates a WebhookSender for url.
func NewWebhook(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: sendTimeout},
	}
}

type webhookPayload struct {
	Host       int    `json:"host"`
	Label      string `json:"label"`
	Status     string `json:"status"`
	Text       string `json:"text"`
	Channel    string `json:"channel,omitempty"`
	NotifiedAt string `json:"notified_at"`
	Source     string `json:"source"`
}

// Send posts msg. Any non-2xx response is a delivery failure.
func (w *WebhookSender) Send(ctx context.Context, channel string, msg Message) error {
	n := msg.Notification
	payload := webhookPayload{
		Host:       n.Host,
		Label:      Label(n.Host),
		Status:     string(n.Outcome),
		Text:       msg.Text,
		Channel:    channel,
		NotifiedAt: n.Timestamp.UTC().Format(time.RFC3339),
		Source:     "hostwatch",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
