package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// Webhook posts alerts as JSON to an HTTP endpoint (chat-ops incoming hooks).
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook returns a Webhook posting to url with a 10s request timeout.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Channel names the webhook channel in config and metrics.
func (w *Webhook) Channel() string { return "webhook" }

type webhookPayload struct {
	Content  string `json:"content"`
	Origin   uint32 `json:"origin"`
	Code     uint8  `json:"code"`
	Type     string `json:"type"`
	Serial   uint32 `json:"serial"`
	Occurred string `json:"occurred_at"`
}

// Notify posts one alert. A response status of 300 or above is an error.
func (w *Webhook) Notify(ctx context.Context, ev event.Event) error {
	data, err := json.Marshal(webhookPayload{
		Content:  Subject + "\n" + Body(ev),
		Origin:   ev.Origin,
		Code:     uint8(ev.Type),
		Type:     ev.Type.String(),
		Serial:   ev.Serial,
		Occurred: ev.Time().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status=%d", resp.StatusCode)
	}
	return nil
}
