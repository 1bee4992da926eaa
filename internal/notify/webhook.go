package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jfmyers9/encore/internal/store"
)

// WebhookRequestBody is the JSON payload posted to a webhook. Content suits
// Discord, Body suits most other receivers.
type WebhookRequestBody struct {
	Content string `json:"content"`
	Body    string `json:"body"`
}

// Webhook posts notifications to a URL.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier. A nil client uses a 10s timeout.
func NewWebhook(url string, httpClient *http.Client) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url not set")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, httpClient: httpClient}, nil
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, user store.User, concerts []store.Concert) error {
	if len(concerts) == 0 {
		return nil
	}

	text := FormatConcerts(concerts)
	if user.Username != "" {
		text = "@" + user.Username + " " + text
	}
	body, err := json.Marshal(WebhookRequestBody{Content: text, Body: text})
	if err != nil {
		return fmt.Errorf("error encoding webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
