// Package notify posts voicemail notifications to a team chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// message is the webhook payload. The text field is the common denominator
// of Slack-compatible incoming webhooks.
type message struct {
	Text string `json:"text"`
}

// Client is an HTTP client for the team chat webhook.
type Client struct {
	httpClient *http.Client
	webhookURL string
}

// NewClient creates a chat webhook client. webhookURL may be empty, in which
// case Configured reports false and Send refuses to run.
func NewClient(webhookURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

// Configured returns true if a webhook URL is set.
func (c *Client) Configured() bool {
	return c.webhookURL != ""
}

// Send posts one text message to the webhook.
func (c *Client) Send(ctx context.Context, text string) error {
	if !c.Configured() {
		return fmt.Errorf("notify: no webhook url configured")
	}

	body, err := json.Marshal(message{Text: text})
	if err != nil {
		return fmt.Errorf("notify: marshalling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: sending request: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
