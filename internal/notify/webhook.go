package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier POSTs notifications as JSON to a push gateway.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg Notification) error {
	if n == nil || n.url == "" {
		return &NotificationError{Channel: "webhook", Err: errors.New("empty url")}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return &NotificationError{Channel: "webhook", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return &NotificationError{Channel: "webhook", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &NotificationError{Channel: "webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &NotificationError{Channel: "webhook", Err: fmt.Errorf("non-2xx status %d", resp.StatusCode)}
	}
	return nil
}
