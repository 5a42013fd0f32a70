package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Notification is one push message batched to a set of recipients.
type Notification struct {
	RecipientIDs []string          `json:"recipient_ids"`
	Tokens       []string          `json:"tokens"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationError wraps a delivery failure. Callers log it and move on.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// LogNotifier writes notifications to the log. It is the fallback when no
// push gateway is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info("Notification",
		"title", n.Title,
		"body", n.Body,
		"recipients", len(n.RecipientIDs),
		"tokens", len(n.Tokens))
	return nil
}

// Multi forwards to every notifier and joins their errors.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
