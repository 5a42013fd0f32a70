package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/metrics"
)

type SupervisorDirectory interface {
	SupervisorTokens(ctx context.Context) (userIDs []string, tokens []string, err error)
}

// AlertDispatcher is an event bus sink that sends one notification per alert
// to every supervisor. Failures are logged and never returned to the bus.
type AlertDispatcher struct {
	directory SupervisorDirectory
	notifier  Notifier
}

func NewAlertDispatcher(directory SupervisorDirectory, notifier Notifier) *AlertDispatcher {
	return &AlertDispatcher{directory: directory, notifier: notifier}
}

func (d *AlertDispatcher) Name() string {
	return "alert-dispatcher"
}

func (d *AlertDispatcher) Handle(ctx context.Context, evt events.Event) error {
	n, ok := buildNotification(evt)
	if !ok {
		return nil
	}

	ids, tokens, err := d.directory.SupervisorTokens(ctx)
	if err != nil {
		slog.Error("Failed to load supervisor tokens", "event", evt.Type, "error", err)
		metrics.ObserveNotification(metrics.ResultError)
		return nil
	}
	if len(tokens) == 0 {
		slog.Debug("No supervisor device registered, skipping notification", "event", evt.Type)
		return nil
	}
	n.RecipientIDs = ids
	n.Tokens = tokens

	if err := d.notifier.Notify(ctx, n); err != nil {
		slog.Error("Failed to send notification", "event", evt.Type, "error", err)
		metrics.ObserveNotification(metrics.ResultError)
		return nil
	}

	metrics.ObserveNotification(metrics.ResultSuccess)
	return nil
}

func buildNotification(evt events.Event) (Notification, bool) {
	switch data := evt.Data.(type) {
	case events.GeofenceAlert:
		verb := "entered"
		if data.EventType == events.CrossingExit {
			verb = "left"
		}
		return Notification{
			Title: "Geofence alert",
			Body:  fmt.Sprintf("%s %s %s", data.AgentName, verb, data.FenceName),
			Data: map[string]string{
				"type":       "geofence_alert",
				"agent_id":   data.AgentID,
				"fence_id":   data.FenceID,
				"event_type": string(data.EventType),
			},
		}, true
	case events.GenericAlert:
		return Notification{
			Title: fmt.Sprintf("Alert from %s", data.AgentName),
			Body:  data.Message,
			Data: map[string]string{
				"type":       "alert",
				"agent_id":   data.AgentID,
				"agent_name": data.AgentName,
			},
		}, true
	default:
		return Notification{}, false
	}
}
