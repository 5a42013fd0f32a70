package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultNATSSubject = "kami.notifications"

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Subject string `mapstructure:"subject"`
}

func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("kami-server"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	slog.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return nc, nil
}

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier hands notifications to a push gateway subscribed on a NATS
// subject. Delivery to devices is the gateway's concern.
type NATSNotifier struct {
	conn    natsPublisher
	subject string
}

func NewNATSNotifier(conn natsPublisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

func (n *NATSNotifier) Notify(_ context.Context, msg Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return &NotificationError{Channel: "nats", Err: err}
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return &NotificationError{Channel: "nats", Err: err}
	}
	return nil
}
