package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lameck50/backend-kami/internal/api/http/middleware"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/lameck50/backend-kami/internal/tracking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// EventSendMessage is the only event a client may send.
	EventSendMessage = "sendMessage"
)

type MessageSender interface {
	SendMessage(ctx context.Context, from tracking.Identity, recipientID, message string) (bool, error)
}

// Inbound is a client frame.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type SendMessageData struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

type Option func(*Handler)

func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		h.buffer = n
	}
}

// WithCheckOrigin replaces the default same-origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// Handler upgrades authenticated requests to a websocket bound to a live
// session. The caller is identified by the JWT passed as ?token= or as a
// bearer Authorization header.
type Handler struct {
	secret   string
	registry *session.Registry
	sender   MessageSender
	buffer   int
	upgrader websocket.Upgrader
}

func NewHandler(secret string, registry *session.Registry, sender MessageSender, opts ...Option) *Handler {
	h := &Handler{
		secret:   secret,
		registry: registry,
		sender:   sender,
		buffer:   session.DefaultSendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(h.secret, token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}

	who := tracking.Identity{ID: claims.UserID, Name: claims.Name, Role: claims.Role}
	s := session.NewSession(who.ID, h.buffer)
	h.registry.Register(s)
	defer h.registry.Unregister(s)

	slog.Info("Websocket connected", "user_id", who.ID, "remote_addr", r.RemoteAddr)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		h.writeLoop(conn, s)
	}()

	h.readLoop(r.Context(), conn, s, who)
	s.Close()
	<-writeDone

	slog.Info("Websocket disconnected", "user_id", who.ID)
}

// writeLoop is the only writer of data frames on conn.
func (h *Handler) writeLoop(conn *websocket.Conn, s *session.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case evt := <-s.SendCh:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				slog.Debug("Websocket write failed", "session_id", s.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, s *session.Session, who tracking.Identity) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := conn.ReadJSON(&in); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.reply(s, "malformed frame")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Websocket closed unexpectedly", "session_id", s.ID, "error", err)
			}
			return
		}

		switch in.Event {
		case EventSendMessage:
			h.handleSendMessage(ctx, s, who, in.Data)
		default:
			h.reply(s, "unknown event "+in.Event)
		}
	}
}

func (h *Handler) handleSendMessage(ctx context.Context, s *session.Session, who tracking.Identity, raw json.RawMessage) {
	var data SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		h.reply(s, "malformed sendMessage")
		return
	}

	if _, err := h.sender.SendMessage(ctx, who, data.RecipientID, data.Message); err != nil {
		var validation *tracking.ValidationError
		if errors.As(err, &validation) {
			h.reply(s, validation.Error())
			return
		}
		slog.Error("Failed to relay message", "session_id", s.ID, "error", err)
	}
}

// reply is best effort; it is dropped when the session buffer is full.
func (h *Handler) reply(s *session.Session, message string) {
	s.Send(events.New(events.TypeError, events.ErrorNotice{Message: message}))
}
