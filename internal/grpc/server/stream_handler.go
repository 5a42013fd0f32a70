package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lameck50/backend-kami/internal/api/http/middleware"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamHandler binds each Subscribe stream to a live session for the
// caller identified by the bearer token in the "authorization" metadata.
type StreamHandler struct {
	secret   string
	registry *session.Registry
	buffer   int
}

func NewStreamHandler(secret string, registry *session.Registry, buffer int) *StreamHandler {
	return &StreamHandler{
		secret:   secret,
		registry: registry,
		buffer:   buffer,
	}
}

func (sh *StreamHandler) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	claims, err := sh.authenticate(stream)
	if err != nil {
		return err
	}

	s := session.NewSession(claims.UserID, sh.buffer)
	sh.registry.Register(s)
	defer sh.registry.Unregister(s)

	slog.Info("Event stream connected", "user_id", claims.UserID)
	defer slog.Info("Event stream disconnected", "user_id", claims.UserID)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			return status.Error(codes.Aborted, "session superseded")
		case evt := <-s.SendCh:
			msg, err := toStruct(evt)
			if err != nil {
				slog.Error("Failed to encode event", "session_id", s.ID, "event", evt.Type, "error", err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				slog.Debug("Event stream send failed", "session_id", s.ID, "error", err)
				return err
			}
		}
	}
}

func (sh *StreamHandler) authenticate(stream grpc.ServerStream) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(stream.Context())
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization")
	}
	token, ok := middleware.BearerToken(values[0])
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization")
	}

	claims, err := auth.ValidateToken(sh.secret, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return claims, nil
}

func toStruct(evt events.Event) (*structpb.Struct, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("convert event: %w", err)
	}
	return msg, nil
}
