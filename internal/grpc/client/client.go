package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lameck50/backend-kami/internal/grpc/server"
	grpctls "github.com/lameck50/backend-kami/internal/grpc/tls"
)

const (
	initialDelay  = 1 * time.Second
	maxDelay      = 30 * time.Second
	backoffFactor = 2
)

// Envelope is one event received on the stream.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

type Handler func(Envelope)

type TLSConfig struct {
	Enabled            bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerNameOverride string
}

type Option func(*Client)

// WithDialOptions replaces the transport dial options derived from TLSConfig.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOpts = opts
	}
}

// Client subscribes to the server event stream and reconnects with
// exponential backoff until its context ends.
type Client struct {
	serverAddr string
	token      string
	tlsConfig  *TLSConfig
	dialOpts   []grpc.DialOption

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
}

func NewClient(serverAddr, token string, tlsConfig *TLSConfig, opts ...Option) *Client {
	c := &Client{
		serverAddr:        serverAddr,
		token:             token,
		tlsConfig:         tlsConfig,
		reconnectDelay:    initialDelay,
		maxReconnectDelay: maxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run blocks delivering events to handle until ctx is cancelled.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		err := c.subscribe(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			slog.Info("Server closed stream")
		} else {
			slog.Error("Stream error", "error", err, "retry_in", c.reconnectDelay)
		}

		select {
		case <-time.After(c.reconnectDelay):
			c.increaseReconnectDelay()
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) subscribe(ctx context.Context, handle Handler) error {
	opts, err := c.transportOptions()
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(c.serverAddr, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial server: %w", err)
	}
	defer conn.Close()

	stream, err := Subscribe(ctx, conn, c.token)
	if err != nil {
		return err
	}
	slog.Info("Subscribed to event stream", "address", c.serverAddr)

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}
		c.reconnectDelay = initialDelay

		env, err := decode(msg)
		if err != nil {
			slog.Warn("Dropping undecodable event", "error", err)
			continue
		}
		handle(env)
	}
}

// Subscribe opens a Subscribe stream on conn. The caller reads
// *structpb.Struct messages with RecvMsg.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, token string) (grpc.ClientStream, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

	desc := &server.EventStreamServiceDesc.Streams[0]
	stream, err := conn.NewStream(ctx, desc, server.SubscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("failed to send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send: %w", err)
	}
	return stream, nil
}

func (c *Client) transportOptions() ([]grpc.DialOption, error) {
	if len(c.dialOpts) > 0 {
		return c.dialOpts, nil
	}

	if c.tlsConfig != nil && c.tlsConfig.Enabled {
		creds, err := grpctls.LoadClientCredentials(
			c.tlsConfig.CertFile,
			c.tlsConfig.KeyFile,
			c.tlsConfig.CAFile,
			c.tlsConfig.ServerNameOverride,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
	}

	slog.Warn("Using insecure connection (TLS disabled)")
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
}

func (c *Client) increaseReconnectDelay() {
	c.reconnectDelay = c.reconnectDelay * backoffFactor
	if c.reconnectDelay > c.maxReconnectDelay {
		c.reconnectDelay = c.maxReconnectDelay
	}
}

func decode(msg *structpb.Struct) (Envelope, error) {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
