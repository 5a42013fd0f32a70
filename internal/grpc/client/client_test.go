package client

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/cert"
	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/grpc/server"
	grpctls "github.com/lameck50/backend-kami/internal/grpc/tls"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecret = "grpc-test-secret"

func startServer(t *testing.T) (*session.Registry, []grpc.DialOption) {
	t.Helper()

	registry := session.NewRegistry()
	srv, err := server.NewServer(0, nil, server.NewStreamHandler(testSecret, registry, 8))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		registry.Stop()
		_ = srv.StopWithTimeout(time.Second)
	})

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	return registry, []grpc.DialOption{
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(auth.Config{Secret: testSecret}, userID, "Amani", "supervisor")
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, opts []grpc.DialOption) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSubscribe_RejectsBadToken(t *testing.T) {
	_, opts := startServer(t)
	conn := dial(t, opts)

	stream, err := Subscribe(context.Background(), conn, "garbage")
	require.NoError(t, err)

	err = stream.RecvMsg(new(structpb.Struct))
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSubscribe_ReceivesSessionEvents(t *testing.T) {
	registry, opts := startServer(t)
	conn := dial(t, opts)

	stream, err := Subscribe(context.Background(), conn, token(t, "sup-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("sup-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	s, _ := registry.Lookup("sup-1")
	require.True(t, s.Send(events.New(events.TypeGeofenceAlert, events.GeofenceAlert{
		AgentID:   "agent-1",
		FenceName: "Depot",
		EventType: events.CrossingEnter,
	})))

	msg := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(msg))

	env, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "geofence_alert", env.Event)

	var alert events.GeofenceAlert
	require.NoError(t, json.Unmarshal(env.Data, &alert))
	assert.Equal(t, "agent-1", alert.AgentID)
	assert.Equal(t, events.CrossingEnter, alert.EventType)
}

func TestSubscribe_SupersededStreamAborts(t *testing.T) {
	registry, opts := startServer(t)
	conn := dial(t, opts)

	first, err := Subscribe(context.Background(), conn, token(t, "sup-1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	registry.Register(session.NewSession("sup-1", 1))

	err = first.RecvMsg(new(structpb.Struct))
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestClientRun_DeliversAndStops(t *testing.T) {
	registry, opts := startServer(t)

	c := NewClient("passthrough:///bufnet", token(t, "sup-1"), nil, WithDialOptions(opts...))
	received := make(chan Envelope, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(env Envelope) { received <- env }) }()

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("sup-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	s, _ := registry.Lookup("sup-1")
	require.True(t, s.Send(events.New(events.TypeStatusChanged, events.StatusChanged{AgentID: "agent-1", From: "on_duty", To: "signal_lost"})))

	select {
	case env := <-received:
		assert.Equal(t, "status_changed", env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestIncreaseReconnectDelay(t *testing.T) {
	c := NewClient("localhost:0", "", nil)
	for i := 0; i < 10; i++ {
		c.increaseReconnectDelay()
	}
	assert.Equal(t, maxDelay, c.reconnectDelay)
}

func TestSubscribe_MutualTLSWithGeneratedCertificates(t *testing.T) {
	dir := t.TempDir()
	paths := cert.DefaultPaths(dir)
	tlsConfig := &server.TLSConfig{
		Enabled:      true,
		AutoGenerate: true,
		CertFile:     paths.ServerCert,
		KeyFile:      paths.ServerKey,
		CAFile:       paths.CACert,
		CAKeyFile:    paths.CAKey,
		ClientAuth:   "require",
		Hosts:        []string{"localhost"},
	}

	registry := session.NewRegistry()
	srv, err := server.NewServer(0, tlsConfig, server.NewStreamHandler(testSecret, registry, 8))
	require.NoError(t, err)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		registry.Stop()
		_ = srv.StopWithTimeout(time.Second)
	})

	bundle, err := cert.New(paths, nil)
	require.NoError(t, err)
	clientCert, clientKey, err := bundle.IssueClient("watcher")
	require.NoError(t, err)
	creds, err := grpctls.LoadClientCredentials(clientCert, clientKey, paths.CACert, "localhost")
	require.NoError(t, err)

	conn := dial(t, []grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(creds),
	})

	stream, err := Subscribe(context.Background(), conn, token(t, "sup-tls"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("sup-tls")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	s, _ := registry.Lookup("sup-tls")
	require.True(t, s.Send(events.New(events.TypeAlert, events.GenericAlert{Message: "over tls"})))

	msg := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(msg))
	assert.Equal(t, "alert", msg.Fields["event"].GetStringValue())
}
