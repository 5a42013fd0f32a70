package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/lameck50/backend-kami/internal/cert"
	grpctls "github.com/lameck50/backend-kami/internal/grpc/tls"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	ClientAuth string `mapstructure:"client_auth"`

	// AutoGenerate issues a self-signed CA and server certificate into the
	// paths above when they are missing.
	AutoGenerate bool     `mapstructure:"auto_generate"`
	CAKeyFile    string   `mapstructure:"ca_key_file"`
	Hosts        []string `mapstructure:"hosts"`
}

func (c *TLSConfig) CertPaths() cert.Paths {
	return cert.Paths{
		CACert:     c.CAFile,
		CAKey:      c.CAKeyFile,
		ServerCert: c.CertFile,
		ServerKey:  c.KeyFile,
	}
}

type Server struct {
	grpcServer    *grpc.Server
	streamHandler *StreamHandler
	port          int
	tlsConfig     *TLSConfig
}

func NewServer(port int, tlsConfig *TLSConfig, streamHandler *StreamHandler) (*Server, error) {
	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}

	if tlsConfig != nil && tlsConfig.Enabled {
		if tlsConfig.AutoGenerate {
			if _, err := cert.New(tlsConfig.CertPaths(), tlsConfig.Hosts); err != nil {
				return nil, err
			}
		}
		clientAuth, err := grpctls.ParseClientAuthType(tlsConfig.ClientAuth)
		if err != nil {
			return nil, err
		}
		creds, err := grpctls.LoadServerCredentials(tlsConfig.CertFile, tlsConfig.KeyFile, tlsConfig.CAFile, clientAuth)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		slog.Info("gRPC TLS enabled", "client_auth", tlsConfig.ClientAuth)
	} else {
		slog.Warn("gRPC TLS disabled")
	}

	s := &Server{
		grpcServer:    grpc.NewServer(opts...),
		streamHandler: streamHandler,
		port:          port,
		tlsConfig:     tlsConfig,
	}
	RegisterEventStreamServer(s.grpcServer, streamHandler)
	return s, nil
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	slog.Info("Starting gRPC server", "port", s.port)
	return s.Serve(lis)
}

// Serve blocks serving on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping gRPC server")

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		slog.Warn("gRPC server stop timeout, forcing shutdown")
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}
