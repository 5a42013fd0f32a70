package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/agents"
	internalhttp "github.com/lameck50/backend-kami/internal/api/http"
	"github.com/lameck50/backend-kami/internal/api/http/handler"
	"github.com/lameck50/backend-kami/internal/api/ws"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/db"
	"github.com/lameck50/backend-kami/internal/enrollment"
	"github.com/lameck50/backend-kami/internal/eventbus"
	"github.com/lameck50/backend-kami/internal/geofences"
	grpcserver "github.com/lameck50/backend-kami/internal/grpc/server"
	"github.com/lameck50/backend-kami/internal/metrics"
	"github.com/lameck50/backend-kami/internal/notify"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/lameck50/backend-kami/internal/store/memory"
	"github.com/lameck50/backend-kami/internal/store/postgres"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/prometheus/client_golang/prometheus"
)

var AppVersion string

type store interface {
	tracking.Store
	geofences.Store
	users.Store
}

func main() {
	InitConfig()

	slog.Info("Kami Server", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Metrics.Enabled {
		metrics.Init(prometheus.DefaultRegisterer)
	}

	healthChecks := make(map[string]handler.HealthCheck)

	st, closeStore, err := openStore(ctx, healthChecks)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry := session.NewRegistry()
	userService := users.NewService(st)

	sinks, closeSinks := buildSinks(ctx, userService, healthChecks)
	defer closeSinks()

	busOpts := make([]eventbus.Option, 0, len(sinks))
	for _, sink := range sinks {
		busOpts = append(busOpts, eventbus.WithSink(sink))
	}
	bus := eventbus.New(registry, busOpts...)

	evaluator := tracking.NewEvaluator(st, bus, tracking.EvaluatorConfig{
		Workers:   config.Tracking.EvaluatorWorkers,
		QueueSize: config.Tracking.EvaluatorQueueSize,
	})
	monitor := tracking.NewInactivityMonitor(st, bus,
		tracking.WithInterval(config.Tracking.InactivityInterval),
		tracking.WithThreshold(config.Tracking.InactivityThreshold),
	)
	trackingService := tracking.NewService(st, bus, evaluator)

	bus.Start(ctx)
	evaluator.Start(ctx)
	monitor.Start(ctx)

	wsOpts := []ws.Option{ws.WithSendBuffer(config.Tracking.SessionBuffer)}
	if slices.Contains(config.Http.AllowOrigins, "*") {
		wsOpts = append(wsOpts, ws.WithCheckOrigin(func(*http.Request) bool { return true }))
	}

	authService := auth.NewService(st, config.JWT)

	var enrollmentService *enrollment.Service
	if config.Enrollment.Enabled {
		codes := enrollment.NewCodeStore(config.Enrollment.CodeTTL)
		go codes.StartCleanup(ctx, config.Enrollment.CleanupInterval)
		enrollmentService = enrollment.NewService(codes, userService, authService)
	}

	services := &internalhttp.Services{
		JWTSecret:       config.JWT.Secret,
		MetricsAPIKey:   config.Http.MetricsAPIKey,
		MetricsEnabled:  config.Metrics.Enabled,
		HealthChecks:    healthChecks,
		AuthService:     authService,
		UserService:     userService,
		TrackingService: trackingService,
		AgentService:    agents.NewService(st, bus),
		GeofenceService: geofences.NewService(st),
		Registry:        registry,
		WebSocket:       ws.NewHandler(config.JWT.Secret, registry, trackingService, wsOpts...),

		EnrollmentService: enrollmentService,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     config.Http.AllowOrigins,
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	var grpcSrv *grpcserver.Server
	if config.Grpc.Enabled {
		streamHandler := grpcserver.NewStreamHandler(config.JWT.Secret, registry, config.Tracking.SessionBuffer)
		grpcSrv, err = grpcserver.NewServer(config.Grpc.Port, &config.Grpc.TLS, streamHandler)
		if err != nil {
			slog.Error("Failed to create gRPC server", "error", err)
			os.Exit(1)
		}
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if grpcSrv != nil {
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errChan <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	// live streams only end once their sessions are closed
	registry.Stop()

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	if grpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := grpcSrv.StopWithTimeout(shutdownTimeout); err != nil {
				slog.Error("gRPC server shutdown error", "error", err)
			}
		}()
	}

	wg.Wait()

	monitor.Stop()
	evaluator.Stop()
	bus.Stop()

	slog.Info("Shutdown complete")
}

// openStore registers a "database" health check for drivers that have one.
func openStore(ctx context.Context, checks map[string]handler.HealthCheck) (store, func(), error) {
	switch config.Storage.Driver {
	case StorageDriverMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		st := memory.New()
		// same bootstrap account as the initial migration
		_, err := users.NewService(st).CreateUser(ctx, users.CreateParams{
			Name:     "Administrator",
			Email:    "admin@kami.local",
			Password: "changeme",
			Role:     string(users.RoleAdmin),
		})
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	case "", StorageDriverPostgres:
		if config.DB.Migrate {
			if err := db.RunMigrations(config.DB.Url, config.DB.Schema); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.InitDB(ctx, config.DB)
		if err != nil {
			return nil, nil, err
		}
		checks["database"] = pool.Ping
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}
}

// buildSinks wires the optional bus sinks. The alert dispatcher is always on
// and falls back to logging when no push channel is configured.
func buildSinks(ctx context.Context, directory notify.SupervisorDirectory, checks map[string]handler.HealthCheck) ([]eventbus.Sink, func()) {
	var (
		sinks     []eventbus.Sink
		notifiers []notify.Notifier
		closers   []func()
	)

	if config.Redis.Enabled {
		client, err := eventbus.NewRedisClient(ctx, config.Redis)
		if err != nil {
			slog.Error("Redis mirror disabled", "error", err)
		} else {
			sinks = append(sinks, eventbus.NewRedisMirror(client, config.Redis.Channel))
			closers = append(closers, func() { _ = client.Close() })
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			slog.Info("Redis mirror enabled", "addr", config.Redis.Addr)
		}
	}

	if config.NATS.Enabled {
		nc, err := notify.ConnectNATS(config.NATS)
		if err != nil {
			slog.Error("NATS notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, notify.NewNATSNotifier(nc, config.NATS.Subject))
			closers = append(closers, func() { _ = nc.Drain() })
			checks["nats"] = func(context.Context) error {
				if !nc.IsConnected() {
					return fmt.Errorf("nats status %s", nc.Status())
				}
				return nil
			}
		}
	}

	if config.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(config.Webhook.URL))
		slog.Info("Webhook notifications enabled")
	}

	if len(notifiers) == 0 {
		notifiers = append(notifiers, notify.LogNotifier{})
	}
	sinks = append(sinks, notify.NewAlertDispatcher(directory, notify.NewMulti(notifiers...)))

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
