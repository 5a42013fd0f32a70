package systemtest

import (
	"context"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lameck50/backend-kami/internal/agents"
	internalhttp "github.com/lameck50/backend-kami/internal/api/http"
	"github.com/lameck50/backend-kami/internal/api/http/handler"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/db"
	"github.com/lameck50/backend-kami/internal/eventbus"
	"github.com/lameck50/backend-kami/internal/geofences"
	"github.com/lameck50/backend-kami/internal/session"
	"github.com/lameck50/backend-kami/internal/store/postgres"
	"github.com/lameck50/backend-kami/internal/tracking"
	"github.com/lameck50/backend-kami/internal/users"
	pgcontainer "github.com/lameck50/backend-kami/systemtest/postgres"
	"github.com/lameck50/backend-kami/systemtest/tests"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "systemtest-secret"

func TestSystemIntegration(t *testing.T) {
	if os.Getenv("KAMI_SYSTEMTEST") != "1" {
		t.Skip("set KAMI_SYSTEMTEST=1 to run against a Postgres container")
	}

	ctx := context.Background()
	pg, err := pgcontainer.Start(ctx, pgcontainer.Options{User: "kami", Password: "kami", Database: "kami"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close(ctx) })
	dsn := pg.DSN

	require.NoError(t, db.RunMigrations(dsn, "kami"))
	migrations, err := db.MigrationStatus(ctx, dsn, "kami")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for _, m := range migrations {
		require.True(t, m.Applied, m.Path)
	}
	// applying twice is a no-op
	require.NoError(t, db.RunMigrations(dsn, "kami"))
	pool, err := db.InitDB(ctx, db.Config{Url: dsn, Schema: "kami"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := postgres.New(pool)
	registry := session.NewRegistry()
	bus := eventbus.New(registry)
	evaluator := tracking.NewEvaluator(store, bus, tracking.EvaluatorConfig{Workers: 2})
	evaluator.Start(ctx)
	t.Cleanup(evaluator.Stop)

	jwtConfig := auth.Config{Secret: jwtSecret}
	services := &internalhttp.Services{
		JWTSecret:       jwtSecret,
		HealthChecks:    map[string]handler.HealthCheck{"database": pool.Ping},
		AuthService:     auth.NewService(store, jwtConfig),
		UserService:     users.NewService(store),
		TrackingService: tracking.NewService(store, bus, evaluator),
		AgentService:    agents.NewService(store, bus),
		GeofenceService: geofences.NewService(store),
		Registry:        registry,
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, services)

	env := &tests.Env{
		Router:    engine,
		Store:     store,
		Registry:  registry,
		JWTSecret: jwtSecret,
	}

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, env) })
	t.Run("Login", func(t *testing.T) { tests.TestLogin(t, env) })
	t.Run("Store", func(t *testing.T) { tests.TestStore(t, env) })
	t.Run("Tracking", func(t *testing.T) { tests.TestTracking(t, env) })
}
