package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:17-alpine"

type Options struct {
	Image    string
	User     string
	Password string
	Database string
}

// Instance is a throwaway Postgres server reachable at DSN.
type Instance struct {
	DSN       string
	container *postgres.PostgresContainer
}

func Start(ctx context.Context, opts Options) (*Instance, error) {
	if opts.Image == "" {
		opts.Image = defaultImage
	}

	container, err := postgres.Run(ctx,
		opts.Image,
		postgres.WithUsername(opts.User),
		postgres.WithPassword(opts.Password),
		postgres.WithDatabase(opts.Database),
		testcontainers.WithWaitStrategy(
			// the server restarts once after running init scripts
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	return &Instance{DSN: dsn, container: container}, nil
}

func (i *Instance) Close(ctx context.Context) error {
	if err := i.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate postgres container: %w", err)
	}
	return nil
}
