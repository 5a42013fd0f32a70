package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migration is the state of one embedded migration.
type Migration struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// RunMigrations applies the embedded goose migrations inside schema.
func RunMigrations(dbURL string, schema string) error {
	ctx := context.Background()
	provider, closeDB, err := openMigrator(ctx, dbURL, schema)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	slog.Info("Database migrations completed", "applied", len(results))
	return nil
}

// RollbackMigration reverts the most recent migration and returns its version.
func RollbackMigration(ctx context.Context, dbURL string, schema string) (int64, error) {
	provider, closeDB, err := openMigrator(ctx, dbURL, schema)
	if err != nil {
		return 0, err
	}
	defer closeDB()

	result, err := provider.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to roll back migration: %w", err)
	}
	slog.Info("Rolled back migration", "version", result.Source.Version)
	return result.Source.Version, nil
}

func MigrationStatus(ctx context.Context, dbURL string, schema string) ([]Migration, error) {
	provider, closeDB, err := openMigrator(ctx, dbURL, schema)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	out := make([]Migration, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, Migration{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

func openMigrator(ctx context.Context, dbURL string, schema string) (*goose.Provider, func(), error) {
	if schema == "" {
		schema = "public"
	}

	connConfig, err := pgx.ParseConfig(dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	// migrations are unqualified, so every pooled connection must resolve
	// them inside schema
	connConfig.RuntimeParams["search_path"] = schema
	db := stdlib.OpenDB(*connConfig)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := ensureSchemaExists(ctx, db, schema); err != nil {
		db.Close()
		return nil, nil, err
	}

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return provider, func() { db.Close() }, nil
}

func ensureSchemaExists(ctx context.Context, db *sql.DB, schema string) error {
	query := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize()
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	slog.Debug("Schema is ready", "schema", schema)
	return nil
}
