package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var AppVersion string

var (
	dbURL    string
	dbSchema string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "kamictl",
	Short:         "Administration tool for the Kami tracking server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(logLevel)
	},
}

func init() {
	rootCmd.Version = AppVersion
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", envOr("DATABASE_URL", ""), "PostgreSQL connection URL")
	rootCmd.PersistentFlags().StringVar(&dbSchema, "db-schema", envOr("DB_SCHEMA", "public"), "PostgreSQL schema")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARNING", "Log level (ERROR, WARNING, INFO, DEBUG)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireDBURL() error {
	if dbURL == "" {
		return fmt.Errorf("--db-url or DATABASE_URL is required")
	}
	return nil
}
