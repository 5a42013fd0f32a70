package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lameck50/backend-kami/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := requireDBURL(); err != nil {
		return err
	}
	if err := db.RunMigrations(dbURL, dbSchema); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	if err := requireDBURL(); err != nil {
		return err
	}
	version, err := db.RollbackMigration(cmd.Context(), dbURL, dbSchema)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %05d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	if err := requireDBURL(); err != nil {
		return err
	}
	migrations, err := db.MigrationStatus(cmd.Context(), dbURL, dbSchema)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, m := range migrations {
		state, appliedAt := "pending", "-"
		if m.Applied {
			state = "applied"
			appliedAt = m.AppliedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%05d\t%s\t%s\t%s\n", m.Version, state, appliedAt, m.Path)
	}
	return w.Flush()
}
