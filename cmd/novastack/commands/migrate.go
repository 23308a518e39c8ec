package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/novastack/service_layer/internal/platform/migrations"
)

var errNoDatabase = errors.New("DATABASE_URL not configured")

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(cfg.Database.DSN) == "" {
				return errNoDatabase
			}
			db, err := openDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := migrations.Down(db, steps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 for all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if strings.TrimSpace(cfg.Database.DSN) == "" {
					return errNoDatabase
				}
				db, err := openDB(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := migrations.Up(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				if strings.TrimSpace(cfg.Database.DSN) == "" {
					return errNoDatabase
				}
				db, err := openDB(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				version, dirty, err := migrations.Version(db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}
