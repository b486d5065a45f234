package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/latchflow/latchflow/internal/database/postgres"
	"github.com/latchflow/latchflow/internal/dbmigrate"
)

func main() {
	logger := slog.Default()
	cfg := postgres.LoadFromEnv()

	var manager *dbmigrate.Manager

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migration tool",
		Long:  "Applies and inspects the Postgres schema migrations latchflow's server depends on.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			m, err := dbmigrate.New(dbmigrate.Config{DSN: cfg.DSN(), Logger: logger})
			if err != nil {
				return fmt.Errorf("migrate: connect: %w", err)
			}
			manager = m
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if manager != nil {
				return manager.Close()
			}
			return nil
		},
	}

	root.AddCommand(upCommand(&manager), downCommand(&manager), statusCommand(&manager), versionCommand(&manager))

	if err := root.Execute(); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func upCommand(manager **dbmigrate.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := (*manager).Up(context.Background()); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func downCommand(manager **dbmigrate.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "down [version]",
		Short: "Roll back to version (default: roll back the most recent migration)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if len(args) == 0 {
				if err := (*manager).Down(ctx); err != nil {
					return err
				}
				fmt.Println("last migration rolled back")
				return nil
			}
			version, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version: %w", err)
			}
			if err := (*manager).DownTo(ctx, version); err != nil {
				return err
			}
			fmt.Printf("rolled back to version %d\n", version)
			return nil
		},
	}
}

func statusCommand(manager **dbmigrate.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied/pending state of every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*manager).Status(context.Background())
		},
	}
}

func versionCommand(manager **dbmigrate.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := (*manager).Version(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(version)
			return nil
		},
	}
}
