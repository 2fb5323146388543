package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"guild-economy/internal/config"
	"guild-economy/internal/logging"
	"guild-economy/internal/store/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	root := &cobra.Command{
		Use:          "migrator",
		Short:        "Apply or roll back the ledger schema",
		SilenceUsage: true,
	}
	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all unless --steps is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
				return migrations.Down(m, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), migrations.Up)
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version=%d dirty=%t\n", v, dirty)
					return nil
				})
			},
		},
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
}

// withMigrator opens the configured database, builds a migrator for it and
// closes both afterwards.
func withMigrator(ctx context.Context, fn func(*migrate.Migrate) error) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	var (
		db *sql.DB
		m  *migrate.Migrate
	)
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		db = stdlib.OpenDBFromPool(pool)
		m, err = migrations.Postgres(db)
		if err != nil {
			_ = db.Close()
			return err
		}
	case "sqlite":
		db, err = sql.Open("sqlite", "file:"+cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		m, err = migrations.SQLite(db)
		if err != nil {
			_ = db.Close()
			return err
		}
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	defer db.Close()

	if err := fn(m); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("migration complete")
	return nil
}
