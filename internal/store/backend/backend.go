// Package backend opens the configured store driver.
package backend

import (
	"context"
	"fmt"

	"guild-economy/internal/config"
	"guild-economy/internal/store"
	"guild-economy/internal/store/postgres"
	"guild-economy/internal/store/sqlite"

	"github.com/rs/zerolog/log"
)

// Open connects to the store selected by cfg.StoreDriver. Postgres schemas
// are migrated only when AutoMigrate is set; SQLite always migrates on open.
func Open(ctx context.Context, cfg config.ServerConfig, retryAttempts int) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		st, err := postgres.New(ctx, cfg.PostgresDSN, retryAttempts)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(); err != nil {
				st.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		log.Info().Str("driver", "postgres").Bool("auto_migrate", cfg.AutoMigrate).Msg("store opened")
		return st, nil
	case "sqlite":
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("store opened")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
