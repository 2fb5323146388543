// Package postgres implements the account store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"
	"guild-economy/internal/store/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxAttempts = 8
	initialRetryDelay  = 75 * time.Millisecond
	maxRetryDelay      = 1200 * time.Millisecond
)

type Store struct {
	Pool        *pgxpool.Pool
	maxAttempts int
}

var _ store.Store = (*Store)(nil)

// New connects a pool and pings it. maxAttempts bounds how many times a
// transaction is retried after a serialization failure; values < 1 use the
// default.
func New(ctx context.Context, dsn string, maxAttempts int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	s := &Store{Pool: pool, maxAttempts: maxAttempts}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return s, nil
}

// Migrate applies the embedded schema.
func (s *Store) Migrate() error {
	db := stdlib.OpenDBFromPool(s.Pool)
	defer db.Close()
	return migrations.UpPostgres(db)
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	retryDelay := initialRetryDelay
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("%w: begin: %v", economy.ErrStoreUnavailable, err)
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(ctx, &pgTx{tx: tx}); err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				if isSerializationError(err) {
					return err
				}
				return fmt.Errorf("%w: commit: %v", economy.ErrStoreUnavailable, err)
			}
			return nil
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		log.Debug().Int("attempt", attempt+1).Msg("serialization conflict, retrying")
		if attempt == s.maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return fmt.Errorf("%w: serialization retries exhausted", economy.ErrStoreUnavailable)
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
