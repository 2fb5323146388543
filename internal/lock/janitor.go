package lock

import (
	"context"
	"time"

	"guild-economy/internal/store"

	"github.com/rs/zerolog/log"
)

const sweepBatch = 100

// Sweep compensates and removes up to one batch of expired markers. It
// returns how many were cleared.
func (m *Manager) Sweep(ctx context.Context, st store.Store) (int, error) {
	cleared := 0
	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cleared = 0
		expired, err := tx.ExpiredLocks(ctx, m.clock.Now(), sweepBatch)
		if err != nil {
			return err
		}
		for _, l := range expired {
			if err := m.Abandon(ctx, tx, l); err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	return cleared, err
}

// StartJanitor sweeps expired markers every interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, st store.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.Sweep(ctx, st)
				if err != nil {
					log.Error().Err(err).Msg("lock janitor sweep failed")
					continue
				}
				if n > 0 {
					log.Info().Int("cleared", n).Msg("lock janitor swept expired locks")
				}
			}
		}
	}()
}
