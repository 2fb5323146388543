package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Acquire takes the in-flight marker for k. A live marker rejects with
// economy.ErrActionInProgress. An expired marker is compensated through the
// abandon hook and replaced in the same transaction.
func (m *Manager) Acquire(ctx context.Context, tx store.Tx, k economy.Key, ttl time.Duration, escrow int64, payload map[string]any) (store.ActionLock, error) {
	now := m.clock.Now()
	existing, err := tx.GetLock(ctx, k.Realm, k.Account, k.Action)
	switch {
	case err == nil:
		if existing.ExpiresAt.After(now) {
			return store.ActionLock{}, fmt.Errorf("%w: %s held until %s", economy.ErrActionInProgress, k, existing.ExpiresAt.Format(time.RFC3339))
		}
		if err := m.abandon(ctx, tx, existing); err != nil {
			return store.ActionLock{}, err
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return store.ActionLock{}, fmt.Errorf("read lock %s: %w", k, err)
	}
	l := store.ActionLock{
		Realm:      k.Realm,
		Account:    k.Account,
		Action:     k.Action,
		Token:      uuid.NewString(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Escrow:     escrow,
		Payload:    payload,
	}
	if err := tx.PutLock(ctx, l); err != nil {
		return store.ActionLock{}, fmt.Errorf("write lock %s: %w", k, err)
	}
	return l, nil
}

// Lookup returns the live marker for k if token matches. Expired or foreign
// markers report economy.ErrPendingNotFound.
func (m *Manager) Lookup(ctx context.Context, tx store.Tx, k economy.Key, token string) (store.ActionLock, error) {
	l, err := tx.GetLock(ctx, k.Realm, k.Account, k.Action)
	if errors.Is(err, store.ErrNotFound) {
		return store.ActionLock{}, economy.ErrPendingNotFound
	}
	if err != nil {
		return store.ActionLock{}, fmt.Errorf("read lock %s: %w", k, err)
	}
	if l.Token != token {
		return store.ActionLock{}, economy.ErrPendingNotFound
	}
	if !l.ExpiresAt.After(m.clock.Now()) {
		return l, fmt.Errorf("%w: expired at %s", economy.ErrPendingNotFound, l.ExpiresAt.Format(time.RFC3339))
	}
	return l, nil
}

// Release clears the marker held under l.Token. Releasing twice is a no-op.
func (m *Manager) Release(ctx context.Context, tx store.Tx, l store.ActionLock) error {
	if _, err := tx.DeleteLock(ctx, l.Realm, l.Account, l.Action, l.Token); err != nil {
		return fmt.Errorf("release lock %s/%s/%s: %w", l.Realm, l.Account, l.Action, err)
	}
	return nil
}

// Abandon compensates and removes an expired marker inside tx.
func (m *Manager) Abandon(ctx context.Context, tx store.Tx, l store.ActionLock) error {
	if err := m.abandon(ctx, tx, l); err != nil {
		return err
	}
	return m.Release(ctx, tx, l)
}

func (m *Manager) abandon(ctx context.Context, tx store.Tx, l store.ActionLock) error {
	if m.onAbandon == nil {
		return nil
	}
	if err := m.onAbandon(ctx, tx, l); err != nil {
		return fmt.Errorf("compensate abandoned lock %s/%s/%s: %w", l.Realm, l.Account, l.Action, err)
	}
	log.Warn().
		Str("realm", l.Realm).
		Str("account", l.Account).
		Str("action", l.Action).
		Int64("escrow", l.Escrow).
		Time("expired_at", l.ExpiresAt).
		Msg("abandoned in-flight lock compensated")
	return nil
}
