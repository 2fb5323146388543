// Package lock gates settlements: periodic cooldowns stamped atomically with
// the payout, and short-lived in-flight markers for multi-step flows.
package lock

import (
	"context"
	"fmt"
	"time"

	"guild-economy/internal/clock"
	"guild-economy/internal/economy"
	"guild-economy/internal/store"
)

// AbandonFunc compensates an expired in-flight lock inside tx, before the
// marker is deleted.
type AbandonFunc func(ctx context.Context, tx store.Tx, l store.ActionLock) error

type Manager struct {
	clock     clock.Clock
	onAbandon AbandonFunc
}

func NewManager(c clock.Clock, onAbandon AbandonFunc) *Manager {
	return &Manager{clock: c, onAbandon: onAbandon}
}

// CheckAndStamp rejects with *economy.CooldownError when the last stamp for k
// is younger than interval; otherwise it stamps now in tx. The account row
// must already exist.
func (m *Manager) CheckAndStamp(ctx context.Context, tx store.Tx, k economy.Key, interval time.Duration) error {
	now := m.clock.Now()
	last, ok, err := tx.GetLastAction(ctx, k.Realm, k.Account, k.Action)
	if err != nil {
		return fmt.Errorf("read cooldown %s: %w", k, err)
	}
	if ok {
		if last.After(now) {
			last = now
		}
		if elapsed := now.Sub(last); elapsed < interval {
			return &economy.CooldownError{Key: k.Action, Remaining: interval - elapsed}
		}
	}
	if err := tx.SetLastAction(ctx, k.Realm, k.Account, k.Action, now); err != nil {
		return fmt.Errorf("stamp cooldown %s: %w", k, err)
	}
	return nil
}

// CheckAndStampDaily allows one stamp per calendar day in loc. The remaining
// time on rejection runs to the next local midnight.
func (m *Manager) CheckAndStampDaily(ctx context.Context, tx store.Tx, k economy.Key, loc *time.Location) error {
	now := m.clock.Now().In(loc)
	last, ok, err := tx.GetLastAction(ctx, k.Realm, k.Account, k.Action)
	if err != nil {
		return fmt.Errorf("read cooldown %s: %w", k, err)
	}
	if ok && sameDay(last.In(loc), now) {
		y, mo, d := now.Date()
		next := time.Date(y, mo, d+1, 0, 0, 0, 0, loc)
		return &economy.CooldownError{Key: k.Action, Remaining: next.Sub(now)}
	}
	if err := tx.SetLastAction(ctx, k.Realm, k.Account, k.Action, now.UTC()); err != nil {
		return fmt.Errorf("stamp cooldown %s: %w", k, err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
