// Package ledger appends balance mutations to the immutable ledger and
// audits the chain afterwards.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-economy/internal/store"
)

var ErrBalanceMismatch = errors.New("ledger_balance_mismatch")

// Entry is what callers hand to Append. ID, Seq and CreatedAt are assigned by
// the writer.
type Entry struct {
	Realm        string
	Account      string
	Kind         string
	Delta        int64
	BalanceAfter int64
	GroupID      string
	RequestID    string
	Metadata     map[string]any
}

type Clock interface {
	Now() time.Time
}

type Writer struct {
	clock Clock
}

func New(c Clock) *Writer {
	return &Writer{clock: c}
}

// Append writes e inside tx. It must run in the same transaction as the
// ApplyDelta that produced e.BalanceAfter; a chain that does not line up with
// the previous snapshot is rejected and the transaction rolls back.
func (w *Writer) Append(ctx context.Context, tx store.Tx, e Entry) (store.LedgerEntry, error) {
	if e.Realm == "" || e.Account == "" || e.Kind == "" {
		return store.LedgerEntry{}, fmt.Errorf("ledger append: realm, account and kind are required")
	}
	prev, _, err := tx.LastLedgerBalance(ctx, e.Realm, e.Account)
	if err != nil {
		return store.LedgerEntry{}, fmt.Errorf("ledger append: load previous snapshot: %w", err)
	}
	if prev+e.Delta != e.BalanceAfter {
		return store.LedgerEntry{}, fmt.Errorf("%w: %s/%s prev=%d delta=%d balance_after=%d",
			ErrBalanceMismatch, e.Realm, e.Account, prev, e.Delta, e.BalanceAfter)
	}
	now := w.clock.Now()
	row := store.LedgerEntry{
		ID:           store.NewID(now),
		Realm:        e.Realm,
		Account:      e.Account,
		Kind:         e.Kind,
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		GroupID:      e.GroupID,
		RequestID:    e.RequestID,
		Metadata:     e.Metadata,
		CreatedAt:    now,
	}
	if err := tx.InsertLedgerEntry(ctx, row); err != nil {
		return store.LedgerEntry{}, fmt.Errorf("ledger append: %w", err)
	}
	return row, nil
}

// Post applies delta to the account and appends the matching entry in one
// step. It is the only way settlement code changes a balance.
func (w *Writer) Post(ctx context.Context, tx store.Tx, e Entry) (store.LedgerEntry, error) {
	bal, err := tx.ApplyDelta(ctx, e.Realm, e.Account, e.Delta)
	if err != nil {
		return store.LedgerEntry{}, fmt.Errorf("apply delta: %w", err)
	}
	e.BalanceAfter = bal
	return w.Append(ctx, tx, e)
}
