package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"guild-economy/internal/clock"
	"guild-economy/internal/ledger"
	"guild-economy/internal/store"
	"guild-economy/internal/testutil"
)

func TestPostKeepsChainConsistent(t *testing.T) {
	st := testutil.OpenSQLiteStore(t)
	ctx := context.Background()
	w := ledger.New(clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, "r1", "a"); err != nil {
			return err
		}
		for _, d := range []int64{1000, -300, 50} {
			if _, err := w.Post(ctx, tx, ledger.Entry{Realm: "r1", Account: "a", Kind: "test", Delta: d, GroupID: "g"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	issues, err := ledger.Verify(ctx, st, "r1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected clean audit, got %+v", issues)
	}
	bal, _ := st.GetBalance(ctx, "r1", "a")
	if bal != 750 {
		t.Fatalf("expected 750, got %d", bal)
	}
}

func TestAppendRejectsMismatchedSnapshot(t *testing.T) {
	st := testutil.OpenSQLiteStore(t)
	ctx := context.Background()
	w := ledger.New(clock.System())

	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, "r1", "a"); err != nil {
			return err
		}
		_, err := w.Append(ctx, tx, ledger.Entry{Realm: "r1", Account: "a", Kind: "test", Delta: 10, BalanceAfter: 11, GroupID: "g"})
		return err
	})
	if !errors.Is(err, ledger.ErrBalanceMismatch) {
		t.Fatalf("expected ErrBalanceMismatch, got %v", err)
	}
	chain, err := st.LedgerChain(ctx, "r1", "a")
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("expected no entries after rollback, got %d", len(chain))
	}
}

func TestVerifyReportsDrift(t *testing.T) {
	st := testutil.OpenSQLiteStore(t)
	ctx := context.Background()
	w := ledger.New(clock.System())

	err := st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, "r1", "a"); err != nil {
			return err
		}
		if _, err := w.Post(ctx, tx, ledger.Entry{Realm: "r1", Account: "a", Kind: "test", Delta: 100, GroupID: "g"}); err != nil {
			return err
		}
		// A write that bypasses the ledger.
		_, err := tx.ApplyDelta(ctx, "r1", "a", 5)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	issues, err := ledger.Verify(ctx, st, "r1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(issues) != 1 || issues[0].Balance != 105 || issues[0].LedgerSum != 100 {
		t.Fatalf("unexpected audit: %+v", issues)
	}
}
