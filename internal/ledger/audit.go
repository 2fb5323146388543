package ledger

import (
	"context"
	"fmt"

	"guild-economy/internal/store"
)

// Discrepancy describes an account whose ledger does not explain its balance.
type Discrepancy struct {
	Realm      string `json:"realm"`
	Account    string `json:"account"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledger_sum"`
	BrokenAtID string `json:"broken_at_id,omitempty"`
}

type auditStore interface {
	ListAccounts(ctx context.Context, realm string, limit, offset int) ([]store.Account, error)
	LedgerChain(ctx context.Context, realm, account string) ([]store.LedgerEntry, error)
}

// Verify replays every account in realm: the prefix sum of deltas must equal
// each entry's balance_after and the final sum must equal the balance.
func Verify(ctx context.Context, st auditStore, realm string) ([]Discrepancy, error) {
	const page = 500
	var out []Discrepancy
	for offset := 0; ; offset += page {
		accounts, err := st.ListAccounts(ctx, realm, page, offset)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		for _, a := range accounts {
			chain, err := st.LedgerChain(ctx, realm, a.Account)
			if err != nil {
				return nil, fmt.Errorf("load chain %s: %w", a.Account, err)
			}
			if d, ok := checkChain(a, chain); !ok {
				out = append(out, d)
			}
		}
		if len(accounts) < page {
			return out, nil
		}
	}
}

func checkChain(a store.Account, chain []store.LedgerEntry) (Discrepancy, bool) {
	d := Discrepancy{Realm: a.Realm, Account: a.Account, Balance: a.Balance}
	var sum int64
	ok := true
	for _, e := range chain {
		sum += e.Delta
		if sum != e.BalanceAfter && d.BrokenAtID == "" {
			d.BrokenAtID = e.ID
			ok = false
		}
	}
	d.LedgerSum = sum
	if sum != a.Balance {
		ok = false
	}
	return d, ok
}
