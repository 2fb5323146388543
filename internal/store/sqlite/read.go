package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"
)

func (s *Store) GetBalance(ctx context.Context, realm, account string) (int64, error) {
	var bal int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE realm_id = ? AND account_id = ?
	`, realm, account).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error) {
	return getGuildConfig(ctx, s.DB, realm)
}

func (s *Store) ListAccounts(ctx context.Context, realm string, limit, offset int) ([]store.Account, error) {
	limit, offset = store.Page(limit, offset)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT realm_id, account_id, balance, created_at, updated_at
		FROM accounts
		WHERE realm_id = ?
		ORDER BY account_id ASC
		LIMIT ? OFFSET ?
	`, realm, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) TopBalances(ctx context.Context, realm string, limit int) ([]store.Account, error) {
	limit, _ = store.Page(limit, 0)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT realm_id, account_id, balance, created_at, updated_at
		FROM accounts
		WHERE realm_id = ?
		ORDER BY balance DESC, account_id ASC
		LIMIT ?
	`, realm, limit)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) ListLedgerEntries(ctx context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, error) {
	limit, offset = store.Page(limit, offset)
	where := []string{"1=1"}
	args := []any{}
	if f.Realm != "" {
		where = append(where, "realm_id = ?")
		args = append(args, f.Realm)
	}
	if f.Account != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.Account)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, toNanos(*f.From))
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, toNanos(*f.To))
	}
	args = append(args, limit, offset)
	rows, err := s.DB.QueryContext(ctx, `
		SELECT seq, id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at
		FROM ledger_entries
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) LedgerChain(ctx context.Context, realm, account string) ([]store.LedgerEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT seq, id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at
		FROM ledger_entries
		WHERE realm_id = ? AND account_id = ?
		ORDER BY seq ASC
	`, realm, account)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func collectAccounts(rows *sql.Rows) ([]store.Account, error) {
	defer rows.Close()
	var out []store.Account
	for rows.Next() {
		var a store.Account
		var created, updated int64
		if err := rows.Scan(&a.Realm, &a.Account, &a.Balance, &created, &updated); err != nil {
			return nil, err
		}
		a.CreatedAt = fromNanos(created)
		a.UpdatedAt = fromNanos(updated)
		out = append(out, a)
	}
	return out, rows.Err()
}

func collectEntries(rows *sql.Rows) ([]store.LedgerEntry, error) {
	defer rows.Close()
	var out []store.LedgerEntry
	for rows.Next() {
		var e store.LedgerEntry
		var meta string
		var created int64
		if err := rows.Scan(&e.Seq, &e.ID, &e.Realm, &e.Account, &e.Kind, &e.Delta, &e.BalanceAfter,
			&e.GroupID, &e.RequestID, &meta, &created); err != nil {
			return nil, err
		}
		m, err := store.DecodeMetadata([]byte(meta))
		if err != nil {
			return nil, err
		}
		e.Metadata = m
		e.CreatedAt = fromNanos(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
