package postgres

import (
	"context"
	"fmt"
	"strings"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetBalance(ctx context.Context, realm, account string) (int64, error) {
	var bal int64
	err := s.Pool.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE realm_id = $1 AND account_id = $2
	`, realm, account).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error) {
	return getGuildConfig(ctx, s.Pool, realm)
}

func (s *Store) ListAccounts(ctx context.Context, realm string, limit, offset int) ([]store.Account, error) {
	limit, offset = store.Page(limit, offset)
	rows, err := s.Pool.Query(ctx, `
		SELECT realm_id, account_id, balance, created_at, updated_at
		FROM accounts
		WHERE realm_id = $1
		ORDER BY account_id ASC
		LIMIT $2 OFFSET $3
	`, realm, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (s *Store) TopBalances(ctx context.Context, realm string, limit int) ([]store.Account, error) {
	limit, _ = store.Page(limit, 0)
	rows, err := s.Pool.Query(ctx, `
		SELECT realm_id, account_id, balance, created_at, updated_at
		FROM accounts
		WHERE realm_id = $1
		ORDER BY balance DESC, account_id ASC
		LIMIT $2
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
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Realm != "" {
		add("realm_id = $%d", f.Realm)
	}
	if f.Account != "" {
		add("account_id = $%d", f.Account)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.GroupID != "" {
		add("group_id = $%d", f.GroupID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT seq, id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at
		FROM ledger_entries
		WHERE %s
		ORDER BY seq DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) LedgerChain(ctx context.Context, realm, account string) ([]store.LedgerEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT seq, id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at
		FROM ledger_entries
		WHERE realm_id = $1 AND account_id = $2
		ORDER BY seq ASC
	`, realm, account)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func collectAccounts(rows pgx.Rows) ([]store.Account, error) {
	defer rows.Close()
	var out []store.Account
	for rows.Next() {
		var a store.Account
		if err := rows.Scan(&a.Realm, &a.Account, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func collectEntries(rows pgx.Rows) ([]store.LedgerEntry, error) {
	defer rows.Close()
	var out []store.LedgerEntry
	for rows.Next() {
		var e store.LedgerEntry
		var meta []byte
		if err := rows.Scan(&e.Seq, &e.ID, &e.Realm, &e.Account, &e.Kind, &e.Delta, &e.BalanceAfter,
			&e.GroupID, &e.RequestID, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		m, err := store.DecodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		e.Metadata = m
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
