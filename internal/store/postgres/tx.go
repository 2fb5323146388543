package postgres

import (
	"context"
	"fmt"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"

	"github.com/jackc/pgx/v5"
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) EnsureAccount(ctx context.Context, realm, account string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (realm_id, account_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (realm_id, account_id) DO NOTHING
	`, realm, account)
	return err
}

func (t *pgTx) GetBalance(ctx context.Context, realm, account string) (int64, error) {
	var bal int64
	err := t.tx.QueryRow(ctx, `
		SELECT balance FROM accounts
		WHERE realm_id = $1 AND account_id = $2
		FOR UPDATE
	`, realm, account).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (t *pgTx) ApplyDelta(ctx context.Context, realm, account string, delta int64) (int64, error) {
	var bal int64
	err := t.tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = now()
		WHERE realm_id = $1 AND account_id = $2
		RETURNING balance
	`, realm, account, delta).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (t *pgTx) GetLastAction(ctx context.Context, realm, account, key string) (time.Time, bool, error) {
	var at time.Time
	err := t.tx.QueryRow(ctx, `
		SELECT last_at FROM account_cooldowns
		WHERE realm_id = $1 AND account_id = $2 AND action_key = $3
		FOR UPDATE
	`, realm, account, key).Scan(&at)
	if err != nil {
		if mapNotFound(err) == store.ErrNotFound {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return at.UTC(), true, nil
}

func (t *pgTx) SetLastAction(ctx context.Context, realm, account, key string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_cooldowns (realm_id, account_id, action_key, last_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (realm_id, account_id, action_key) DO UPDATE SET last_at = EXCLUDED.last_at
	`, realm, account, key, at)
	return err
}

func (t *pgTx) ClearLastAction(ctx context.Context, realm, account, key string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		DELETE FROM account_cooldowns
		WHERE realm_id = $1 AND action_key = $2 AND ($3::text = '' OR account_id = $3::text)
		RETURNING account_id
	`, realm, key, account)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t *pgTx) GetTier(ctx context.Context, realm, account, item string) (int, error) {
	var tier int
	err := t.tx.QueryRow(ctx, `
		SELECT tier FROM account_items
		WHERE realm_id = $1 AND account_id = $2 AND item_key = $3
		FOR UPDATE
	`, realm, account, item).Scan(&tier)
	if err != nil {
		if mapNotFound(err) == store.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return tier, nil
}

func (t *pgTx) SetTier(ctx context.Context, realm, account, item string, tier int, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_items (realm_id, account_id, item_key, tier, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (realm_id, account_id, item_key) DO UPDATE
		SET tier = EXCLUDED.tier, updated_at = EXCLUDED.updated_at
	`, realm, account, item, tier, at)
	return err
}

func (t *pgTx) LastLedgerBalance(ctx context.Context, realm, account string) (int64, bool, error) {
	var bal int64
	err := t.tx.QueryRow(ctx, `
		SELECT balance_after FROM ledger_entries
		WHERE realm_id = $1 AND account_id = $2
		ORDER BY seq DESC
		LIMIT 1
	`, realm, account).Scan(&bal)
	if err != nil {
		if mapNotFound(err) == store.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return bal, true, nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e store.LedgerEntry) error {
	meta, err := store.EncodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO ledger_entries
			(id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
	`, e.ID, e.Realm, e.Account, e.Kind, e.Delta, e.BalanceAfter, e.GroupID, e.RequestID, string(meta), e.CreatedAt)
	return err
}

func (t *pgTx) GetLock(ctx context.Context, realm, account, action string) (store.ActionLock, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload
		FROM action_locks
		WHERE realm_id = $1 AND account_id = $2 AND action_key = $3
		FOR UPDATE
	`, realm, account, action)
	l, err := scanLock(row)
	if err != nil {
		return store.ActionLock{}, mapNotFound(err)
	}
	return l, nil
}

func (t *pgTx) PutLock(ctx context.Context, l store.ActionLock) error {
	payload, err := store.EncodeMetadata(l.Payload)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO action_locks (realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (realm_id, account_id, action_key) DO UPDATE
		SET token = EXCLUDED.token,
		    acquired_at = EXCLUDED.acquired_at,
		    expires_at = EXCLUDED.expires_at,
		    escrow = EXCLUDED.escrow,
		    payload = EXCLUDED.payload
	`, l.Realm, l.Account, l.Action, l.Token, l.AcquiredAt, l.ExpiresAt, l.Escrow, string(payload))
	return err
}

func (t *pgTx) DeleteLock(ctx context.Context, realm, account, action, token string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM action_locks
		WHERE realm_id = $1 AND account_id = $2 AND action_key = $3 AND token = $4
	`, realm, account, action, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]store.ActionLock, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.Query(ctx, `
		SELECT realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload
		FROM action_locks
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.ActionLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) ClaimRequest(ctx context.Context, realm, requestID string, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO settle_requests (realm_id, request_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (realm_id, request_id) DO NOTHING
	`, realm, requestID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) SaveRequestResult(ctx context.Context, realm, requestID string, result []byte) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE settle_requests SET result = $3::jsonb
		WHERE realm_id = $1 AND request_id = $2
	`, realm, requestID, string(result))
	return err
}

func (t *pgTx) LoadRequestResult(ctx context.Context, realm, requestID string) ([]byte, error) {
	var result []byte
	err := t.tx.QueryRow(ctx, `
		SELECT result FROM settle_requests
		WHERE realm_id = $1 AND request_id = $2
	`, realm, requestID).Scan(&result)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if result == nil {
		return nil, store.ErrNotFound
	}
	return result, nil
}

func (t *pgTx) GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error) {
	return getGuildConfig(ctx, t.tx, realm)
}

func (t *pgTx) PutGuildConfig(ctx context.Context, cfg economy.GuildConfig, at time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO guild_configs
			(realm_id, min_wager, win_lo_bps, win_hi_bps, mode_label, force_mode, force_account, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (realm_id) DO UPDATE
		SET min_wager = EXCLUDED.min_wager,
		    win_lo_bps = EXCLUDED.win_lo_bps,
		    win_hi_bps = EXCLUDED.win_hi_bps,
		    mode_label = EXCLUDED.mode_label,
		    force_mode = EXCLUDED.force_mode,
		    force_account = EXCLUDED.force_account,
		    updated_at = EXCLUDED.updated_at
	`, cfg.Realm, cfg.MinWager, cfg.WinLoBPS, cfg.WinHiBPS, cfg.ModeLabel, string(cfg.ForceMode), cfg.ForceAccount, at)
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getGuildConfig(ctx context.Context, q querier, realm string) (economy.GuildConfig, error) {
	cfg := economy.GuildConfig{Realm: realm}
	var force string
	err := q.QueryRow(ctx, `
		SELECT min_wager, win_lo_bps, win_hi_bps, mode_label, force_mode, force_account
		FROM guild_configs WHERE realm_id = $1
	`, realm).Scan(&cfg.MinWager, &cfg.WinLoBPS, &cfg.WinHiBPS, &cfg.ModeLabel, &force, &cfg.ForceAccount)
	if err != nil {
		if mapNotFound(err) == store.ErrNotFound {
			return economy.DefaultGuildConfig(realm), nil
		}
		return economy.GuildConfig{}, err
	}
	cfg.ForceMode, err = economy.ParseForceMode(force)
	if err != nil {
		return economy.GuildConfig{}, fmt.Errorf("stored guild config: %w", err)
	}
	return cfg, nil
}

func scanLock(row pgx.Row) (store.ActionLock, error) {
	var l store.ActionLock
	var payload []byte
	if err := row.Scan(&l.Realm, &l.Account, &l.Action, &l.Token, &l.AcquiredAt, &l.ExpiresAt, &l.Escrow, &payload); err != nil {
		return store.ActionLock{}, err
	}
	l.AcquiredAt = l.AcquiredAt.UTC()
	l.ExpiresAt = l.ExpiresAt.UTC()
	m, err := store.DecodeMetadata(payload)
	if err != nil {
		return store.ActionLock{}, err
	}
	l.Payload = m
	return l, nil
}
