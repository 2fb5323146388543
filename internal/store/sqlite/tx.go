package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/store"
)

type liteTx struct {
	tx *sql.Tx
}

func (t *liteTx) EnsureAccount(ctx context.Context, realm, account string) error {
	now := toNanos(time.Now())
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (realm_id, account_id, balance, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (realm_id, account_id) DO NOTHING
	`, realm, account, now, now)
	return err
}

func (t *liteTx) GetBalance(ctx context.Context, realm, account string) (int64, error) {
	var bal int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE realm_id = ? AND account_id = ?
	`, realm, account).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (t *liteTx) ApplyDelta(ctx context.Context, realm, account string, delta int64) (int64, error) {
	var bal int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE accounts SET balance = balance + ?, updated_at = ?
		WHERE realm_id = ? AND account_id = ?
		RETURNING balance
	`, delta, toNanos(time.Now()), realm, account).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (t *liteTx) GetLastAction(ctx context.Context, realm, account, key string) (time.Time, bool, error) {
	var at int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT last_at FROM account_cooldowns
		WHERE realm_id = ? AND account_id = ? AND action_key = ?
	`, realm, account, key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return fromNanos(at), true, nil
}

func (t *liteTx) SetLastAction(ctx context.Context, realm, account, key string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_cooldowns (realm_id, account_id, action_key, last_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (realm_id, account_id, action_key) DO UPDATE SET last_at = excluded.last_at
	`, realm, account, key, toNanos(at))
	return err
}

func (t *liteTx) ClearLastAction(ctx context.Context, realm, account, key string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		DELETE FROM account_cooldowns
		WHERE realm_id = ? AND action_key = ? AND (? = '' OR account_id = ?)
		RETURNING account_id
	`, realm, key, account, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *liteTx) GetTier(ctx context.Context, realm, account, item string) (int, error) {
	var tier int
	err := t.tx.QueryRowContext(ctx, `
		SELECT tier FROM account_items
		WHERE realm_id = ? AND account_id = ? AND item_key = ?
	`, realm, account, item).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return tier, err
}

func (t *liteTx) SetTier(ctx context.Context, realm, account, item string, tier int, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_items (realm_id, account_id, item_key, tier, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (realm_id, account_id, item_key) DO UPDATE
		SET tier = excluded.tier, updated_at = excluded.updated_at
	`, realm, account, item, tier, toNanos(at))
	return err
}

func (t *liteTx) LastLedgerBalance(ctx context.Context, realm, account string) (int64, bool, error) {
	var bal int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT balance_after FROM ledger_entries
		WHERE realm_id = ? AND account_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, realm, account).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return bal, true, nil
}

func (t *liteTx) InsertLedgerEntry(ctx context.Context, e store.LedgerEntry) error {
	meta, err := store.EncodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(id, realm_id, account_id, kind, delta, balance_after, group_id, request_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Realm, e.Account, e.Kind, e.Delta, e.BalanceAfter, e.GroupID, e.RequestID, string(meta), toNanos(e.CreatedAt))
	return err
}

func (t *liteTx) GetLock(ctx context.Context, realm, account, action string) (store.ActionLock, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload
		FROM action_locks
		WHERE realm_id = ? AND account_id = ? AND action_key = ?
	`, realm, account, action)
	l, err := scanLock(row)
	if err != nil {
		return store.ActionLock{}, mapNotFound(err)
	}
	return l, nil
}

func (t *liteTx) PutLock(ctx context.Context, l store.ActionLock) error {
	payload, err := store.EncodeMetadata(l.Payload)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO action_locks (realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (realm_id, account_id, action_key) DO UPDATE
		SET token = excluded.token,
		    acquired_at = excluded.acquired_at,
		    expires_at = excluded.expires_at,
		    escrow = excluded.escrow,
		    payload = excluded.payload
	`, l.Realm, l.Account, l.Action, l.Token, toNanos(l.AcquiredAt), toNanos(l.ExpiresAt), l.Escrow, string(payload))
	return err
}

func (t *liteTx) DeleteLock(ctx context.Context, realm, account, action, token string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM action_locks
		WHERE realm_id = ? AND account_id = ? AND action_key = ? AND token = ?
	`, realm, account, action, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *liteTx) ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]store.ActionLock, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT realm_id, account_id, action_key, token, acquired_at, expires_at, escrow, payload
		FROM action_locks
		WHERE expires_at <= ?
		ORDER BY expires_at
		LIMIT ?
	`, toNanos(now), limit)
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

func (t *liteTx) ClaimRequest(ctx context.Context, realm, requestID string, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO settle_requests (realm_id, request_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (realm_id, request_id) DO NOTHING
	`, realm, requestID, toNanos(at))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *liteTx) SaveRequestResult(ctx context.Context, realm, requestID string, result []byte) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE settle_requests SET result = ? WHERE realm_id = ? AND request_id = ?
	`, string(result), realm, requestID)
	return err
}

func (t *liteTx) LoadRequestResult(ctx context.Context, realm, requestID string) ([]byte, error) {
	var result sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT result FROM settle_requests WHERE realm_id = ? AND request_id = ?
	`, realm, requestID).Scan(&result)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !result.Valid {
		return nil, store.ErrNotFound
	}
	return []byte(result.String), nil
}

func (t *liteTx) GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error) {
	return getGuildConfig(ctx, t.tx, realm)
}

func (t *liteTx) PutGuildConfig(ctx context.Context, cfg economy.GuildConfig, at time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO guild_configs
			(realm_id, min_wager, win_lo_bps, win_hi_bps, mode_label, force_mode, force_account, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (realm_id) DO UPDATE
		SET min_wager = excluded.min_wager,
		    win_lo_bps = excluded.win_lo_bps,
		    win_hi_bps = excluded.win_hi_bps,
		    mode_label = excluded.mode_label,
		    force_mode = excluded.force_mode,
		    force_account = excluded.force_account,
		    updated_at = excluded.updated_at
	`, cfg.Realm, cfg.MinWager, cfg.WinLoBPS, cfg.WinHiBPS, cfg.ModeLabel, string(cfg.ForceMode), cfg.ForceAccount, toNanos(at))
	return err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getGuildConfig(ctx context.Context, q queryRower, realm string) (economy.GuildConfig, error) {
	cfg := economy.GuildConfig{Realm: realm}
	var force string
	err := q.QueryRowContext(ctx, `
		SELECT min_wager, win_lo_bps, win_hi_bps, mode_label, force_mode, force_account
		FROM guild_configs WHERE realm_id = ?
	`, realm).Scan(&cfg.MinWager, &cfg.WinLoBPS, &cfg.WinHiBPS, &cfg.ModeLabel, &force, &cfg.ForceAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return economy.DefaultGuildConfig(realm), nil
	}
	if err != nil {
		return economy.GuildConfig{}, err
	}
	cfg.ForceMode, err = economy.ParseForceMode(force)
	if err != nil {
		return economy.GuildConfig{}, fmt.Errorf("stored guild config: %w", err)
	}
	return cfg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLock(row scanner) (store.ActionLock, error) {
	var l store.ActionLock
	var acquired, expires int64
	var payload string
	if err := row.Scan(&l.Realm, &l.Account, &l.Action, &l.Token, &acquired, &expires, &l.Escrow, &payload); err != nil {
		return store.ActionLock{}, err
	}
	l.AcquiredAt = fromNanos(acquired)
	l.ExpiresAt = fromNanos(expires)
	m, err := store.DecodeMetadata([]byte(payload))
	if err != nil {
		return store.ActionLock{}, err
	}
	l.Payload = m
	return l, nil
}
