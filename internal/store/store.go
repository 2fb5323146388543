package store

import (
	"context"
	"errors"
	"time"

	"guild-economy/internal/economy"
)

var ErrNotFound = errors.New("not found")

// Store is the account store. Every balance mutation happens inside WithTx.
type Store interface {
	// WithTx runs fn in one serializable transaction. fn may be invoked more
	// than once when the backend retries a serialization conflict, so it must
	// not have side effects outside tx. Begin and commit failures are reported
	// as economy.ErrStoreUnavailable.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetBalance(ctx context.Context, realm, account string) (int64, error)
	GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error)
	ListAccounts(ctx context.Context, realm string, limit, offset int) ([]Account, error)
	TopBalances(ctx context.Context, realm string, limit int) ([]Account, error)
	ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, error)
	// LedgerChain returns every entry for one account in insertion order.
	LedgerChain(ctx context.Context, realm, account string) ([]LedgerEntry, error)

	Ping(ctx context.Context) error
	Close()
}

// Tx is the in-transaction view of the store.
type Tx interface {
	// EnsureAccount creates the account with balance 0 if it does not exist.
	EnsureAccount(ctx context.Context, realm, account string) error
	// GetBalance reads and locks the account row for the rest of the
	// transaction. Missing accounts return ErrNotFound.
	GetBalance(ctx context.Context, realm, account string) (int64, error)
	// ApplyDelta adds delta to the balance and returns the new balance. It
	// does not enforce non-negativity.
	ApplyDelta(ctx context.Context, realm, account string, delta int64) (int64, error)

	GetLastAction(ctx context.Context, realm, account, key string) (time.Time, bool, error)
	SetLastAction(ctx context.Context, realm, account, key string, at time.Time) error
	// ClearLastAction removes a cooldown stamp for one account, or for every
	// account in the realm when account is empty. It returns the accounts
	// that had a stamp.
	ClearLastAction(ctx context.Context, realm, account, key string) ([]string, error)

	GetTier(ctx context.Context, realm, account, item string) (int, error)
	SetTier(ctx context.Context, realm, account, item string, tier int, at time.Time) error

	// LastLedgerBalance returns balance_after of the newest entry for the
	// account, and false when the account has no entries.
	LastLedgerBalance(ctx context.Context, realm, account string) (int64, bool, error)
	InsertLedgerEntry(ctx context.Context, e LedgerEntry) error

	GetLock(ctx context.Context, realm, account, action string) (ActionLock, error)
	PutLock(ctx context.Context, l ActionLock) error
	DeleteLock(ctx context.Context, realm, account, action, token string) (bool, error)
	ExpiredLocks(ctx context.Context, now time.Time, limit int) ([]ActionLock, error)

	// ClaimRequest records a request id; false means it was already claimed.
	ClaimRequest(ctx context.Context, realm, requestID string, at time.Time) (bool, error)
	SaveRequestResult(ctx context.Context, realm, requestID string, result []byte) error
	LoadRequestResult(ctx context.Context, realm, requestID string) ([]byte, error)

	// GetGuildConfig returns the stored config or the defaults for realm.
	GetGuildConfig(ctx context.Context, realm string) (economy.GuildConfig, error)
	PutGuildConfig(ctx context.Context, cfg economy.GuildConfig, at time.Time) error
}
