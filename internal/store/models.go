package store

import "time"

type Account struct {
	Realm     string    `json:"realm"`
	Account   string    `json:"account"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	ID           string         `json:"id"`
	Seq          int64          `json:"seq"`
	Realm        string         `json:"realm"`
	Account      string         `json:"account"`
	Kind         string         `json:"kind"`
	Delta        int64          `json:"delta"`
	BalanceAfter int64          `json:"balance_after"`
	GroupID      string         `json:"group_id"`
	RequestID    string         `json:"request_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ActionLock is an in-flight marker for a multi-step settlement. Escrow is
// the amount debited when the lock was taken and still owed back if the flow
// never resolves.
type ActionLock struct {
	Realm      string         `json:"realm"`
	Account    string         `json:"account"`
	Action     string         `json:"action"`
	Token      string         `json:"token"`
	AcquiredAt time.Time      `json:"acquired_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Escrow     int64          `json:"escrow"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type LedgerFilter struct {
	Realm   string
	Account string
	Kind    string
	GroupID string
	From    *time.Time
	To      *time.Time
}
