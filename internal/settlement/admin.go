package settlement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"guild-economy/internal/economy"
)

const (
	AdminSet = "set"
	AdminAdd = "add"
	AdminSub = "sub"
)

func (t *txn) adminMeta() map[string]any {
	return map[string]any{"by": t.req.Params.Actor, "reason": t.req.Params.Reason}
}

func settleAdminAdjust(ctx context.Context, t *txn) error {
	amount := t.req.Params.Amount
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return err
	}
	var (
		kind  string
		delta int64
	)
	switch strings.ToLower(t.req.Params.AdminOp) {
	case AdminSet:
		kind, delta = economy.KindAdminSet, amount-bal
	case AdminAdd:
		kind, delta = economy.KindAdminAdd, amount
	case AdminSub:
		kind, delta = economy.KindAdminSub, -amount
	default:
		return fmt.Errorf("%w: unknown admin op %q", economy.ErrInvalidParameters, t.req.Params.AdminOp)
	}
	if kind != economy.KindAdminSet && amount <= 0 {
		return economy.ErrNonPositiveAmount
	}
	meta := t.adminMeta()
	meta["amount"] = amount
	meta["before"] = bal
	if _, err := t.post(ctx, t.req.Account, kind, delta, meta); err != nil {
		return err
	}
	t.res.Outcome = meta
	return nil
}

func cooldownKeys(scope string) ([]string, error) {
	switch strings.ToLower(scope) {
	case "", "all":
		return []string{economy.CooldownClaim, economy.CooldownDaily}, nil
	case economy.CooldownClaim:
		return []string{economy.CooldownClaim}, nil
	case economy.CooldownDaily:
		return []string{economy.CooldownDaily}, nil
	}
	return nil, fmt.Errorf("%w: unknown cooldown scope %q", economy.ErrInvalidParameters, scope)
}

// settleAdminResetCooldown clears stamps for one account, or the whole realm
// when Account is empty, and leaves a zero-delta entry on every account that
// had a stamp cleared.
func settleAdminResetCooldown(ctx context.Context, t *txn) error {
	keys, err := cooldownKeys(t.req.Params.CooldownScope)
	if err != nil {
		return err
	}
	cleared := map[string][]string{}
	for _, key := range keys {
		accounts, err := t.tx.ClearLastAction(ctx, t.req.Realm, t.req.Account, key)
		if err != nil {
			return fmt.Errorf("clear %s cooldowns: %w", key, err)
		}
		for _, a := range accounts {
			cleared[a] = append(cleared[a], key)
		}
	}
	accounts := make([]string, 0, len(cleared))
	for a := range cleared {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	for _, a := range accounts {
		meta := t.adminMeta()
		meta["keys"] = cleared[a]
		if _, err := t.post(ctx, a, economy.KindAdminResetCooldown, 0, meta); err != nil {
			return err
		}
	}
	t.res.Outcome = map[string]any{
		"keys":     keys,
		"accounts": accounts,
		"cleared":  len(accounts),
	}
	return nil
}

func settleAdminConfig(ctx context.Context, t *txn) error {
	next := t.req.Params.Config
	if next == nil {
		return fmt.Errorf("%w: config is required", economy.ErrInvalidParameters)
	}
	cfg := *next
	cfg.Realm = t.req.Realm
	if cfg.ForceMode == "" {
		cfg.ForceMode = economy.ForceOff
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := t.tx.PutGuildConfig(ctx, cfg, t.o.clock.Now()); err != nil {
		return fmt.Errorf("write guild config: %w", err)
	}
	t.res.Outcome = map[string]any{
		"previous": t.cfg,
		"config":   cfg,
	}
	t.cfg = cfg
	return nil
}
