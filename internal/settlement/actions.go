package settlement

import (
	"context"
	"fmt"
	"sort"

	"guild-economy/internal/economy"
	"guild-economy/internal/outcome"
)

func settleClaim(ctx context.Context, t *txn) error {
	if _, err := t.balance(ctx, t.req.Account); err != nil {
		return err
	}
	interval := t.o.cfg.ClaimInterval
	if err := t.o.locks.CheckAndStamp(ctx, t.tx, t.key(economy.CooldownClaim), interval); err != nil {
		return err
	}
	_, err := t.post(ctx, t.req.Account, economy.KindClaim, t.o.cfg.ClaimAmount, map[string]any{
		"interval_s": int64(interval.Seconds()),
	})
	return err
}

func settleDaily(ctx context.Context, t *txn) error {
	if _, err := t.balance(ctx, t.req.Account); err != nil {
		return err
	}
	if err := t.o.locks.CheckAndStampDaily(ctx, t.tx, t.key(economy.CooldownDaily), t.o.daily); err != nil {
		return err
	}
	_, err := t.post(ctx, t.req.Account, economy.KindDaily, t.o.cfg.DailyAmount, map[string]any{
		"timezone": t.o.daily.String(),
	})
	return err
}

// checkWager rejects a stake before anything is mutated or drawn.
func (t *txn) checkWager(wager, bal int64) error {
	if wager <= 0 {
		return economy.ErrNonPositiveAmount
	}
	if wager < t.cfg.MinWager {
		return fmt.Errorf("%w: %d < %d", economy.ErrBelowMinimumWager, wager, t.cfg.MinWager)
	}
	if wager > bal {
		return fmt.Errorf("%w: need %d, have %d", economy.ErrInsufficientFunds, wager, bal)
	}
	return nil
}

func settleWager(ctx context.Context, t *txn) error {
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return err
	}
	if err := t.checkWager(t.req.Wager, bal); err != nil {
		return err
	}
	release, err := t.exclusive(ctx, string(economy.ActionWager))
	if err != nil {
		return err
	}

	force := t.cfg.ForceFor(t.req.Account)
	r := outcome.FlatOdds(t.o.rng, outcome.FlatParams{LoBPS: t.cfg.WinLoBPS, HiBPS: t.cfg.WinHiBPS, Force: force})
	delta := -t.req.Wager
	if r.Win {
		delta = t.req.Wager
	}
	meta := map[string]any{
		"wager":           t.req.Wager,
		"win":             r.Win,
		"probability_bps": r.ProbabilityBPS,
		"forced":          r.Forced,
		"mode":            t.cfg.ModeLabel,
	}
	if !r.Forced {
		meta["roll"] = r.Roll
	}
	if _, err := t.post(ctx, t.req.Account, economy.KindWagerSettle, delta, meta); err != nil {
		return err
	}
	t.res.Outcome = meta
	return release()
}

// exclusive takes the in-flight marker for action inside the settlement
// transaction, so a staged flow for the same key blocks the one-shot path.
// The returned release must run before commit.
func (t *txn) exclusive(ctx context.Context, action string) (func() error, error) {
	l, err := t.o.locks.Acquire(ctx, t.tx, t.key(action), t.o.cfg.InFlightTTL, 0, nil)
	if err != nil {
		return nil, err
	}
	return func() error { return t.o.locks.Release(ctx, t.tx, l) }, nil
}

type marketOrder struct {
	instrument outcome.Instrument
	wager      int64
}

func (t *txn) prepareMarket(ctx context.Context) (marketOrder, error) {
	in, err := t.o.catalog.Instrument(t.req.Params.Symbol)
	if err != nil {
		return marketOrder{}, err
	}
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return marketOrder{}, err
	}
	if bal <= 0 {
		return marketOrder{}, fmt.Errorf("%w: balance %d", economy.ErrInsufficientFunds, bal)
	}
	if err := t.checkWager(t.req.Wager, bal); err != nil {
		return marketOrder{}, err
	}
	return marketOrder{instrument: in, wager: t.req.Wager}, nil
}

func (t *txn) escrowMarket(ctx context.Context, o marketOrder) error {
	_, err := t.post(ctx, t.req.Account, economy.KindWagerPlace, -o.wager, map[string]any{
		"symbol": o.instrument.Symbol,
		"wager":  o.wager,
	})
	return err
}

// resolveMarket draws the return and credits principal plus P/L. A loss
// that would push the balance under the debt floor is clamped to it.
func (t *txn) resolveMarket(ctx context.Context, o marketOrder) error {
	r, err := outcome.Market(t.o.rng, o.instrument, o.wager)
	if err != nil {
		return err
	}
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return err
	}
	pnl := r.PnL
	clamped := false
	if floor := t.o.cfg.DebtFloor; bal+o.wager+pnl < floor {
		pnl = floor - bal - o.wager
		clamped = true
	}
	meta := map[string]any{
		"symbol":     o.instrument.Symbol,
		"kind":       string(o.instrument.Kind),
		"wager":      o.wager,
		"bucket":     r.Bucket,
		"return_pct": r.ReturnPct.String(),
		"pnl":        pnl,
		"clamped":    clamped,
	}
	if _, err := t.post(ctx, t.req.Account, economy.KindWagerSettle, o.wager+pnl, meta); err != nil {
		return err
	}
	t.res.Outcome = meta
	return nil
}

func settleMarket(ctx context.Context, t *txn) error {
	order, err := t.prepareMarket(ctx)
	if err != nil {
		return err
	}
	release, err := t.exclusive(ctx, string(economy.ActionMarket))
	if err != nil {
		return err
	}
	if err := t.escrowMarket(ctx, order); err != nil {
		return err
	}
	if err := t.resolveMarket(ctx, order); err != nil {
		return err
	}
	return release()
}

type enhanceAttempt struct {
	ladder outcome.Ladder
	tier   int
	row    outcome.Tier
}

func (t *txn) enhanceItem() string {
	if t.req.Params.Item != "" {
		return t.req.Params.Item
	}
	return t.o.cfg.EnhanceItem
}

// prepareEnhance checks the ladder bounds and funds. A maxed item is
// rejected before any charge.
func (t *txn) prepareEnhance(ctx context.Context) (enhanceAttempt, error) {
	item := t.enhanceItem()
	l, err := t.o.catalog.Ladder(item)
	if err != nil {
		return enhanceAttempt{}, err
	}
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return enhanceAttempt{}, err
	}
	tier, err := t.tx.GetTier(ctx, t.req.Realm, t.req.Account, item)
	if err != nil {
		return enhanceAttempt{}, fmt.Errorf("read tier: %w", err)
	}
	row, err := l.Tier(tier)
	if err != nil {
		return enhanceAttempt{}, err
	}
	if row.Cost > bal {
		return enhanceAttempt{}, fmt.Errorf("%w: need %d, have %d", economy.ErrInsufficientFunds, row.Cost, bal)
	}
	return enhanceAttempt{ladder: l, tier: tier, row: row}, nil
}

func (t *txn) chargeEnhance(ctx context.Context, a enhanceAttempt) error {
	_, err := t.post(ctx, t.req.Account, economy.KindEnhancementFee, -a.row.Cost, map[string]any{
		"item":        a.ladder.Item,
		"from":        a.tier,
		"cost":        a.row.Cost,
		"success_pct": a.row.Success,
	})
	return err
}

func (t *txn) resolveEnhance(ctx context.Context, a enhanceAttempt) error {
	r, err := outcome.Enhance(t.o.rng, a.ladder, a.tier)
	if err != nil {
		return err
	}
	if r.To != r.From {
		if err := t.tx.SetTier(ctx, t.req.Realm, t.req.Account, a.ladder.Item, r.To, t.o.clock.Now()); err != nil {
			return fmt.Errorf("write tier: %w", err)
		}
	}
	meta := map[string]any{
		"item":        a.ladder.Item,
		"outcome":     string(r.Band),
		"from":        r.From,
		"to":          r.To,
		"roll":        r.Roll,
		"success_pct": a.row.Success,
	}
	if _, err := t.post(ctx, t.req.Account, economy.KindEnhancementResult, 0, meta); err != nil {
		return err
	}
	t.res.Outcome = meta
	return nil
}

func settleEnhance(ctx context.Context, t *txn) error {
	a, err := t.prepareEnhance(ctx)
	if err != nil {
		return err
	}
	release, err := t.exclusive(ctx, string(economy.ActionEnhance))
	if err != nil {
		return err
	}
	if err := t.chargeEnhance(ctx, a); err != nil {
		return err
	}
	if err := t.resolveEnhance(ctx, a); err != nil {
		return err
	}
	return release()
}

// lockPair reads and locks both balances in account order so two
// cross-account settlements never wait on each other in a cycle.
func (t *txn) lockPair(ctx context.Context, a, b string) (int64, int64, error) {
	ids := []string{a, b}
	sort.Strings(ids)
	bals := map[string]int64{}
	for _, id := range ids {
		bal, err := t.balance(ctx, id)
		if err != nil {
			return 0, 0, err
		}
		bals[id] = bal
	}
	return bals[a], bals[b], nil
}

func (t *txn) counterparty() (string, error) {
	other := t.req.Params.Opponent
	if other == "" {
		return "", fmt.Errorf("%w: opponent is required", economy.ErrInvalidParameters)
	}
	if other == t.req.Account {
		return "", economy.ErrSelfTarget
	}
	return other, nil
}

func settleDuel(ctx context.Context, t *txn) error {
	opponent, err := t.counterparty()
	if err != nil {
		return err
	}
	balA, balB, err := t.lockPair(ctx, t.req.Account, opponent)
	if err != nil {
		return err
	}
	stake := t.req.Wager
	if stake == 0 {
		stake = min(balA, balB)
	}
	if stake < 0 {
		return economy.ErrNonPositiveAmount
	}
	if stake < t.cfg.MinWager || stake == 0 {
		return fmt.Errorf("%w: stake %d < %d", economy.ErrBelowMinimumWager, stake, t.cfg.MinWager)
	}
	if stake > balA {
		return fmt.Errorf("%w: need %d, have %d", economy.ErrInsufficientFunds, stake, balA)
	}
	if stake > balB {
		return fmt.Errorf("%w: opponent holds %d", economy.ErrInsufficientFunds, balB)
	}

	item := t.enhanceItem()
	powerA, err := t.tx.GetTier(ctx, t.req.Realm, t.req.Account, item)
	if err != nil {
		return fmt.Errorf("read tier: %w", err)
	}
	powerB, err := t.tx.GetTier(ctx, t.req.Realm, opponent, item)
	if err != nil {
		return fmt.Errorf("read tier: %w", err)
	}
	release, err := t.exclusive(ctx, string(economy.ActionDuel))
	if err != nil {
		return err
	}

	r := outcome.Duel(t.o.rng, t.o.duel, powerA, powerB)
	winner, loser := t.req.Account, opponent
	if !r.AWins {
		winner, loser = opponent, t.req.Account
	}
	meta := func(other string) map[string]any {
		return map[string]any{
			"opponent": other,
			"stake":    stake,
			"p":        r.Probability,
			"roll":     r.Roll,
			"power":    map[string]int{t.req.Account: powerA, opponent: powerB},
		}
	}
	if _, err := t.post(ctx, winner, economy.KindDuelWin, stake, meta(loser)); err != nil {
		return err
	}
	if _, err := t.post(ctx, loser, economy.KindDuelLose, -stake, meta(winner)); err != nil {
		return err
	}
	t.res.Outcome = map[string]any{
		"winner": winner,
		"loser":  loser,
		"stake":  stake,
		"p":      r.Probability,
		"roll":   r.Roll,
	}
	return release()
}

func settleTransfer(ctx context.Context, t *txn) error {
	to, err := t.counterparty()
	if err != nil {
		return err
	}
	amount := t.req.Params.Amount
	if amount == 0 {
		amount = t.req.Wager
	}
	if amount <= 0 {
		return economy.ErrNonPositiveAmount
	}
	if amount < t.o.cfg.TransferMin {
		return fmt.Errorf("%w: transfer %d < %d", economy.ErrBelowMinimumWager, amount, t.o.cfg.TransferMin)
	}
	if amount > t.o.cfg.TransferMax {
		return fmt.Errorf("%w: transfer %d > %d", economy.ErrAmountAboveMaximum, amount, t.o.cfg.TransferMax)
	}
	bal, _, err := t.lockPair(ctx, t.req.Account, to)
	if err != nil {
		return err
	}
	if amount > bal {
		return fmt.Errorf("%w: need %d, have %d", economy.ErrInsufficientFunds, amount, bal)
	}

	fee := amount * t.o.cfg.TransferFeeBPS / 10000
	net := amount - fee
	if _, err := t.post(ctx, t.req.Account, economy.KindTransferOut, -amount, map[string]any{
		"to": to, "amount": amount, "fee": fee,
	}); err != nil {
		return err
	}
	if _, err := t.post(ctx, to, economy.KindTransferIn, net, map[string]any{
		"from": t.req.Account, "amount": amount, "fee": fee,
	}); err != nil {
		return err
	}
	t.res.Outcome = map[string]any{"to": to, "amount": amount, "fee": fee, "received": net}
	return nil
}

func settleBankruptcy(ctx context.Context, t *txn) error {
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return err
	}
	if bal >= 0 {
		return fmt.Errorf("%w: balance %d", economy.ErrNoDebt, bal)
	}
	r, err := outcome.Bankruptcy(t.o.rng, -bal)
	if err != nil {
		return err
	}
	meta := map[string]any{
		"debt":      -bal,
		"roll":      r.Roll,
		"ratio":     r.Ratio.String(),
		"recovered": r.Recovered,
	}
	if _, err := t.post(ctx, t.req.Account, economy.KindBankruptcy, r.Recovered, meta); err != nil {
		return err
	}
	t.res.Outcome = meta
	return nil
}
