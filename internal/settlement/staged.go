package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/ledger"
	"guild-economy/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pending is a staged settlement between Begin and Resolve. The escrow has
// been debited and the in-flight lock is held until ExpiresAt.
type Pending struct {
	Realm      string              `json:"realm"`
	Account    string              `json:"account"`
	Action     economy.Action      `json:"action"`
	Token      string              `json:"token"`
	RequestID  string              `json:"request_id,omitempty"`
	GroupID    string              `json:"group_id"`
	ExpiresAt  time.Time           `json:"expires_at"`
	Escrow     int64               `json:"escrow"`
	Delta      int64               `json:"delta"`
	NewBalance int64               `json:"new_balance"`
	Entries    []store.LedgerEntry `json:"entries"`
}

func (p Pending) key() economy.Key {
	return economy.Key{Realm: p.Realm, Account: p.Account, Action: string(p.Action)}
}

func stageable(a economy.Action) bool {
	return a == economy.ActionEnhance || a == economy.ActionMarket
}

// Begin validates req, takes the in-flight lock and debits the escrow in one
// transaction. Only enhance and market can be staged.
func (o *Orchestrator) Begin(ctx context.Context, req Request) (Pending, error) {
	ctx, span := tracer.Start(ctx, "settlement.Begin", trace.WithAttributes(
		attribute.String("realm", req.Realm),
		attribute.String("account", req.Account),
		attribute.String("action", string(req.Action)),
	))
	defer span.End()
	metricSettleTotal.Add(1)

	p, err := o.begin(ctx, req)
	o.observe(span, req, Result{Delta: p.Delta, NewBalance: p.NewBalance}, err)
	return p, err
}

func (o *Orchestrator) begin(ctx context.Context, req Request) (Pending, error) {
	action, err := economy.ParseAction(string(req.Action))
	if err != nil {
		return Pending{}, err
	}
	if !stageable(action) {
		return Pending{}, fmt.Errorf("%w: %s cannot be staged", economy.ErrInvalidParameters, action)
	}
	req.Action = action
	if err := validateTarget(req); err != nil {
		return Pending{}, err
	}

	var p Pending
	err = o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg, err := tx.GetGuildConfig(ctx, req.Realm)
		if err != nil {
			return fmt.Errorf("load guild config: %w", err)
		}
		t := &txn{o: o, tx: tx, req: req, cfg: cfg, group: uuid.NewString()}
		payload := map[string]any{"group_id": t.group, "request_id": req.RequestID}

		var escrow int64
		var charge func() error
		switch action {
		case economy.ActionEnhance:
			a, err := t.prepareEnhance(ctx)
			if err != nil {
				return err
			}
			escrow = a.row.Cost
			payload["item"] = a.ladder.Item
			charge = func() error { return t.chargeEnhance(ctx, a) }
		case economy.ActionMarket:
			order, err := t.prepareMarket(ctx)
			if err != nil {
				return err
			}
			escrow = order.wager
			payload["symbol"] = order.instrument.Symbol
			charge = func() error { return t.escrowMarket(ctx, order) }
		}

		l, err := o.locks.Acquire(ctx, tx, t.key(string(action)), o.cfg.InFlightTTL, escrow, payload)
		if err != nil {
			return err
		}
		if err := charge(); err != nil {
			return err
		}
		if err := t.finish(ctx); err != nil {
			return err
		}
		p = Pending{
			Realm:      req.Realm,
			Account:    req.Account,
			Action:     action,
			Token:      l.Token,
			RequestID:  req.RequestID,
			GroupID:    t.group,
			ExpiresAt:  l.ExpiresAt,
			Escrow:     escrow,
			Delta:      t.res.Delta,
			NewBalance: t.res.NewBalance,
			Entries:    t.res.Entries,
		}
		return nil
	})
	if err != nil {
		return Pending{}, err
	}
	return p, nil
}

// Resolve draws the outcome for p, posts it and releases the lock. A lock
// that expired in the meantime is refunded instead and Resolve reports
// economy.ErrPendingNotFound.
func (o *Orchestrator) Resolve(ctx context.Context, p Pending) (Result, error) {
	ctx, span := tracer.Start(ctx, "settlement.Resolve", trace.WithAttributes(
		attribute.String("realm", p.Realm),
		attribute.String("account", p.Account),
		attribute.String("action", string(p.Action)),
	))
	defer span.End()

	req := Request{RequestID: p.RequestID, Realm: p.Realm, Account: p.Account, Action: p.Action}
	res, err := o.resolve(ctx, p)
	o.observe(span, req, res, err)
	return res, err
}

func (o *Orchestrator) resolve(ctx context.Context, p Pending) (Result, error) {
	if !stageable(p.Action) {
		return Result{}, fmt.Errorf("%w: %s cannot be staged", economy.ErrInvalidParameters, p.Action)
	}
	var (
		res     Result
		expired bool
	)
	err := o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		expired = false
		l, err := o.locks.Lookup(ctx, tx, p.key(), p.Token)
		if errors.Is(err, economy.ErrPendingNotFound) && l.Token != "" {
			expired = true
			return o.locks.Abandon(ctx, tx, l)
		}
		if err != nil {
			return err
		}
		cfg, err := tx.GetGuildConfig(ctx, p.Realm)
		if err != nil {
			return fmt.Errorf("load guild config: %w", err)
		}
		t := &txn{
			o:     o,
			tx:    tx,
			req:   Request{RequestID: p.RequestID, Realm: p.Realm, Account: p.Account, Action: p.Action},
			cfg:   cfg,
			group: payloadString(l.Payload, "group_id"),
			res:   Result{Action: p.Action, Account: p.Account, Outcome: map[string]any{}},
		}
		switch p.Action {
		case economy.ActionEnhance:
			err = o.resolveStagedEnhance(ctx, t, l)
		case economy.ActionMarket:
			err = o.resolveStagedMarket(ctx, t, l)
		}
		if err != nil {
			return err
		}
		if err := o.locks.Release(ctx, tx, l); err != nil {
			return err
		}
		if err := t.finish(ctx); err != nil {
			return err
		}
		res = t.res
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if expired {
		return Result{}, fmt.Errorf("%w: lock expired, escrow refunded", economy.ErrPendingNotFound)
	}
	return res, nil
}

func (o *Orchestrator) resolveStagedEnhance(ctx context.Context, t *txn, l store.ActionLock) error {
	ladder, err := o.catalog.Ladder(payloadString(l.Payload, "item"))
	if err != nil {
		return err
	}
	tier, err := t.tx.GetTier(ctx, l.Realm, l.Account, ladder.Item)
	if err != nil {
		return fmt.Errorf("read tier: %w", err)
	}
	row, err := ladder.Tier(tier)
	if err != nil {
		return err
	}
	return t.resolveEnhance(ctx, enhanceAttempt{ladder: ladder, tier: tier, row: row})
}

func (o *Orchestrator) resolveStagedMarket(ctx context.Context, t *txn, l store.ActionLock) error {
	in, err := o.catalog.Instrument(payloadString(l.Payload, "symbol"))
	if err != nil {
		return err
	}
	return t.resolveMarket(ctx, marketOrder{instrument: in, wager: l.Escrow})
}

// Cancel refunds the escrow of p and releases its lock.
func (o *Orchestrator) Cancel(ctx context.Context, p Pending) error {
	return o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := o.locks.Lookup(ctx, tx, p.key(), p.Token)
		if err != nil && l.Token == "" {
			return err
		}
		return o.locks.Abandon(ctx, tx, l)
	})
}

// Run stages req, calls reveal between escrow and resolution, and resolves.
// If reveal fails, panics or ctx is cancelled, the escrow is refunded before
// Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request, reveal func(context.Context, Pending) error) (Result, error) {
	p, err := o.Begin(ctx, req)
	if err != nil {
		return Result{}, err
	}
	resolved := false
	defer func() {
		if resolved {
			return
		}
		if err := o.Cancel(context.WithoutCancel(ctx), p); err != nil && !errors.Is(err, economy.ErrPendingNotFound) {
			log.Error().Err(err).
				Str("realm", p.Realm).
				Str("account", p.Account).
				Str("action", string(p.Action)).
				Msg("cancel staged settlement failed; janitor will refund")
		}
	}()

	if reveal != nil {
		if err := reveal(ctx, p); err != nil {
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	res, err := o.Resolve(ctx, p)
	if err != nil {
		return Result{}, err
	}
	resolved = true
	res.Delta += p.Delta
	res.Entries = append(p.Entries, res.Entries...)
	return res, nil
}

// refundEscrow is the abandon hook: it credits back whatever a dead lock
// still holds.
func (o *Orchestrator) refundEscrow(ctx context.Context, tx store.Tx, l store.ActionLock) error {
	if l.Escrow <= 0 {
		return nil
	}
	if err := tx.EnsureAccount(ctx, l.Realm, l.Account); err != nil {
		return err
	}
	_, err := o.ledger.Post(ctx, tx, ledger.Entry{
		Realm:     l.Realm,
		Account:   l.Account,
		Kind:      economy.KindEscrowRefund,
		Delta:     l.Escrow,
		GroupID:   payloadString(l.Payload, "group_id"),
		RequestID: payloadString(l.Payload, "request_id"),
		Metadata: map[string]any{
			"action":     l.Action,
			"token":      l.Token,
			"escrow":     l.Escrow,
			"expires_at": l.ExpiresAt.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return err
	}
	metricEscrowRefunds.Add(1)
	return nil
}

func payloadString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}
