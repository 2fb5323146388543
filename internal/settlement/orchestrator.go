// Package settlement applies balance-changing actions. Each Settle call runs
// in one store transaction: gate, validate, draw, post ledger entries,
// commit. Multi-step flows split escrow and resolution across two
// transactions joined by an in-flight lock.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"time"

	"guild-economy/internal/clock"
	"guild-economy/internal/config"
	"guild-economy/internal/economy"
	"guild-economy/internal/ledger"
	"guild-economy/internal/lock"
	"guild-economy/internal/outcome"
	"guild-economy/internal/rng"
	"guild-economy/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricSettleTotal    = expvar.NewInt("settle_total")
	metricSettleRejected = expvar.NewInt("settle_rejected_total")
	metricSettleErrors   = expvar.NewInt("settle_errors_total")
	metricEscrowRefunds  = expvar.NewInt("escrow_refunds_total")
)

var tracer = otel.Tracer("guild-economy/settlement")

// Catalog resolves instrument symbols and enhancement ladders.
type Catalog interface {
	Instrument(symbol string) (outcome.Instrument, error)
	Ladder(item string) (outcome.Ladder, error)
}

type Params struct {
	Symbol   string `json:"symbol,omitempty"`
	Opponent string `json:"opponent,omitempty"`
	Item     string `json:"item,omitempty"`
	Amount   int64  `json:"amount,omitempty"`

	// Admin variants. The caller has already authorized Actor.
	AdminOp       string               `json:"admin_op,omitempty"`
	Actor         string               `json:"actor,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	CooldownScope string               `json:"cooldown_scope,omitempty"`
	Config        *economy.GuildConfig `json:"config,omitempty"`
}

type Request struct {
	// RequestID, when set, makes the call idempotent within the realm.
	RequestID string         `json:"request_id,omitempty"`
	Realm     string         `json:"realm"`
	Account   string         `json:"account"`
	Action    economy.Action `json:"action"`
	Wager     int64          `json:"wager,omitempty"`
	Params    Params         `json:"params"`
}

type Result struct {
	Action     economy.Action      `json:"action"`
	Account    string              `json:"account,omitempty"`
	Delta      int64               `json:"delta"`
	NewBalance int64               `json:"new_balance"`
	Outcome    map[string]any      `json:"outcome"`
	Entries    []store.LedgerEntry `json:"entries"`
	Replayed   bool                `json:"replayed,omitempty"`
}

type Orchestrator struct {
	store   store.Store
	catalog Catalog
	clock   clock.Clock
	rng     rng.Source
	cfg     config.EconomyConfig

	ledger *ledger.Writer
	locks  *lock.Manager
	daily  *time.Location
	duel   outcome.DuelCurve
}

func New(st store.Store, cat Catalog, c clock.Clock, src rng.Source, cfg config.EconomyConfig) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("economy config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.DailyTimezone)
	if err != nil {
		return nil, fmt.Errorf("daily timezone: %w", err)
	}
	curve, err := outcome.NewDuelCurve(cfg.DuelCurve, cfg.DuelSlope, cfg.DuelLogisticK)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:   st,
		catalog: cat,
		clock:   c,
		rng:     src,
		cfg:     cfg,
		ledger:  ledger.New(c),
		daily:   loc,
		duel:    curve,
	}
	o.locks = lock.NewManager(c, o.refundEscrow)
	return o, nil
}

// Settle applies req atomically. Business rejections come back as errors
// matching the economy sentinels and leave no trace in the store.
func (o *Orchestrator) Settle(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("realm", req.Realm),
		attribute.String("account", req.Account),
		attribute.String("action", string(req.Action)),
	))
	defer span.End()
	metricSettleTotal.Add(1)

	res, err := o.settle(ctx, req)
	o.observe(span, req, res, err)
	return res, err
}

func (o *Orchestrator) settle(ctx context.Context, req Request) (Result, error) {
	action, err := economy.ParseAction(string(req.Action))
	if err != nil {
		return Result{}, err
	}
	req.Action = action
	if err := validateTarget(req); err != nil {
		return Result{}, err
	}
	fn, ok := o.handlers()[action]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s has no one-shot settlement", economy.ErrInvalidParameters, action)
	}

	var res Result
	err = o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if req.RequestID != "" {
			claimed, err := tx.ClaimRequest(ctx, req.Realm, req.RequestID, o.clock.Now())
			if err != nil {
				return fmt.Errorf("claim request id: %w", err)
			}
			if !claimed {
				res, err = loadReplay(ctx, tx, req)
				return err
			}
		}
		cfg, err := tx.GetGuildConfig(ctx, req.Realm)
		if err != nil {
			return fmt.Errorf("load guild config: %w", err)
		}
		t := &txn{o: o, tx: tx, req: req, cfg: cfg, group: uuid.NewString()}
		t.res = Result{Action: action, Account: req.Account, Outcome: map[string]any{}}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if err := t.finish(ctx); err != nil {
			return err
		}
		res = t.res
		if req.RequestID != "" {
			body, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			if err := tx.SaveRequestResult(ctx, req.Realm, req.RequestID, body); err != nil {
				return fmt.Errorf("save result: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func loadReplay(ctx context.Context, tx store.Tx, req Request) (Result, error) {
	body, err := tx.LoadRequestResult(ctx, req.Realm, req.RequestID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("%w: %s", economy.ErrDuplicateRequest, req.RequestID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load stored result: %w", err)
	}
	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return Result{}, fmt.Errorf("decode stored result: %w", err)
	}
	if res.Action != req.Action {
		return Result{}, fmt.Errorf("%w: %s was used for %s", economy.ErrDuplicateRequest, req.RequestID, res.Action)
	}
	if res.Account != req.Account {
		return Result{}, fmt.Errorf("%w: %s belongs to another account", economy.ErrDuplicateRequest, req.RequestID)
	}
	res.Replayed = true
	return res, nil
}

func validateTarget(req Request) error {
	if req.Realm == "" {
		return fmt.Errorf("%w: realm is required", economy.ErrInvalidParameters)
	}
	switch req.Action {
	case economy.ActionAdminConfig, economy.ActionAdminResetCooldown:
		return nil
	}
	if req.Account == "" {
		return fmt.Errorf("%w: account is required", economy.ErrInvalidParameters)
	}
	return nil
}

func (o *Orchestrator) observe(span trace.Span, req Request, res Result, err error) {
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int64("delta", res.Delta), attribute.Bool("replayed", res.Replayed))
		log.Debug().
			Str("realm", req.Realm).
			Str("account", req.Account).
			Str("action", string(req.Action)).
			Str("request_id", req.RequestID).
			Int64("delta", res.Delta).
			Int64("balance", res.NewBalance).
			Bool("replayed", res.Replayed).
			Msg("settled")
	case economy.IsRejection(err):
		metricSettleRejected.Add(1)
		span.SetAttributes(attribute.String("rejection", economy.Code(err)))
		log.Info().Err(err).
			Str("realm", req.Realm).
			Str("account", req.Account).
			Str("action", string(req.Action)).
			Msg("settlement rejected")
	default:
		metricSettleErrors.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, economy.Code(err))
		log.Error().Err(err).
			Str("realm", req.Realm).
			Str("account", req.Account).
			Str("action", string(req.Action)).
			Msg("settlement failed")
	}
}

// StartJanitor refunds and clears abandoned in-flight locks every
// JanitorInterval until ctx is done.
func (o *Orchestrator) StartJanitor(ctx context.Context) {
	o.locks.StartJanitor(ctx, o.store, o.cfg.JanitorInterval)
}

// SweepExpired runs one janitor pass.
func (o *Orchestrator) SweepExpired(ctx context.Context) (int, error) {
	return o.locks.Sweep(ctx, o.store)
}

// txn carries one settlement attempt. A fresh txn is built for every store
// retry.
type txn struct {
	o     *Orchestrator
	tx    store.Tx
	req   Request
	cfg   economy.GuildConfig
	group string
	res   Result
}

type handler func(ctx context.Context, t *txn) error

func (o *Orchestrator) handlers() map[economy.Action]handler {
	return map[economy.Action]handler{
		economy.ActionClaim:              settleClaim,
		economy.ActionDaily:              settleDaily,
		economy.ActionWager:              settleWager,
		economy.ActionMarket:             settleMarket,
		economy.ActionEnhance:            settleEnhance,
		economy.ActionDuel:               settleDuel,
		economy.ActionTransfer:           settleTransfer,
		economy.ActionBankruptcy:         settleBankruptcy,
		economy.ActionAdminAdjust:        settleAdminAdjust,
		economy.ActionAdminResetCooldown: settleAdminResetCooldown,
		economy.ActionAdminConfig:        settleAdminConfig,
	}
}

// post applies delta to account and appends the matching entry.
func (t *txn) post(ctx context.Context, account, kind string, delta int64, meta map[string]any) (store.LedgerEntry, error) {
	e, err := t.o.ledger.Post(ctx, t.tx, ledger.Entry{
		Realm:     t.req.Realm,
		Account:   account,
		Kind:      kind,
		Delta:     delta,
		GroupID:   t.group,
		RequestID: t.req.RequestID,
		Metadata:  meta,
	})
	if err != nil {
		return store.LedgerEntry{}, err
	}
	t.res.Entries = append(t.res.Entries, e)
	if account == t.req.Account {
		t.res.Delta += delta
	}
	return e, nil
}

// balance ensures the account exists and locks its row.
func (t *txn) balance(ctx context.Context, account string) (int64, error) {
	if err := t.tx.EnsureAccount(ctx, t.req.Realm, account); err != nil {
		return 0, fmt.Errorf("ensure account %s: %w", account, err)
	}
	bal, err := t.tx.GetBalance(ctx, t.req.Realm, account)
	if err != nil {
		return 0, fmt.Errorf("read balance %s: %w", account, err)
	}
	return bal, nil
}

func (t *txn) key(action string) economy.Key {
	return economy.Key{Realm: t.req.Realm, Account: t.req.Account, Action: action}
}

func (t *txn) finish(ctx context.Context) error {
	if t.req.Account == "" {
		return nil
	}
	bal, err := t.balance(ctx, t.req.Account)
	if err != nil {
		return err
	}
	t.res.NewBalance = bal
	return nil
}
