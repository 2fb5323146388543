package settlement_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"guild-economy/internal/catalog"
	"guild-economy/internal/clock"
	"guild-economy/internal/config"
	"guild-economy/internal/economy"
	"guild-economy/internal/ledger"
	"guild-economy/internal/outcome"
	"guild-economy/internal/rng"
	"guild-economy/internal/settlement"
	"guild-economy/internal/store"
	"guild-economy/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const realm = "guild-1"

var start = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	ctx   context.Context
	store store.Store
	clock *clock.Manual
	o     *settlement.Orchestrator
}

type harnessOption func(*harnessOpts)

type harnessOpts struct {
	cat  settlement.Catalog
	src  rng.Source
	cfg  config.EconomyConfig
	wrap func(store.Store) store.Store
}

func withRNG(src rng.Source) harnessOption { return func(o *harnessOpts) { o.src = src } }
func withCatalog(c settlement.Catalog) harnessOption { return func(o *harnessOpts) { o.cat = c } }
func withEconomy(fn func(*config.EconomyConfig)) harnessOption {
	return func(o *harnessOpts) { fn(&o.cfg) }
}
func withStoreWrapper(fn func(store.Store) store.Store) harnessOption {
	return func(o *harnessOpts) { o.wrap = fn }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	ho := harnessOpts{cat: cat, src: rng.NewSeeded(1), cfg: config.DefaultEconomy()}
	for _, opt := range opts {
		opt(&ho)
	}
	var st store.Store = testutil.OpenSQLiteStore(t)
	if ho.wrap != nil {
		st = ho.wrap(st)
	}
	clk := clock.NewManual(start)
	o, err := settlement.New(st, ho.cat, clk, ho.src, ho.cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &harness{t: t, ctx: context.Background(), store: st, clock: clk, o: o}
}

func (h *harness) settle(req settlement.Request) (settlement.Result, error) {
	h.t.Helper()
	if req.Realm == "" {
		req.Realm = realm
	}
	return h.o.Settle(h.ctx, req)
}

func (h *harness) mustSettle(req settlement.Request) settlement.Result {
	h.t.Helper()
	res, err := h.settle(req)
	if err != nil {
		h.t.Fatalf("settle %s for %s: %v", req.Action, req.Account, err)
	}
	return res
}

func (h *harness) setBalance(account string, amount int64) {
	h.t.Helper()
	h.mustSettle(settlement.Request{
		Account: account,
		Action:  economy.ActionAdminAdjust,
		Params:  settlement.Params{AdminOp: settlement.AdminSet, Amount: amount, Actor: "ops", Reason: "seed"},
	})
}

func (h *harness) configure(cfg economy.GuildConfig) {
	h.t.Helper()
	h.mustSettle(settlement.Request{Action: economy.ActionAdminConfig, Params: settlement.Params{Config: &cfg, Actor: "ops"}})
}

func (h *harness) balance(account string) int64 {
	h.t.Helper()
	bal, err := h.store.GetBalance(h.ctx, realm, account)
	if errors.Is(err, store.ErrNotFound) {
		return 0
	}
	if err != nil {
		h.t.Fatalf("balance %s: %v", account, err)
	}
	return bal
}

func (h *harness) entries(account, kind string) []store.LedgerEntry {
	h.t.Helper()
	out, err := h.store.ListLedgerEntries(h.ctx, store.LedgerFilter{Realm: realm, Account: account, Kind: kind}, 500, 0)
	if err != nil {
		h.t.Fatalf("list entries: %v", err)
	}
	return out
}

func (h *harness) setTier(account, item string, tier int) {
	h.t.Helper()
	if err := h.store.WithTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureAccount(ctx, realm, account); err != nil {
			return err
		}
		return tx.SetTier(ctx, realm, account, item, tier, start)
	}); err != nil {
		h.t.Fatalf("set tier: %v", err)
	}
}

func (h *harness) tier(account, item string) int {
	h.t.Helper()
	var tier int
	if err := h.store.WithTx(h.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		tier, err = tx.GetTier(ctx, realm, account, item)
		return err
	}); err != nil {
		h.t.Fatalf("get tier: %v", err)
	}
	return tier
}

func (h *harness) assertConserved() {
	h.t.Helper()
	bad, err := ledger.Verify(h.ctx, h.store, realm)
	if err != nil {
		h.t.Fatalf("verify: %v", err)
	}
	if len(bad) != 0 {
		h.t.Fatalf("ledger does not explain balances: %+v", bad)
	}
}

type stubCatalog struct {
	instruments map[string]outcome.Instrument
	ladder      outcome.Ladder
}

func (c stubCatalog) Instrument(symbol string) (outcome.Instrument, error) {
	in, ok := c.instruments[symbol]
	if !ok {
		return outcome.Instrument{}, economy.ErrUnknownInstrument
	}
	return in, nil
}

func (c stubCatalog) Ladder(item string) (outcome.Ladder, error) {
	if item != c.ladder.Item {
		return outcome.Ladder{}, economy.ErrInvalidParameters
	}
	return c.ladder, nil
}

func tenTierCatalog() stubCatalog {
	tiers := make([]outcome.Tier, 10)
	for i := range tiers {
		tiers[i] = outcome.Tier{Cost: 100, Success: 50, Fail: 50}
	}
	tiers[9] = outcome.Tier{Cost: 500, Success: 10, Fail: 60, Downgrade: 25, Destroy: 5}
	return stubCatalog{
		ladder: outcome.Ladder{Item: "weapon", Tiers: tiers},
		instruments: map[string]outcome.Instrument{
			"CRASH": {
				Symbol: "CRASH", Name: "Crash Only", Kind: outcome.KindCoin, DesignedEV: -300,
				Buckets: []outcome.Bucket{{Weight: 1, Low: -300.05, High: -299.95}},
			},
		},
	}
}

func TestForcedWinWager(t *testing.T) {
	h := newHarness(t)
	h.configure(economy.GuildConfig{MinWager: 100, WinLoBPS: 3000, WinHiBPS: 6000, ModeLabel: "test", ForceMode: economy.ForceSuccess})
	h.setBalance("alice", 1000)

	res := h.mustSettle(settlement.Request{Account: "alice", Action: economy.ActionWager, Wager: 100})
	if res.Delta != 100 || res.NewBalance != 1100 {
		t.Fatalf("expected +100 to 1100, got %+v", res)
	}
	if len(res.Entries) != 1 || res.Entries[0].Kind != economy.KindWagerSettle || res.Entries[0].BalanceAfter != 1100 {
		t.Fatalf("expected one wager-settle entry at 1100, got %+v", res.Entries)
	}
	if res.Outcome["forced"] != true {
		t.Fatalf("forced flag missing from outcome: %+v", res.Outcome)
	}
	if _, ok := res.Outcome["probability_bps"]; !ok {
		t.Fatalf("probability not recorded: %+v", res.Outcome)
	}
	if got := h.entries("alice", economy.KindWagerSettle); len(got) != 1 {
		t.Fatalf("expected one stored wager-settle, got %d", len(got))
	}
	h.assertConserved()
}

func TestWagerRejectedWithoutFunds(t *testing.T) {
	h := newHarness(t)
	h.configure(economy.GuildConfig{MinWager: 100, WinLoBPS: 3000, WinHiBPS: 6000})
	h.setBalance("bob", 50)
	before := len(h.entries("bob", ""))

	_, err := h.settle(settlement.Request{Account: "bob", Action: economy.ActionWager, Wager: 100})
	if !errors.Is(err, economy.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if h.balance("bob") != 50 {
		t.Fatalf("balance changed to %d", h.balance("bob"))
	}
	if after := len(h.entries("bob", "")); after != before {
		t.Fatalf("rejection wrote %d entries", after-before)
	}

	_, err = h.settle(settlement.Request{Account: "bob", Action: economy.ActionWager, Wager: 40})
	if !errors.Is(err, economy.ErrBelowMinimumWager) {
		t.Fatalf("expected ErrBelowMinimumWager, got %v", err)
	}
}

func TestWagerDrawsAgainstWindow(t *testing.T) {
	src := &rng.Scripted{Ints: []int{1000, 3999, 1000, 4000}}
	h := newHarness(t, withRNG(src))
	h.configure(economy.GuildConfig{MinWager: 100, WinLoBPS: 3000, WinHiBPS: 6000})
	h.setBalance("carol", 1000)

	win := h.mustSettle(settlement.Request{Account: "carol", Action: economy.ActionWager, Wager: 200})
	lose := h.mustSettle(settlement.Request{Account: "carol", Action: economy.ActionWager, Wager: 200})
	if win.Delta != 200 || lose.Delta != -200 || lose.NewBalance != 1000 {
		t.Fatalf("unexpected results: win=%+v lose=%+v", win, lose)
	}
	if src.Remaining() != 0 {
		t.Fatalf("expected every scripted draw consumed")
	}
}

func TestEnhanceFailAtTierNine(t *testing.T) {
	src := &rng.Scripted{Ints: []int{9}}
	h := newHarness(t, withRNG(src), withCatalog(tenTierCatalog()))
	h.setBalance("dave", 1000)
	h.setTier("dave", "weapon", 9)

	res := h.mustSettle(settlement.Request{Account: "dave", Action: economy.ActionEnhance})
	if len(res.Entries) != 2 {
		t.Fatalf("expected fee and result entries, got %+v", res.Entries)
	}
	fee, result := res.Entries[0], res.Entries[1]
	if fee.Kind != economy.KindEnhancementFee || fee.Delta != -500 {
		t.Fatalf("unexpected fee entry: %+v", fee)
	}
	if result.Kind != economy.KindEnhancementResult || result.Metadata["outcome"] != "fail" || result.Delta != 0 {
		t.Fatalf("unexpected result entry: %+v", result)
	}
	if h.tier("dave", "weapon") != 9 {
		t.Fatalf("tier changed on fail")
	}
	if res.NewBalance != 500 {
		t.Fatalf("expected fee charged, balance %d", res.NewBalance)
	}
	h.assertConserved()
}

func TestEnhanceAtMaxTierDoesNotCharge(t *testing.T) {
	src := &rng.Scripted{Ints: []int{0}}
	h := newHarness(t, withRNG(src), withCatalog(tenTierCatalog()))
	h.setBalance("erin", 1000)
	h.setTier("erin", "weapon", 10)
	before := len(h.entries("erin", ""))

	_, err := h.settle(settlement.Request{Account: "erin", Action: economy.ActionEnhance})
	if !errors.Is(err, economy.ErrMaxTierReached) {
		t.Fatalf("expected ErrMaxTierReached, got %v", err)
	}
	if h.balance("erin") != 1000 || len(h.entries("erin", "")) != before {
		t.Fatalf("max tier attempt mutated state")
	}
	if src.Remaining() != 1 {
		t.Fatalf("max tier attempt consumed a draw")
	}
}

func TestEnhanceSuccessAndDestroy(t *testing.T) {
	src := &rng.Scripted{Ints: []int{95, 87}}
	h := newHarness(t, withRNG(src), withCatalog(tenTierCatalog()))
	h.setBalance("fay", 10000)
	h.setTier("fay", "weapon", 8)

	res := h.mustSettle(settlement.Request{Account: "fay", Action: economy.ActionEnhance})
	if res.Outcome["outcome"] != "success" || h.tier("fay", "weapon") != 9 {
		t.Fatalf("expected success to tier 9, got %+v", res.Outcome)
	}
	res = h.mustSettle(settlement.Request{Account: "fay", Action: economy.ActionEnhance})
	if res.Outcome["outcome"] != "destroy" || h.tier("fay", "weapon") != 0 {
		t.Fatalf("expected destroy to tier 0, got %+v", res.Outcome)
	}
	if res.NewBalance != 10000-100-500 {
		t.Fatalf("unexpected balance %d", res.NewBalance)
	}
}

func TestConcurrentClaimsCommitOnce(t *testing.T) {
	h := newHarness(t)
	const n = 16

	var (
		mu        sync.Mutex
		committed int
		rejected  int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := h.o.Settle(h.ctx, settlement.Request{Realm: realm, Account: "gus", Action: economy.ActionClaim})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, economy.ErrCooldownActive):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected claim error: %v", err)
	}
	if committed != 1 || rejected != n-1 {
		t.Fatalf("committed=%d rejected=%d", committed, rejected)
	}
	if h.balance("gus") != 1000 {
		t.Fatalf("expected one payout, balance %d", h.balance("gus"))
	}
}

func TestClaimCooldownCarriesRemaining(t *testing.T) {
	h := newHarness(t)
	h.mustSettle(settlement.Request{Account: "hal", Action: economy.ActionClaim})
	h.clock.Advance(4 * time.Minute)
	_, err := h.settle(settlement.Request{Account: "hal", Action: economy.ActionClaim})
	if remaining, ok := economy.RemainingCooldown(err); !ok || remaining != 6*time.Minute {
		t.Fatalf("expected 6m remaining, got %v (%v)", remaining, err)
	}
	h.clock.Advance(6 * time.Minute)
	res := h.mustSettle(settlement.Request{Account: "hal", Action: economy.ActionClaim})
	if res.NewBalance != 2000 {
		t.Fatalf("expected second claim, balance %d", res.NewBalance)
	}
}

func TestDailyResetsAtLocalMidnight(t *testing.T) {
	h := newHarness(t)
	// 23:30 in Asia/Seoul.
	h.clock.Set(time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC))
	h.mustSettle(settlement.Request{Account: "ivy", Action: economy.ActionDaily})
	_, err := h.settle(settlement.Request{Account: "ivy", Action: economy.ActionDaily})
	if remaining, ok := economy.RemainingCooldown(err); !ok || remaining != 30*time.Minute {
		t.Fatalf("expected 30m to midnight, got %v (%v)", remaining, err)
	}
	h.clock.Advance(30 * time.Minute)
	res := h.mustSettle(settlement.Request{Account: "ivy", Action: economy.ActionDaily})
	if res.NewBalance != 20000 {
		t.Fatalf("expected two dailies, balance %d", res.NewBalance)
	}
}

func TestRequestIDReplaysResult(t *testing.T) {
	h := newHarness(t)
	req := settlement.Request{RequestID: "req-1", Account: "jay", Action: economy.ActionClaim}
	first := h.mustSettle(req)
	second := h.mustSettle(req)
	if !second.Replayed || second.NewBalance != first.NewBalance || second.Delta != first.Delta {
		t.Fatalf("expected replay of %+v, got %+v", first, second)
	}
	if h.balance("jay") != 1000 {
		t.Fatalf("replay paid twice, balance %d", h.balance("jay"))
	}
	_, err := h.settle(settlement.Request{RequestID: "req-1", Account: "jay", Action: economy.ActionDaily})
	if !errors.Is(err, economy.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate request for a different action, got %v", err)
	}

	h.setBalance("kim", 777)
	res, err := h.settle(settlement.Request{RequestID: "req-1", Account: "kim", Action: economy.ActionClaim})
	if !errors.Is(err, economy.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate request for another account, got %+v, %v", res, err)
	}
	if h.balance("kim") != 777 || h.balance("jay") != 1000 {
		t.Fatalf("balances changed: kim=%d jay=%d", h.balance("kim"), h.balance("jay"))
	}
}

func TestSettleLogLevels(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	h := newHarness(t)
	h.mustSettle(settlement.Request{Account: "lee", Action: economy.ActionClaim})
	if strings.Contains(buf.String(), `"message":"settled"`) {
		t.Fatalf("committed settlement logged above debug: %s", buf.String())
	}
	if _, err := h.settle(settlement.Request{Account: "lee", Action: economy.ActionClaim}); err == nil {
		t.Fatal("expected cooldown rejection")
	}
	if !strings.Contains(buf.String(), `"message":"settlement rejected"`) {
		t.Fatalf("rejection not logged at info: %s", buf.String())
	}
}

// failingStore fails ledger inserts of one kind, after earlier writes in the
// same transaction have already landed.
type failingStore struct {
	store.Store
	kind string
}

func (s failingStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingTx{Tx: tx, kind: s.kind})
	})
}

type failingTx struct {
	store.Tx
	kind string
}

var errInjected = errors.New("injected write failure")

func (tx failingTx) InsertLedgerEntry(ctx context.Context, e store.LedgerEntry) error {
	if e.Kind == tx.kind {
		return errInjected
	}
	return tx.Tx.InsertLedgerEntry(ctx, e)
}

func TestFailureAfterDebitRollsBack(t *testing.T) {
	h := newHarness(t, withStoreWrapper(func(st store.Store) store.Store {
		return failingStore{Store: st, kind: economy.KindWagerSettle}
	}))
	h.setBalance("kim", 5000)
	before := len(h.entries("kim", ""))

	_, err := h.settle(settlement.Request{Account: "kim", Action: economy.ActionMarket, Wager: 1000, Params: settlement.Params{Symbol: "SHE"}})
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if h.balance("kim") != 5000 {
		t.Fatalf("escrow leaked, balance %d", h.balance("kim"))
	}
	if len(h.entries("kim", "")) != before {
		t.Fatalf("orphaned ledger entry written")
	}
	h.assertConserved()
}

func TestMarketEscrowsAndSettlesNetReturn(t *testing.T) {
	h := newHarness(t, withRNG(rng.NewSeeded(99)))
	h.setBalance("lee", 100000)

	for i := 0; i < 50; i++ {
		before := h.balance("lee")
		res := h.mustSettle(settlement.Request{Account: "lee", Action: economy.ActionMarket, Wager: 1000, Params: settlement.Params{Symbol: "GYC"}})
		if len(res.Entries) != 2 || res.Entries[0].Kind != economy.KindWagerPlace || res.Entries[1].Kind != economy.KindWagerSettle {
			t.Fatalf("unexpected entries: %+v", res.Entries)
		}
		pnl, _ := res.Outcome["pnl"].(int64)
		if res.Delta != pnl || res.NewBalance != before+pnl {
			t.Fatalf("delta %d does not match pnl %d", res.Delta, pnl)
		}
		if res.NewBalance <= 0 {
			h.setBalance("lee", 100000)
		}
	}
	h.assertConserved()

	_, err := h.settle(settlement.Request{Account: "lee", Action: economy.ActionMarket, Wager: 1000, Params: settlement.Params{Symbol: "NOPE"}})
	if !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected unknown instrument rejection, got %v", err)
	}
}

func TestMarketLossClampedAtDebtFloor(t *testing.T) {
	h := newHarness(t,
		withCatalog(tenTierCatalog()),
		withRNG(&rng.Scripted{Floats: []float64{0, 0.5}}),
		withEconomy(func(c *config.EconomyConfig) { c.DebtFloor = -1000 }),
	)
	h.setBalance("mo", 1000)

	res := h.mustSettle(settlement.Request{Account: "mo", Action: economy.ActionMarket, Wager: 1000, Params: settlement.Params{Symbol: "CRASH"}})
	if res.NewBalance != -1000 || res.Delta != -2000 {
		t.Fatalf("expected clamp to -1000, got %+v", res)
	}
	if res.Outcome["clamped"] != true {
		t.Fatalf("clamp not recorded: %+v", res.Outcome)
	}
	h.assertConserved()
}

func TestDuelMovesStakeBetweenAccounts(t *testing.T) {
	h := newHarness(t, withRNG(&rng.Scripted{Floats: []float64{0.0, 0.99}}))
	h.setBalance("ann", 5000)
	h.setBalance("ben", 3000)
	h.setTier("ann", "weapon", 10)

	res := h.mustSettle(settlement.Request{Account: "ann", Action: economy.ActionDuel, Params: settlement.Params{Opponent: "ben"}})
	if res.Outcome["winner"] != "ann" || res.Delta != 3000 {
		t.Fatalf("expected ann to win min balance, got %+v", res)
	}
	if p := res.Outcome["p"].(float64); p <= 0.5 || p >= 0.9 {
		t.Fatalf("unexpected probability %f", p)
	}
	if h.balance("ann")+h.balance("ben") != 8000 {
		t.Fatalf("duel did not conserve currency")
	}

	_, err := h.settle(settlement.Request{Account: "ann", Action: economy.ActionDuel, Params: settlement.Params{Opponent: "ben"}})
	if !errors.Is(err, economy.ErrBelowMinimumWager) {
		t.Fatalf("expected broke opponent to be rejected, got %v", err)
	}
	_, err = h.settle(settlement.Request{Account: "ann", Action: economy.ActionDuel, Params: settlement.Params{Opponent: "ann"}})
	if !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected self-duel rejection, got %v", err)
	}
	h.assertConserved()
}

func TestTransferChargesFee(t *testing.T) {
	h := newHarness(t, withEconomy(func(c *config.EconomyConfig) { c.TransferFeeBPS = 250 }))
	h.setBalance("cat", 10000)

	res := h.mustSettle(settlement.Request{Account: "cat", Action: economy.ActionTransfer, Params: settlement.Params{Opponent: "dan", Amount: 4000}})
	if res.Delta != -4000 || h.balance("dan") != 3900 {
		t.Fatalf("unexpected transfer: %+v dan=%d", res, h.balance("dan"))
	}
	if len(h.entries("dan", economy.KindTransferIn)) != 1 || len(h.entries("cat", economy.KindTransferOut)) != 1 {
		t.Fatalf("transfer legs missing")
	}

	cases := []struct {
		name   string
		params settlement.Params
		want   error
	}{
		{name: "self", params: settlement.Params{Opponent: "cat", Amount: 2000}, want: economy.ErrInvalidParameters},
		{name: "below minimum", params: settlement.Params{Opponent: "dan", Amount: 500}, want: economy.ErrBelowMinimumWager},
		{name: "above maximum", params: settlement.Params{Opponent: "dan", Amount: 20_000_000}, want: economy.ErrInvalidParameters},
		{name: "insufficient", params: settlement.Params{Opponent: "dan", Amount: 7000}, want: economy.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.settle(settlement.Request{Account: "cat", Action: economy.ActionTransfer, Params: tc.params})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	h.assertConserved()
}

func TestBankruptcyRecoversDebt(t *testing.T) {
	h := newHarness(t, withRNG(&rng.Scripted{Ints: []int{80}}))
	h.setBalance("eve", -5000)

	res := h.mustSettle(settlement.Request{Account: "eve", Action: economy.ActionBankruptcy})
	if res.Delta != 2500 || res.NewBalance != -2500 {
		t.Fatalf("expected half recovery, got %+v", res)
	}
	h.setBalance("eve", 10)
	if _, err := h.settle(settlement.Request{Account: "eve", Action: economy.ActionBankruptcy}); !errors.Is(err, economy.ErrNoDebt) {
		t.Fatalf("expected ErrNoDebt, got %v", err)
	}
	h.assertConserved()
}

func TestAdminAdjustOps(t *testing.T) {
	h := newHarness(t)
	h.setBalance("fin", 100)
	res := h.mustSettle(settlement.Request{Account: "fin", Action: economy.ActionAdminAdjust, Params: settlement.Params{AdminOp: "add", Amount: 50, Actor: "ops", Reason: "bonus"}})
	if res.NewBalance != 150 || res.Entries[0].Metadata["by"] != "ops" {
		t.Fatalf("unexpected add: %+v", res)
	}
	res = h.mustSettle(settlement.Request{Account: "fin", Action: economy.ActionAdminAdjust, Params: settlement.Params{AdminOp: "sub", Amount: 200}})
	if res.NewBalance != -50 {
		t.Fatalf("admin sub should be able to go negative, got %d", res.NewBalance)
	}
	if _, err := h.settle(settlement.Request{Account: "fin", Action: economy.ActionAdminAdjust, Params: settlement.Params{AdminOp: "mul", Amount: 2}}); !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected unknown op rejection, got %v", err)
	}
	h.assertConserved()
}

func TestAdminResetCooldownRealmWide(t *testing.T) {
	h := newHarness(t)
	for _, a := range []string{"gil", "hana"} {
		h.mustSettle(settlement.Request{Account: a, Action: economy.ActionClaim})
	}
	res := h.mustSettle(settlement.Request{Action: economy.ActionAdminResetCooldown, Params: settlement.Params{CooldownScope: "claim", Actor: "ops"}})
	if res.Outcome["cleared"] != 2 {
		t.Fatalf("expected two accounts cleared, got %+v", res.Outcome)
	}
	for _, a := range []string{"gil", "hana"} {
		if len(h.entries(a, economy.KindAdminResetCooldown)) != 1 {
			t.Fatalf("missing audit entry for %s", a)
		}
		h.mustSettle(settlement.Request{Account: a, Action: economy.ActionClaim})
	}
	h.assertConserved()
}

func TestAdminConfigValidates(t *testing.T) {
	h := newHarness(t)
	bad := economy.GuildConfig{MinWager: 10, WinLoBPS: 7000, WinHiBPS: 6000}
	if _, err := h.settle(settlement.Request{Action: economy.ActionAdminConfig, Params: settlement.Params{Config: &bad}}); !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected invalid window rejection, got %v", err)
	}
	h.configure(economy.GuildConfig{MinWager: 10, WinLoBPS: 1000, WinHiBPS: 2000, ModeLabel: "hard"})
	cfg, err := h.store.GetGuildConfig(h.ctx, realm)
	if err != nil || cfg.MinWager != 10 || cfg.ModeLabel != "hard" || cfg.ForceMode != economy.ForceOff {
		t.Fatalf("unexpected stored config %+v (%v)", cfg, err)
	}
}

func TestRandomActionsConserveBalances(t *testing.T) {
	h := newHarness(t, withRNG(rng.NewSeeded(2024)))
	h.configure(economy.GuildConfig{MinWager: 100, WinLoBPS: 3000, WinHiBPS: 6000})
	accounts := []string{"p1", "p2", "p3", "p4"}
	for _, a := range accounts {
		h.setBalance(a, 50000)
	}
	pick := rng.NewSeeded(7)
	for i := 0; i < 200; i++ {
		a := accounts[pick.IntN(len(accounts))]
		b := accounts[pick.IntN(len(accounts))]
		var req settlement.Request
		switch pick.IntN(6) {
		case 0:
			req = settlement.Request{Account: a, Action: economy.ActionWager, Wager: 500}
		case 1:
			req = settlement.Request{Account: a, Action: economy.ActionMarket, Wager: 1000, Params: settlement.Params{Symbol: "MJC"}}
		case 2:
			req = settlement.Request{Account: a, Action: economy.ActionEnhance}
		case 3:
			req = settlement.Request{Account: a, Action: economy.ActionDuel, Wager: 1000, Params: settlement.Params{Opponent: b}}
		case 4:
			req = settlement.Request{Account: a, Action: economy.ActionTransfer, Params: settlement.Params{Opponent: b, Amount: 1500}}
		default:
			req = settlement.Request{Account: a, Action: economy.ActionBankruptcy}
		}
		if _, err := h.settle(req); err != nil && !economy.IsRejection(err) {
			t.Fatalf("step %d %s: %v", i, req.Action, err)
		}
		h.clock.Advance(time.Second)
	}
	h.assertConserved()
}
