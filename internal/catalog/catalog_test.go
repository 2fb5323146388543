package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"guild-economy/internal/economy"
	"guild-economy/internal/outcome"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	all := c.Instruments()
	if len(all) != 7 {
		t.Fatalf("expected 7 instruments, got %d", len(all))
	}
	if all[0].Kind != outcome.KindStock {
		t.Fatalf("expected stocks first, got %s", all[0].Kind)
	}
	in, err := c.Instrument(" she ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if in.Symbol != "SHE" || in.Kind != outcome.KindStock {
		t.Fatalf("unexpected instrument: %+v", in)
	}

	l, err := c.Ladder("weapon")
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	if l.MaxTier() != 30 {
		t.Fatalf("expected 30 tiers, got %d", l.MaxTier())
	}
	if l.Tiers[0].Cost != 5000 || l.Tiers[0].Success != 95 {
		t.Fatalf("unexpected tier 0: %+v", l.Tiers[0])
	}
	if l.Tiers[9].Success != 68 || l.Tiers[9].Fail != 32 {
		t.Fatalf("unexpected tier 9: %+v", l.Tiers[9])
	}
	if l.Tiers[10].Downgrade != 40 || l.Tiers[10].Fail != 0 {
		t.Fatalf("unexpected tier 10: %+v", l.Tiers[10])
	}
	if l.Tiers[29].Success != 3 || l.Tiers[29].Destroy != 2 {
		t.Fatalf("unexpected tier 29: %+v", l.Tiers[29])
	}
	for n := 1; n < l.MaxTier(); n++ {
		if l.Tiers[n].Cost <= l.Tiers[n-1].Cost {
			t.Fatalf("cost not increasing at tier %d", n)
		}
	}
}

func TestUnknownLookups(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := c.Instrument("NOPE"); !errors.Is(err, economy.ErrUnknownInstrument) {
		t.Fatalf("expected unknown instrument, got %v", err)
	}
	if _, err := c.Ladder("shield"); !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected invalid parameters, got %v", err)
	}
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, instrumentsFile, `
instruments:
  - symbol: she
    name: Override
    kind: stock
    designed_ev: 1
    buckets:
      - {weight: 1, low: 0, high: 2}
  - symbol: NEW
    name: Newcomer
    kind: coin
    designed_ev: 0
    buckets:
      - {weight: 1, low: -10, high: 10}
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	in, err := c.Instrument("SHE")
	if err != nil || in.Name != "Override" {
		t.Fatalf("expected override, got %+v (%v)", in, err)
	}
	if len(c.Instruments()) != 8 {
		t.Fatalf("expected 8 instruments, got %d", len(c.Instruments()))
	}
	if _, err := c.Ladder("weapon"); err != nil {
		t.Fatalf("embedded ladder lost: %v", err)
	}
}

func TestReloadKeepsTablesOnError(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	writeFile(t, dir, laddersFile, `
ladders:
  - item: weapon
    tiers:
      - {cost: 10, success: 50, fail: 40, downgrade: 0, destroy: 0}
`)
	if err := c.Reload(); !errors.Is(err, economy.ErrInvalidParameters) {
		t.Fatalf("expected validation error, got %v", err)
	}
	l, err := c.Ladder("weapon")
	if err != nil || l.MaxTier() != 30 {
		t.Fatalf("previous ladder should survive a failed reload: %v", err)
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
