package economy

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCooldownErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("settle: %w", &CooldownError{Key: CooldownClaim, Remaining: 90 * time.Second})
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatal("expected errors.Is(err, ErrCooldownActive)")
	}
	got, ok := RemainingCooldown(err)
	if !ok || got != 90*time.Second {
		t.Fatalf("RemainingCooldown = %v, %v", got, ok)
	}
	if Code(err) != "cooldown_active" {
		t.Fatalf("Code = %q", Code(err))
	}
}

func TestCodeFallsBackToParent(t *testing.T) {
	if got := Code(ErrSelfTarget); got != "invalid_parameters" {
		t.Fatalf("Code(ErrSelfTarget) = %q, want invalid_parameters", got)
	}
	if got := Code(errors.New("boom")); got != "internal_error" {
		t.Fatalf("Code(boom) = %q", got)
	}
	if IsRejection(ErrStoreUnavailable) {
		t.Fatal("store_unavailable must not count as a rejection")
	}
}

func TestForceFor(t *testing.T) {
	cfg := DefaultGuildConfig("r1")
	if cfg.ForceFor("a") != ForceOff {
		t.Fatal("default config must not force")
	}
	cfg.ForceMode = ForceSuccess
	cfg.ForceAccount = "a"
	if cfg.ForceFor("a") != ForceSuccess {
		t.Fatal("scoped force must apply to its account")
	}
	if cfg.ForceFor("b") != ForceOff {
		t.Fatal("scoped force must not apply to other accounts")
	}
}

func TestGuildConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*GuildConfig)
		ok   bool
	}{
		{name: "default", mut: func(*GuildConfig) {}, ok: true},
		{name: "inverted window", mut: func(c *GuildConfig) { c.WinLoBPS, c.WinHiBPS = 7000, 6000 }},
		{name: "window above 100%", mut: func(c *GuildConfig) { c.WinHiBPS = 10001 }},
		{name: "negative min", mut: func(c *GuildConfig) { c.MinWager = -1 }},
		{name: "bad force", mut: func(c *GuildConfig) { c.ForceMode = "sometimes" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGuildConfig("r")
			tt.mut(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("Validate() = %v, want invalid_parameters", err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction(" Market "); err != nil || a != ActionMarket {
		t.Fatalf("ParseAction = %q, %v", a, err)
	}
	if _, err := ParseAction("lottery"); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("ParseAction(lottery) = %v", err)
	}
}
