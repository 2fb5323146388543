// Package economy holds the vocabulary shared by the store, the outcome
// engine and the settlement orchestrator.
package economy

import (
	"fmt"
	"strings"
)

// Action names a settlement operation a caller can request.
type Action string

const (
	ActionClaim              Action = "claim"
	ActionDaily              Action = "daily"
	ActionWager              Action = "wager"
	ActionMarket             Action = "market"
	ActionEnhance            Action = "enhance"
	ActionDuel               Action = "duel"
	ActionTransfer           Action = "transfer"
	ActionBankruptcy         Action = "bankruptcy"
	ActionAdminAdjust        Action = "admin-adjust"
	ActionAdminResetCooldown Action = "admin-reset-cooldown"
	ActionAdminConfig        Action = "admin-config"
)

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionClaim, ActionDaily, ActionWager, ActionMarket, ActionEnhance,
		ActionDuel, ActionTransfer, ActionBankruptcy, ActionAdminAdjust,
		ActionAdminResetCooldown, ActionAdminConfig:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidParameters, s)
}

// Ledger entry kinds.
const (
	KindClaim              = "claim"
	KindDaily              = "daily"
	KindWagerPlace         = "wager-place"
	KindWagerSettle        = "wager-settle"
	KindEnhancementFee     = "enhancement-fee"
	KindEnhancementResult  = "enhancement-result"
	KindDuelWin            = "duel-win"
	KindDuelLose           = "duel-lose"
	KindTransferOut        = "transfer-out"
	KindTransferIn         = "transfer-in"
	KindBankruptcy         = "bankruptcy"
	KindAdminSet           = "admin-set"
	KindAdminAdd           = "admin-add"
	KindAdminSub           = "admin-sub"
	KindAdminResetCooldown = "admin-reset-cooldown"
	KindEscrowRefund       = "escrow-refund"
)

// Cooldown keys stamped on accounts.
const (
	CooldownClaim = "claim"
	CooldownDaily = "daily"
)

// Key identifies an account-scoped lock or cooldown.
type Key struct {
	Realm   string
	Account string
	Action  string
}

func (k Key) String() string {
	return k.Realm + "/" + k.Account + "/" + k.Action
}

// ForceMode overrides the flat-odds draw for controlled testing.
type ForceMode string

const (
	ForceOff     ForceMode = "off"
	ForceSuccess ForceMode = "force-success"
	ForceFail    ForceMode = "force-fail"
)

func ParseForceMode(s string) (ForceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return ForceOff, nil
	case "force-success", "success":
		return ForceSuccess, nil
	case "force-fail", "fail":
		return ForceFail, nil
	}
	return "", fmt.Errorf("%w: unknown force mode %q", ErrInvalidParameters, s)
}

// GuildConfig holds the per-realm tunables.
type GuildConfig struct {
	Realm     string    `json:"realm"`
	MinWager  int64     `json:"min_wager"`
	WinLoBPS  int       `json:"win_lo_bps"`
	WinHiBPS  int       `json:"win_hi_bps"`
	ModeLabel string    `json:"mode_label"`
	ForceMode ForceMode `json:"force_mode"`
	// ForceAccount scopes ForceMode to one account. Empty applies realm-wide.
	ForceAccount string `json:"force_account,omitempty"`
}

func DefaultGuildConfig(realm string) GuildConfig {
	return GuildConfig{
		Realm:     realm,
		MinWager:  1000,
		WinLoBPS:  3000,
		WinHiBPS:  6000,
		ModeLabel: "normal",
		ForceMode: ForceOff,
	}
}

// ForceFor returns the override that applies to account.
func (c GuildConfig) ForceFor(account string) ForceMode {
	if c.ForceMode == "" || c.ForceMode == ForceOff {
		return ForceOff
	}
	if c.ForceAccount != "" && c.ForceAccount != account {
		return ForceOff
	}
	return c.ForceMode
}

func (c GuildConfig) Validate() error {
	if c.MinWager < 0 {
		return fmt.Errorf("%w: min wager must not be negative", ErrInvalidParameters)
	}
	if c.WinLoBPS < 0 || c.WinHiBPS > 10000 || c.WinLoBPS > c.WinHiBPS {
		return fmt.Errorf("%w: odds window must satisfy 0 <= lo <= hi <= 10000", ErrInvalidParameters)
	}
	switch c.ForceMode {
	case "", ForceOff, ForceSuccess, ForceFail:
	default:
		return fmt.Errorf("%w: unknown force mode %q", ErrInvalidParameters, c.ForceMode)
	}
	return nil
}
