package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EconomyConfig holds the process-wide settlement tunables. Per-realm knobs
// (minimum wager, odds window, forced outcomes) live in the store.
type EconomyConfig struct {
	ClaimAmount   int64         `env:"CLAIM_AMOUNT" envDefault:"1000"`
	ClaimInterval time.Duration `env:"CLAIM_INTERVAL" envDefault:"10m"`
	DailyAmount   int64         `env:"DAILY_AMOUNT" envDefault:"10000"`
	DailyTimezone string        `env:"DAILY_TIMEZONE" envDefault:"Asia/Seoul"`

	TransferMin    int64 `env:"TRANSFER_MIN" envDefault:"1000"`
	TransferMax    int64 `env:"TRANSFER_MAX" envDefault:"10000000"`
	TransferFeeBPS int64 `env:"TRANSFER_FEE_BPS" envDefault:"0"`

	InFlightTTL     time.Duration `env:"IN_FLIGHT_TTL" envDefault:"30s"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"15s"`

	// DebtFloor is the lowest balance a market loss may leave behind.
	DebtFloor int64 `env:"DEBT_FLOOR" envDefault:"-1000000"`

	DuelCurve     string  `env:"DUEL_CURVE" envDefault:"linear"`
	DuelSlope     float64 `env:"DUEL_SLOPE" envDefault:"0.015"`
	DuelLogisticK float64 `env:"DUEL_LOGISTIC_K" envDefault:"0.25"`

	EnhanceItem string `env:"ENHANCE_ITEM" envDefault:"weapon"`

	TxRetryAttempts int `env:"TX_RETRY_ATTEMPTS" envDefault:"8"`
}

func LoadEconomy() (EconomyConfig, error) {
	var cfg EconomyConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c EconomyConfig) Validate() error {
	if c.ClaimAmount < 0 || c.DailyAmount < 0 {
		return fmt.Errorf("claim amounts must not be negative")
	}
	if c.TransferMin <= 0 || c.TransferMax < c.TransferMin {
		return fmt.Errorf("transfer bounds must satisfy 0 < min <= max")
	}
	if c.TransferFeeBPS < 0 || c.TransferFeeBPS > 10000 {
		return fmt.Errorf("TRANSFER_FEE_BPS must be within 0..10000")
	}
	if c.DebtFloor > 0 {
		return fmt.Errorf("DEBT_FLOOR must not be positive")
	}
	if c.InFlightTTL <= 0 {
		return fmt.Errorf("IN_FLIGHT_TTL must be positive")
	}
	if _, err := time.LoadLocation(c.DailyTimezone); err != nil {
		return fmt.Errorf("DAILY_TIMEZONE: %w", err)
	}
	switch c.DuelCurve {
	case "linear", "logistic":
	default:
		return fmt.Errorf("unknown DUEL_CURVE %q", c.DuelCurve)
	}
	return nil
}

// DefaultEconomy returns the economy config with every default applied.
func DefaultEconomy() EconomyConfig {
	var cfg EconomyConfig
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}
