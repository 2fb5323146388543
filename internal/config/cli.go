package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// CLIConfig configures ledgerctl.
type CLIConfig struct {
	APIBaseURL  string `env:"LEDGER_API_URL" envDefault:"http://localhost:8080"`
	APIKey      string `env:"LEDGER_API_KEY"`
	AdminAPIKey string `env:"LEDGER_ADMIN_KEY"`
	Actor       string `env:"LEDGER_ACTOR"`
	Realm       string `env:"LEDGER_REALM"`
}

func LoadCLI() (CLIConfig, error) {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("LEDGER_API_URL is required")
	}
	return cfg, nil
}
