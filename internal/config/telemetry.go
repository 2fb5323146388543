package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type TelemetryConfig struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"guild-economy"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	// SampleRatio applies to root spans; children follow their parent.
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func LoadTelemetry() (TelemetryConfig, error) {
	var cfg TelemetryConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return cfg, fmt.Errorf("OTEL_SAMPLE_RATIO must be within 0..1")
	}
	return cfg, nil
}
