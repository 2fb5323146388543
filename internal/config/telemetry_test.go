package config

import "testing"

func TestLoadTelemetryDefaults(t *testing.T) {
	cfg, err := LoadTelemetry()
	if err != nil {
		t.Fatalf("LoadTelemetry() error = %v", err)
	}
	if cfg.Endpoint != "" || cfg.ServiceName != "guild-economy" {
		t.Fatalf("unexpected telemetry config: %+v", cfg)
	}
}

func TestLoadTelemetryRejectsSampleRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "1.5")
	if _, err := LoadTelemetry(); err == nil {
		t.Fatal("expected sample ratio error")
	}
}
