package config

import "testing"

func TestLoadLogDefaults(t *testing.T) {
	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "info" || cfg.MaxMB != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadLogNormalizesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")

	cfg, err := LoadLog()
	if err != nil {
		t.Fatalf("LoadLog() error = %v", err)
	}
	if cfg.Level != "debug" {
		t.Fatalf("Level = %q, want debug", cfg.Level)
	}
}

func TestLoadLogRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown level":    {"LOG_LEVEL": "loud"},
		"file without cap": {"LOG_FILE": "/tmp/ledger.log", "LOG_MAX_MB": "0"},
	}
	for name, envs := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range envs {
				t.Setenv(k, v)
			}
			if _, err := LoadLog(); err == nil {
				t.Fatal("LoadLog() expected error")
			}
		})
	}
}
