package config

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v; want nil", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero threshold", func(c *Config) { c.BatchThreshold = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"single image batches", func(c *Config) { c.BatchSize = 1 }},
		{"concurrency above cap", func(c *Config) { c.BatchConcurrency = MaxBatchConcurrency + 1 }},
		{"concurrency zero", func(c *Config) { c.BatchConcurrency = 0 }},
		{"crf out of range", func(c *Config) { c.DefaultCRF = 60 }},
		{"negative encode timeout", func(c *Config) { c.EncodeTimeout = -time.Second }},
		{"zero tolerance", func(c *Config) { c.DurationTolerance = 0 }},
		{"music too loud", func(c *Config) { c.MusicVolume = 1.5 }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			c.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() = nil; want error")
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("COMPOSER_BATCH_THRESHOLD", "8")
	t.Setenv("COMPOSER_BATCH_CONCURRENCY", "2")
	t.Setenv("COMPOSER_ENCODE_TIMEOUT", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BatchThreshold != 8 {
		t.Fatalf("BatchThreshold = %d; want 8", cfg.BatchThreshold)
	}
	if cfg.BatchConcurrency != 2 {
		t.Fatalf("BatchConcurrency = %d; want 2", cfg.BatchConcurrency)
	}
	if cfg.EncodeTimeout != 90*time.Second {
		t.Fatalf("EncodeTimeout = %v; want 90s", cfg.EncodeTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q; want debug", cfg.LogLevel)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("BatchSize = %d; want default %d", cfg.BatchSize, DefaultBatchSize)
	}
}
