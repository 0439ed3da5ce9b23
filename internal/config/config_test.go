package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
	if cfg.EndpointID == "" {
		t.Fatalf("expected a generated endpoint id")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("CONDUIT_LISTEN_ADDRESS", "127.0.0.1:7777")
	t.Setenv("CONDUIT_TRANSPORT", "QUIC")
	t.Setenv("CONDUIT_PING_INTERVAL", "2s")
	t.Setenv("CONDUIT_DRAIN_BATCH", "16")
	t.Setenv("CONDUIT_ALLOWED_ORIGINS", "a.example.com, b.example.com")
	t.Setenv("CONDUIT_HISTORY_ENABLED", "1")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("expected env load to succeed, got %v", err)
	}

	if cfg.ListenAddress != "127.0.0.1:7777" {
		t.Fatalf("expected listen address override, got %q", cfg.ListenAddress)
	}
	if cfg.Transport != TransportQUIC {
		t.Fatalf("expected transport quic, got %q", cfg.Transport)
	}
	if cfg.PingInterval != 2*time.Second {
		t.Fatalf("expected 2s ping interval, got %v", cfg.PingInterval)
	}
	if cfg.DrainBatch != 16 {
		t.Fatalf("expected drain batch 16, got %d", cfg.DrainBatch)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example.com" {
		t.Fatalf("expected trimmed origin list, got %v", cfg.AllowedOrigins)
	}
	if !cfg.HistoryEnabled {
		t.Fatalf("expected history enabled")
	}
}

func TestLoadFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("CONDUIT_PING_INTERVAL", "soon")

	cfg := DefaultConfig()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Fatalf("expected error for invalid ping interval")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.yaml")
	data := []byte("listen_address: 127.0.0.1:9100\ntransport: quic\nflush_interval: 5ms\nunreliable_queue_cap: 32\nhistory_enabled: true\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("expected file load to succeed, got %v", err)
	}

	if cfg.ListenAddress != "127.0.0.1:9100" {
		t.Fatalf("expected listen address from file, got %q", cfg.ListenAddress)
	}
	if cfg.Transport != TransportQUIC {
		t.Fatalf("expected transport quic, got %q", cfg.Transport)
	}
	if cfg.FlushInterval != 5*time.Millisecond {
		t.Fatalf("expected 5ms flush interval, got %v", cfg.FlushInterval)
	}
	if cfg.UnreliableQueueCap != 32 {
		t.Fatalf("expected queue cap 32, got %d", cfg.UnreliableQueueCap)
	}
	if !cfg.HistoryEnabled {
		t.Fatalf("expected history enabled from file")
	}
	// Untouched keys keep their defaults.
	if cfg.DrainBatch != 64 {
		t.Fatalf("expected default drain batch, got %d", cfg.DrainBatch)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad transport", func(c *Config) { c.Transport = "carrier-pigeon" }},
		{"no port", func(c *Config) { c.ListenAddress = "localhost" }},
		{"zero drain batch", func(c *Config) { c.DrainBatch = 0 }},
		{"zero queue cap", func(c *Config) { c.UnreliableQueueCap = 0 }},
		{"cert without key", func(c *Config) { c.TLSCertFile = "cert.pem" }},
		{"history without path", func(c *Config) { c.HistoryEnabled = true; c.HistoryPath = "" }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected validation to reject %s", tc.name)
		}
	}
}

func TestOptionsDerivation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlushInterval = 7 * time.Millisecond
	cfg.DrainBatch = 9

	opts := cfg.Options()
	if opts.FlushInterval != 7*time.Millisecond || opts.DrainBatch != 9 {
		t.Fatalf("expected options to mirror config, got %+v", opts)
	}
}
