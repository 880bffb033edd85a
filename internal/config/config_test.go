package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8765" {
		t.Fatalf("expected default port 8765, got %s", cfg.Port)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("expected 30s heartbeat, got %v", cfg.HeartbeatInterval)
	}
	if !cfg.RequireAuth {
		t.Fatalf("auth should default on")
	}
	if !cfg.RateLimitEnabled {
		t.Fatalf("rate limiting should default on")
	}
	if cfg.RateLimitPublishRequests != 100 {
		t.Fatalf("expected default publish limit 100, got %d", cfg.RateLimitPublishRequests)
	}
	if cfg.MessageLimits.MaxMessageSize != 1048576 {
		t.Fatalf("expected 1 MiB message limit, got %d", cfg.MessageLimits.MaxMessageSize)
	}
	if cfg.NATSURL != "" {
		t.Fatalf("broker ingest should default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HEARTBEAT_INTERVAL", "10")
	t.Setenv("REQUIRE_AUTH", "false")
	t.Setenv("CHANNELS", "announcements,alerts")
	t.Setenv("MAX_CLIENTS_PER_CHANNEL", "50")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Fatalf("expected port 9000, got %s", cfg.Port)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Fatalf("expected 10s heartbeat, got %v", cfg.HeartbeatInterval)
	}
	if cfg.RequireAuth {
		t.Fatalf("auth should be off")
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != "announcements" {
		t.Fatalf("unexpected channels: %v", cfg.Channels)
	}
	if cfg.MaxClientsPerChannel != 50 {
		t.Fatalf("expected channel cap 50, got %d", cfg.MaxClientsPerChannel)
	}
}
