package server

import (
	"testing"
	"time"
)

// TestNewConfigDefaults verifies the out-of-the-box configuration.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.TCPAddr != ":5559" {
		t.Errorf("TCPAddr = %q, want :5559", cfg.TCPAddr)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("MaxMessageSize = %d, want 512", cfg.MaxMessageSize)
	}
	if cfg.HistorySize != 100 {
		t.Errorf("HistorySize = %d, want 100", cfg.HistorySize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("RateLimit = %+v, want burst 5 per second", cfg.RateLimit)
	}
}

// TestNewConfigFromEnv verifies that environment variables override the
// defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("CHAT_TCP_ADDR", ":6000")
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("HISTORY_SIZE", "50")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")

	cfg := NewConfigFromEnv()

	if cfg.TCPAddr != ":6000" {
		t.Errorf("TCPAddr = %q, want :6000", cfg.TCPAddr)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("MaxMessageSize = %d, want 1024", cfg.MaxMessageSize)
	}
	if cfg.HistorySize != 50 {
		t.Errorf("HistorySize = %d, want 50", cfg.HistorySize)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("RateLimit.Burst = %d, want 10", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("RateLimit.RefillInterval = %v, want 2s", cfg.RateLimit.RefillInterval)
	}
}

// TestNewConfigFromEnvIgnoresGarbage verifies that unparsable values fall
// back to the defaults instead of failing startup.
func TestNewConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")
	t.Setenv("HISTORY_SIZE", "-3")
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")

	cfg := NewConfigFromEnv()

	if cfg.MaxMessageSize != 512 {
		t.Errorf("MaxMessageSize = %d, want default 512", cfg.MaxMessageSize)
	}
	if cfg.HistorySize != 100 {
		t.Errorf("HistorySize = %d, want default 100", cfg.HistorySize)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("RateLimit.Burst = %d, want default 5", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("RateLimit.RefillInterval = %v, want default 1s", cfg.RateLimit.RefillInterval)
	}
}
