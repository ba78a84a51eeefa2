package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Hesitation.PauseAfter != 6*time.Second {
		t.Errorf("PauseAfter = %v, want 6s", cfg.Hesitation.PauseAfter)
	}
	if cfg.Hesitation.ExtendedAfter != 12*time.Second {
		t.Errorf("ExtendedAfter = %v, want 12s", cfg.Hesitation.ExtendedAfter)
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("Gateway.Timeout = %v, want 30s", cfg.Gateway.Timeout)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should mean development mode")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HESITATION_PAUSE_AFTER", "2s")
	t.Setenv("HESITATION_EXTENDED_AFTER", "5s")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("TRANSCRIPT_LOG_ENABLED", "off")
	t.Setenv("FRONTEND_URL", "https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Hesitation.PauseAfter != 2*time.Second {
		t.Errorf("PauseAfter = %v", cfg.Hesitation.PauseAfter)
	}
	if cfg.RateLimit.RequestsPerWindow != 5 {
		t.Errorf("RequestsPerWindow = %d", cfg.RateLimit.RequestsPerWindow)
	}
	if cfg.TranscriptLog.Enabled {
		t.Error("TRANSCRIPT_LOG_ENABLED=off should disable transcript logging")
	}
	if cfg.IsDevelopment() {
		t.Error("production FRONTEND_URL should not mean development mode")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HESITATION_PAUSE_AFTER", "10s")
	t.Setenv("HESITATION_EXTENDED_AFTER", "5s")

	if _, err := Load(); err == nil {
		t.Fatal("extended window shorter than pause window should fail validation")
	}
}

func TestEnvParsersFallBack(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	if got := getEnvInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvInt fallback = %d, want 7", got)
	}

	t.Setenv("SOME_BOOL", "maybe")
	if got := getEnvBool("SOME_BOOL", true); got != true {
		t.Errorf("getEnvBool fallback = %v, want true", got)
	}

	t.Setenv("SOME_DURATION", "eleven")
	if got := getEnvDuration("SOME_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration fallback = %v, want 1m", got)
	}
}
