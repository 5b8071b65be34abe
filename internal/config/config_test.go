package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BOOKING_MIN_ADVANCE", "")
	t.Setenv("CANCELLATION_WINDOW", "")
	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.MinBookingAdvance != 60*time.Minute {
		t.Fatalf("expected default booking advance, got %s", cfg.MinBookingAdvance)
	}
	if cfg.CancellationWindow != 120*time.Minute {
		t.Fatalf("expected default cancellation window, got %s", cfg.CancellationWindow)
	}
	if cfg.GraceWindow != 5*time.Minute {
		t.Fatalf("expected default grace window, got %s", cfg.GraceWindow)
	}
	if cfg.NoShowLookbackDays != 3 {
		t.Fatalf("expected default lookback days, got %d", cfg.NoShowLookbackDays)
	}
	if cfg.NoShowBatchSize != 500 {
		t.Fatalf("expected default batch size, got %d", cfg.NoShowBatchSize)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("CANCELLATION_WINDOW", "90m")
	t.Setenv("NOSHOW_SWEEP_INTERVAL", "30m")
	t.Setenv("NOSHOW_BATCH_SIZE", "250")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.CancellationWindow != 90*time.Minute {
		t.Fatalf("expected cancellation window override, got %s", cfg.CancellationWindow)
	}
	if cfg.NoShowSweepInterval != 30*time.Minute {
		t.Fatalf("expected sweep interval override, got %s", cfg.NoShowSweepInterval)
	}
	if cfg.NoShowBatchSize != 250 {
		t.Fatalf("expected batch size override, got %d", cfg.NoShowBatchSize)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls override")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("NOSHOW_BATCH_SIZE", "lots")
	t.Setenv("GRACE_WINDOW", "soon")
	cfg := Load()
	if cfg.NoShowBatchSize != 500 {
		t.Fatalf("expected malformed int to fall back to default, got %d", cfg.NoShowBatchSize)
	}
	if cfg.GraceWindow != 5*time.Minute {
		t.Fatalf("expected malformed duration to fall back to default, got %s", cfg.GraceWindow)
	}
}
