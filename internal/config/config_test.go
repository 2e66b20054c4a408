package config

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	if got := parseDuration("2s"); got != 2*time.Second {
		t.Errorf("parseDuration(2s) = %s", got)
	}
	if got := parseDuration("250ms"); got != 250*time.Millisecond {
		t.Errorf("parseDuration(250ms) = %s", got)
	}
	for _, bad := range []string{"", "-1s", "0", "soon"} {
		if got := parseDuration(bad); got != 0 {
			t.Errorf("parseDuration(%q) = %s, want 0", bad, got)
		}
	}
}

func TestParseChatID(t *testing.T) {
	if got := parseChatID("123456789"); got != 123456789 {
		t.Errorf("parseChatID = %d", got)
	}
	if got := parseChatID("-1001234"); got != -1001234 {
		t.Errorf("group chat id = %d", got)
	}
	for _, bad := range []string{"", "abc", "12.5"} {
		if got := parseChatID(bad); got != 0 {
			t.Errorf("parseChatID(%q) = %d, want 0", bad, got)
		}
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("Load must fail without TELEGRAM_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "test-token")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TICK_INTERVAL", "")
	t.Setenv("SAVE_DEBOUNCE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "tickdown.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %s, want 1s", cfg.TickInterval)
	}
	if cfg.SaveDebounce != 500*time.Millisecond {
		t.Errorf("SaveDebounce = %s, want 500ms", cfg.SaveDebounce)
	}
}
