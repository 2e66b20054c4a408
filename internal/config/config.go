package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	OwnerChatID   int64
	TickInterval  time.Duration
	SaveDebounce  time.Duration
	SummaryTime   string // HH:MM, empty disables the daily summary
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OwnerChatID:   parseChatID(strings.TrimSpace(os.Getenv("OWNER_CHAT_ID"))),
		TickInterval:  parseDuration(strings.TrimSpace(os.Getenv("TICK_INTERVAL"))),
		SaveDebounce:  parseDuration(strings.TrimSpace(os.Getenv("SAVE_DEBOUNCE"))),
		SummaryTime:   strings.TrimSpace(os.Getenv("SUMMARY_TIME")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "tickdown.db"
	}

	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}

	if cfg.SaveDebounce == 0 {
		cfg.SaveDebounce = 500 * time.Millisecond
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func parseChatID(raw string) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
