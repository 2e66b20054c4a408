package model

import "time"

// Theme is the persisted display preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ValidTheme reports whether s names a known theme.
func ValidTheme(s string) bool {
	switch Theme(s) {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// User stores Telegram user metadata and per-user preferences.
type User struct {
	ID             uint  `gorm:"primaryKey"`
	TelegramID     int64 `gorm:"uniqueIndex"`
	ChatID         int64 `gorm:"index"`
	FirstName      string
	LastName       string
	Username       string
	Theme          string `gorm:"default:system"`
	AdvisorySentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
