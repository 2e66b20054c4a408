package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"tickdown/internal/model"
)

// FormatClock renders seconds as MM:SS, or HH:MM:SS once hours appear.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Progress returns the completed share of the countdown in percent.
func Progress(t model.Timer) int {
	if t.Duration == 0 {
		return 0
	}
	return (t.Duration - t.Remaining) * 100 / t.Duration
}

// ParseDurationInput understands the forms users actually type:
// "25" (minutes), "1:30:00" / "25:00" (clock), "1h30m" / "90s" (Go style).
func ParseDurationInput(raw string) (hours, minutes, seconds int, err error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, 0, 0, fmt.Errorf("empty duration")
	}

	if strings.Contains(text, ":") {
		return parseClock(text)
	}

	if n, convErr := strconv.Atoi(text); convErr == nil {
		if n <= 0 {
			return 0, 0, 0, fmt.Errorf("duration must be positive")
		}
		return n / 60, n % 60, 0, nil
	}

	d, parseErr := time.ParseDuration(text)
	if parseErr != nil || d <= 0 {
		return 0, 0, 0, fmt.Errorf("cannot parse duration %q", raw)
	}
	total := int(d / time.Second)
	return total / 3600, (total % 3600) / 60, total % 60, nil
}

func parseClock(text string) (hours, minutes, seconds int, err error) {
	parts := strings.Split(text, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("expected MM:SS or HH:MM:SS, got %q", text)
	}

	nums := make([]int, len(parts))
	for i, part := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(part))
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("expected MM:SS or HH:MM:SS, got %q", text)
		}
		nums[i] = n
	}

	if len(nums) == 2 {
		return 0, nums[0], nums[1], nil
	}
	return nums[0], nums[1], nums[2], nil
}

func statusIcon(t model.Timer) string {
	switch t.Status {
	case model.StatusRunning:
		return "▶️"
	case model.StatusPaused:
		return "⏸"
	case model.StatusCompleted:
		return "✅"
	default:
		return "🕐"
	}
}

// formatTimerLine renders one list entry: icon, label, countdown,
// progress, and the recurrence tag when set.
func formatTimerLine(index int, t model.Timer) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s <b>%d. %s</b>", statusIcon(t), index+1, html.EscapeString(t.Label)))
	if t.IsRecurring() {
		sb.WriteString(fmt.Sprintf(" ♻️ <i>%s</i>", t.Recurring.Interval))
	}
	sb.WriteString(fmt.Sprintf("\n   %s / %s · %d%%",
		FormatClock(t.Remaining), FormatClock(t.Duration), Progress(t)))

	switch t.Status {
	case model.StatusPaused:
		sb.WriteString(" · paused")
	case model.StatusCompleted:
		sb.WriteString(" · done")
	}

	sb.WriteByte('\n')
	return sb.String()
}

func shortLabel(label string, max int) string {
	label = strings.TrimSpace(label)
	runes := []rune(label)
	if len(runes) <= max {
		return label
	}
	return string(runes[:max-1]) + "…"
}
