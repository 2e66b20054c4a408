package service

import (
	"time"

	"tickdown/internal/model"
)

// RecalculateRemaining derives a timer's true remaining seconds from its
// start timestamp and the given wall-clock time. For anything other than
// a running timer the stored value is authoritative and returned as is.
//
// Deriving from (StartedAt, Duration) instead of decrementing a counter
// means a process that slept for an arbitrary interval still reports the
// correct countdown on the next call.
func RecalculateRemaining(t *model.Timer, now time.Time) int {
	if t.Status != model.StatusRunning || t.StartedAt == nil {
		return t.Remaining
	}

	elapsed := int(now.Sub(*t.StartedAt) / time.Second)
	if elapsed < 0 {
		// Clock went backwards; keep the full duration rather than
		// overshooting it.
		elapsed = 0
	}

	remaining := t.Duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ShouldComplete reports whether a running timer has counted down to zero.
func ShouldComplete(t *model.Timer, now time.Time) bool {
	return t.Status == model.StatusRunning && RecalculateRemaining(t, now) == 0
}
