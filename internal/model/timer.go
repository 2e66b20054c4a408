package model

import "time"

// TimerStatus is the lifecycle state of a countdown timer.
type TimerStatus string

const (
	StatusIdle      TimerStatus = "idle"
	StatusRunning   TimerStatus = "running"
	StatusPaused    TimerStatus = "paused"
	StatusCompleted TimerStatus = "completed"
)

// RecurInterval describes how often a recurring timer repeats.
type RecurInterval string

const (
	RecurDaily   RecurInterval = "daily"
	RecurWeekly  RecurInterval = "weekly"
	RecurMonthly RecurInterval = "monthly"
)

// MaxDuration caps a single countdown at 24 hours.
const MaxDuration = 86400

// Recurrence marks a timer that restarts itself on natural completion.
// An absent Recurrence on a stored timer means disabled.
type Recurrence struct {
	Enabled  bool          `json:"enabled"`
	Interval RecurInterval `json:"interval"`
}

// Timer is a single labeled countdown. The collection of timers is
// persisted as one ordered JSON array, so fields carry json tags rather
// than gorm column mappings.
//
// Remaining is the authoritative countdown value shown to the user, but
// while the timer is running it is always re-derived from StartedAt and
// Duration against the wall clock, never decremented in place.
type Timer struct {
	ID             string      `json:"id"`
	Label          string      `json:"label"`
	Duration       int         `json:"duration"`
	Remaining      int         `json:"remainingTime"`
	Status         TimerStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	PausedAt       *time.Time  `json:"pausedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	NotificationID string      `json:"notificationId,omitempty"`
	Recurring      *Recurrence `json:"recurring,omitempty"`
}

// IsRecurring reports whether the timer restarts on completion.
func (t *Timer) IsRecurring() bool {
	return t.Recurring != nil && t.Recurring.Enabled
}
