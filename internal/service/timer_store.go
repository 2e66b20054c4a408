package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tickdown/internal/model"
)

var (
	// ErrInvalidDuration rejects durations outside (0, 24h].
	ErrInvalidDuration = errors.New("duration must be between 1 second and 24 hours")
	// ErrMissingLabel rejects a blank label where one is required.
	ErrMissingLabel = errors.New("label is required")
	// ErrTimerNotFound means the target id is not in the collection.
	ErrTimerNotFound = errors.New("timer not found")
	// ErrBadPermutation means a reorder request does not cover the
	// current id set exactly.
	ErrBadPermutation = errors.New("reorder list is not a permutation of current timers")
)

// DefaultLabel is used when a timer is created with a blank label.
const DefaultLabel = "Untitled Timer"

// Notifier arms and disarms the single completion alert of a timer.
// Scheduling may fail (no chat bound yet, delivery error); the store
// treats that as degraded, never fatal. Cancel is idempotent.
type Notifier interface {
	Schedule(timerID, label string, delay time.Duration) (string, error)
	Cancel(handle string)
}

// Persister stores the ordered timer collection as one blob. Save is
// debounced and fire-and-forget; Flush forces any pending write out.
type Persister interface {
	Load(ctx context.Context) []model.Timer
	Save(timers []model.Timer)
	Flush()
}

// TimerInput is the add-timer form data coming from the presentation layer.
type TimerInput struct {
	Label             string
	Hours             int
	Minutes           int
	Seconds           int
	Recurring         bool
	RecurringInterval model.RecurInterval
}

// TotalSeconds folds the hour/minute/second fields into one duration.
func (in TimerInput) TotalSeconds() int {
	return in.Hours*3600 + in.Minutes*60 + in.Seconds
}

// ValidateLabel trims s and rejects the empty result. Used by input
// flows that re-prompt instead of falling back to DefaultLabel.
func ValidateLabel(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrMissingLabel
	}
	return trimmed, nil
}

// TimerStore is the sole owner and mutator of the timer collection.
// Every operation updates in-memory state synchronously, triggers one
// debounced persistence write, and performs at most one notification
// schedule/cancel pair. Mutations arrive from the bot goroutine and the
// cron tick, so the collection sits behind a mutex.
type TimerStore struct {
	mu        sync.Mutex
	timers    []*model.Timer
	persister Persister
	notifier  Notifier
	now       func() time.Time
	loaded    bool
}

func NewTimerStore(persister Persister, notifier Notifier, now func() time.Time) *TimerStore {
	if now == nil {
		now = time.Now
	}
	return &TimerStore{
		persister: persister,
		notifier:  notifier,
		now:       now,
	}
}

// Load initializes the collection from storage, reconciles every running
// timer against the wall clock (timers that expired while the process was
// down complete or restart immediately), and re-arms notifications for
// the survivors. Storage failures yield an empty collection.
func (s *TimerStore) Load(ctx context.Context) {
	timers := s.persister.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.timers = s.timers[:0]
	for i := range timers {
		t := timers[i]
		normalize(&t)
		s.timers = append(s.timers, &t)
	}
	s.loaded = true

	s.advanceLocked(s.now())
	s.rearmLocked()
	s.saveLocked()
}

// normalize repairs records written by older versions or by hand:
// missing status and blank labels get defaults, remaining is clamped
// into [0, duration].
func normalize(t *model.Timer) {
	if t.Status == "" {
		t.Status = model.StatusIdle
	}
	if strings.TrimSpace(t.Label) == "" {
		t.Label = DefaultLabel
	}
	if t.Remaining < 0 {
		t.Remaining = 0
	}
	if t.Remaining > t.Duration {
		t.Remaining = t.Duration
	}
}

// Loaded reports whether the initial load has completed.
func (s *TimerStore) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Timers returns the ordered collection as a snapshot copy.
func (s *TimerStore) Timers() []model.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Timer, len(s.timers))
	for i, t := range s.timers {
		out[i] = *t
	}
	return out
}

// Get returns a copy of one timer by id.
func (s *TimerStore) Get(id string) (model.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findLocked(id); t != nil {
		return *t, true
	}
	return model.Timer{}, false
}

// AddTimer validates the input, creates an idle timer, and prepends it
// to the ordered collection. A blank label falls back to DefaultLabel.
func (s *TimerStore) AddTimer(in TimerInput) (model.Timer, error) {
	total := in.TotalSeconds()
	if total <= 0 || total > model.MaxDuration {
		return model.Timer{}, ErrInvalidDuration
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = DefaultLabel
	}

	timer := model.Timer{
		ID:        uuid.NewString(),
		Label:     label,
		Duration:  total,
		Remaining: total,
		Status:    model.StatusIdle,
		CreatedAt: s.now(),
	}
	if in.Recurring {
		interval := in.RecurringInterval
		if interval == "" {
			interval = model.RecurDaily
		}
		timer.Recurring = &model.Recurrence{Enabled: true, Interval: interval}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append([]*model.Timer{&timer}, s.timers...)
	s.saveLocked()
	return timer, nil
}

// StartTimer transitions a timer into running and arms its completion
// notification. Starting a completed timer performs an implicit reset
// first. Notification failures are logged and do not block the
// transition.
func (s *TimerStore) StartTimer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil {
		return ErrTimerNotFound
	}
	s.startLocked(t)
	s.saveLocked()
	return nil
}

// ResumeTimer continues a paused timer, or restarts a completed one from
// its full duration. Same effect as StartTimer.
func (s *TimerStore) ResumeTimer(id string) error {
	return s.StartTimer(id)
}

func (s *TimerStore) startLocked(t *model.Timer) {
	if t.NotificationID != "" {
		s.notifier.Cancel(t.NotificationID)
		t.NotificationID = ""
	}

	// Restarting after completion (or a countdown already at zero)
	// behaves as reset + start.
	if t.Status == model.StatusCompleted || t.Remaining <= 0 {
		t.Remaining = t.Duration
	}

	now := s.now()
	// StartedAt is back-dated by the already-elapsed portion so that
	// remaining = duration - (now - startedAt) holds for resumed timers
	// exactly as it does for fresh starts.
	started := now.Add(-time.Duration(t.Duration-t.Remaining) * time.Second)
	t.StartedAt = &started
	t.PausedAt = nil
	t.CompletedAt = nil
	t.Status = model.StatusRunning

	handle, err := s.notifier.Schedule(t.ID, t.Label, time.Duration(t.Remaining)*time.Second)
	if err != nil {
		log.Printf("schedule notification for timer %s: %v", t.ID, err)
	} else {
		t.NotificationID = handle
	}
}

// PauseTimer freezes a running timer at its reconciled remaining value
// and disarms its notification. Not running means no-op.
func (s *TimerStore) PauseTimer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil {
		return ErrTimerNotFound
	}
	if t.Status != model.StatusRunning {
		return nil
	}

	now := s.now()
	t.Remaining = RecalculateRemaining(t, now)
	if t.NotificationID != "" {
		s.notifier.Cancel(t.NotificationID)
		t.NotificationID = ""
	}
	t.Status = model.StatusPaused
	t.PausedAt = &now
	t.StartedAt = nil

	s.saveLocked()
	return nil
}

// ResetTimer returns a timer to idle at its full duration from any state.
func (s *TimerStore) ResetTimer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil {
		return ErrTimerNotFound
	}

	if t.NotificationID != "" {
		s.notifier.Cancel(t.NotificationID)
		t.NotificationID = ""
	}
	t.Remaining = t.Duration
	t.Status = model.StatusIdle
	t.StartedAt = nil
	t.PausedAt = nil
	t.CompletedAt = nil

	s.saveLocked()
	return nil
}

// DeleteTimer cancels any outstanding notification and removes the timer.
func (s *TimerStore) DeleteTimer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.timers {
		if t.ID != id {
			continue
		}
		if t.NotificationID != "" {
			s.notifier.Cancel(t.NotificationID)
		}
		s.timers = append(s.timers[:i], s.timers[i+1:]...)
		s.saveLocked()
		return nil
	}
	return ErrTimerNotFound
}

// Reorder replaces the display order with the given id sequence, which
// must be a permutation of the current collection.
func (s *TimerStore) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.timers) {
		return ErrBadPermutation
	}
	byID := make(map[string]*model.Timer, len(s.timers))
	for _, t := range s.timers {
		byID[t.ID] = t
	}

	reordered := make([]*model.Timer, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %s", ErrBadPermutation, id)
		}
		delete(byID, id)
		reordered = append(reordered, t)
	}

	s.timers = reordered
	s.saveLocked()
	return nil
}

// Tick advances every running timer against the wall clock. Invoked
// about once per second by the scheduler; idempotent, never fails.
func (s *TimerStore) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceLocked(s.now()) {
		s.saveLocked()
	}
}

// ReconcileAll is Tick under another intent: called when the process
// returns from an arbitrary sleep (startup, polling restart) so that
// stale countdowns are corrected before anything is displayed.
func (s *TimerStore) ReconcileAll() {
	s.Tick()
}

// advanceLocked re-derives remaining time for all running timers and
// applies the completion policy to any that reached zero. Returns true
// if any timer changed.
func (s *TimerStore) advanceLocked(now time.Time) bool {
	changed := false
	for _, t := range s.timers {
		if t.Status != model.StatusRunning {
			continue
		}
		remaining := RecalculateRemaining(t, now)
		if remaining > 0 {
			if remaining != t.Remaining {
				t.Remaining = remaining
				changed = true
			}
			continue
		}
		s.completeLocked(t, now)
		changed = true
	}
	return changed
}

// completeLocked applies the completion policy: recurring timers restart
// at full duration with a fresh notification, everything else enters
// completed. The notification for the finished cycle already fired on
// its own, so its handle is simply dropped.
func (s *TimerStore) completeLocked(t *model.Timer, now time.Time) {
	if t.IsRecurring() {
		t.NotificationID = ""
		t.Remaining = t.Duration
		t.StartedAt = &now
		t.CompletedAt = nil

		handle, err := s.notifier.Schedule(t.ID, t.Label, time.Duration(t.Duration)*time.Second)
		if err != nil {
			log.Printf("re-arm notification for timer %s: %v", t.ID, err)
		} else {
			t.NotificationID = handle
		}
		return
	}

	t.Status = model.StatusCompleted
	t.CompletedAt = &now
	t.Remaining = 0
	t.StartedAt = nil
	t.PausedAt = nil
	t.NotificationID = ""
}

// RearmNotifications schedules a fresh completion alert for every
// running timer. Needed after a restart (armed alerts do not survive the
// process) and after the delivery channel first becomes available.
func (s *TimerStore) RearmNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rearmLocked() {
		s.saveLocked()
	}
}

func (s *TimerStore) rearmLocked() bool {
	changed := false
	for _, t := range s.timers {
		if t.Status != model.StatusRunning {
			continue
		}
		if t.NotificationID != "" {
			s.notifier.Cancel(t.NotificationID)
			t.NotificationID = ""
		}
		handle, err := s.notifier.Schedule(t.ID, t.Label, time.Duration(t.Remaining)*time.Second)
		if err != nil {
			log.Printf("re-arm notification for timer %s: %v", t.ID, err)
			changed = true
			continue
		}
		t.NotificationID = handle
		changed = true
	}
	return changed
}

// Flush forces any pending debounced write out. Called on shutdown.
func (s *TimerStore) Flush() {
	s.persister.Flush()
}

func (s *TimerStore) findLocked(id string) *model.Timer {
	for _, t := range s.timers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// saveLocked hands the current snapshot to the debounced writer.
func (s *TimerStore) saveLocked() {
	snapshot := make([]model.Timer, len(s.timers))
	for i, t := range s.timers {
		snapshot[i] = *t
	}
	s.persister.Save(snapshot)
}
