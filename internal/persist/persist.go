// Package persist stores the ordered timer collection as one JSON blob
// under a fixed key, coalescing rapid successive saves into a single
// debounced write.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"tickdown/internal/model"
	"tickdown/internal/repository"
)

// TimersKey is the fixed storage key for the serialized collection.
const TimersKey = "timers"

// DefaultDebounce is the quiet period before a pending save is written.
const DefaultDebounce = 500 * time.Millisecond

// KV is the blob store the adapter writes through.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Adapter serializes the timer collection to a KV blob store. Save is
// debounced: each call replaces the pending snapshot and restarts the
// quiet-period timer, so a burst of mutations produces one write. On a
// crash at most the last debounce interval of changes is lost.
type Adapter struct {
	kv       KV
	debounce time.Duration

	mu      sync.Mutex
	pending *time.Timer
	dirty   []model.Timer
}

func New(kv KV, debounce time.Duration) *Adapter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Adapter{kv: kv, debounce: debounce}
}

// Load reads the stored collection. A missing or unparseable blob yields
// an empty collection; failures are logged, never returned.
func (a *Adapter) Load(ctx context.Context) []model.Timer {
	raw, err := a.kv.Get(ctx, TimersKey)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			log.Printf("load timers: %v", err)
		}
		return nil
	}

	var timers []model.Timer
	if err := json.Unmarshal([]byte(raw), &timers); err != nil {
		log.Printf("load timers: malformed blob, starting empty: %v", err)
		return nil
	}
	return timers
}

// Save schedules a debounced write of the given snapshot, replacing any
// snapshot still waiting. Returns immediately; write failures are logged.
func (a *Adapter) Save(timers []model.Timer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.dirty = timers
	if a.pending != nil {
		a.pending.Stop()
	}
	a.pending = time.AfterFunc(a.debounce, a.flushPending)
}

// Flush writes any pending snapshot immediately. Called on shutdown so
// the final debounce interval is not lost.
func (a *Adapter) Flush() {
	a.mu.Lock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	a.mu.Unlock()
	a.flushPending()
}

func (a *Adapter) flushPending() {
	a.mu.Lock()
	timers := a.dirty
	a.dirty = nil
	a.pending = nil
	a.mu.Unlock()

	if timers == nil {
		return
	}
	a.write(timers)
}

func (a *Adapter) write(timers []model.Timer) {
	raw, err := json.Marshal(timers)
	if err != nil {
		log.Printf("save timers: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.kv.Set(ctx, TimersKey, string(raw)); err != nil {
		// In-memory state stays authoritative; the next mutation
		// triggers another write.
		log.Printf("save timers: %v", err)
	}
}
