// Package tracker is the shared dedup/state store for turn fingerprints.
// It is the only piece of state mutated by producers, engine workers and the
// cleanup loop alike, so every operation is a short critical section under a
// single mutex. No I/O happens while the lock is held.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/hivegame/botherd/internal/bot"
	"github.com/hivegame/botherd/internal/events"
	"github.com/hivegame/botherd/internal/log"
)

type entryState int

const (
	stateInFlight entryState = iota
	stateCompleted
)

type entry struct {
	state       entryState
	completedAt time.Time
}

// Stats is a point-in-time snapshot for the status API.
type Stats struct {
	InFlight  int `json:"in_flight"`
	Completed int `json:"completed"`
}

// Tracker records which fingerprints are in flight or recently completed.
// A fingerprint moves absent -> in-flight -> completed -> (removed by
// cleanup once older than the retention window); removal restarts the cycle.
type Tracker struct {
	mu        sync.Mutex
	entries   map[bot.Fingerprint]entry
	retention time.Duration
}

// New creates a tracker whose completed entries expire after retention.
func New(retention time.Duration) *Tracker {
	return &Tracker{
		entries:   make(map[bot.Fingerprint]entry),
		retention: retention,
	}
}

// IsTracked reports whether fp has an in-flight or completed entry.
func (t *Tracker) IsTracked(fp bot.Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[fp]
	return ok
}

// Begin atomically inserts an in-flight entry for fp if none exists and
// reports whether the insert happened. Exactly one caller wins for any given
// fingerprint, so two producers racing the same position cannot both enqueue
// it.
func (t *Tracker) Begin(fp bot.Fingerprint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[fp]; ok {
		return false
	}
	t.entries[fp] = entry{state: stateInFlight}
	return true
}

// MarkInFlight inserts or overwrites an in-flight entry for fp. Most callers
// want Begin; this exists for the rare case where the caller has already
// established exclusivity by other means.
func (t *Tracker) MarkInFlight(fp bot.Fingerprint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fp] = entry{state: stateInFlight}
}

// MarkCompleted transitions fp to completed with the current timestamp.
// Idempotent regardless of prior state.
func (t *Tracker) MarkCompleted(fp bot.Fingerprint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fp] = entry{state: stateCompleted, completedAt: time.Now()}
}

// Cleanup removes completed entries older than the retention window and
// returns how many were removed. In-flight entries are never removed here;
// only MarkCompleted moves them on.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for fp, e := range t.entries {
		if e.state == stateCompleted && time.Since(e.completedAt) > t.retention {
			delete(t.entries, fp)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of entry counts.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s Stats
	for _, e := range t.entries {
		if e.state == stateInFlight {
			s.InFlight++
		} else {
			s.Completed++
		}
	}
	return s
}

// RunCleanup purges expired entries every interval until ctx is cancelled.
// There is no failure mode here worth surfacing; an error in this loop is a
// bug, not an operational condition.
func (t *Tracker) RunCleanup(ctx context.Context, interval time.Duration, hub *events.Hub) {
	logger := log.WithComponent("tracker")
	logger.Info("cleanup loop started", "interval", interval, "retention", t.retention)
	defer logger.Info("cleanup loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := t.Cleanup(); removed > 0 {
				logger.Debug("purged completed turns", "removed", removed)
				hub.Publish(events.TypeTrackerCleanup, map[string]any{
					"removed": removed,
				})
			}
		}
	}
}
