// Package proactive implements the quiet-window interjection core: a
// per-conversation debounced, cancellable delayed-check scheduler with
// buffered message collection, plus the one-shot sticky direct-reply gate.
package proactive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chimeworks/gochime/internal/bus"
)

// CheckFunc runs the decision pipeline when a debounce timer fires. It
// receives the messages drained from the buffer and returns whether the
// scheduler should immediately re-arm the key (continuous interjection).
// The scheduler guarantees at most one invocation in flight per key.
type CheckFunc func(ctx context.Context, key string, generation uint64, msgs []bus.ChatMessage) (rearm bool)

// Scheduler owns one cancellable delayed check per conversation key.
//
// Per-key state machine: IDLE → ARMED → (FIRING → IDLE | ARMED).
// A monotonically increasing generation token distinguishes the live timer
// from superseded ones: a fire whose generation no longer matches the slot
// is stale and discarded without touching the buffer, so "cancel the old,
// arm the new" is safe even though timer cancellation is not atomic with
// respect to firing.
type Scheduler struct {
	mu           sync.Mutex
	slots        map[string]*slot
	check        CheckFunc
	historyLimit int
}

type slot struct {
	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	delay      time.Duration // delay of the last arm, reused on rearm
	armed      bool          // buffer open, timer pending
	firing     bool          // check in flight
	buf        messageBuffer

	// Arm requests arriving while a check is in flight are deferred until
	// the check resolves; the last one wins.
	pendingArm   bool
	pendingDelay time.Duration

	lastActive time.Time
}

// NewScheduler creates a scheduler. check is invoked on every non-empty
// fire; historyLimit caps each key's buffer (0 = unbounded).
func NewScheduler(check CheckFunc, historyLimit int) *Scheduler {
	return &Scheduler{
		slots:        make(map[string]*slot),
		check:        check,
		historyLimit: historyLimit,
	}
}

// SetHistoryLimit updates the buffer cap for subsequent arms (hot reload).
func (s *Scheduler) SetHistoryLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyLimit = limit
}

// Arm starts (or restarts) the quiet-window timer for key. Any pending
// timer for the key is superseded: its generation is invalidated and the
// buffer is cleared for the new window. If a check for the key is in
// flight, the arm is deferred until that check resolves.
func (s *Scheduler) Arm(key string, delay time.Duration) {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{}
		s.slots[key] = sl
	}
	limit := s.historyLimit
	s.mu.Unlock()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.lastActive = time.Now()

	if sl.firing {
		sl.pendingArm = true
		sl.pendingDelay = delay
		return
	}

	sl.generation++
	g := sl.generation
	if sl.timer != nil {
		sl.timer.Stop()
	}
	sl.delay = delay
	sl.buf.reset(limit)
	sl.armed = true
	sl.timer = time.AfterFunc(delay, func() {
		s.fire(key, g)
	})
}

// Append records a message into key's buffer. No-op unless a timer is
// currently armed for the key.
func (s *Scheduler) Append(key string, msg bus.ChatMessage) {
	s.mu.Lock()
	sl := s.slots[key]
	s.mu.Unlock()
	if sl == nil {
		return
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.armed {
		return
	}
	sl.buf.append(msg)
	sl.lastActive = time.Now()
}

// Cancel invalidates any pending timer for key. Calling it on an idle or
// unknown key is a no-op.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	sl := s.slots[key]
	s.mu.Unlock()
	if sl == nil {
		return
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.generation++
	if sl.timer != nil {
		sl.timer.Stop()
		sl.timer = nil
	}
	sl.armed = false
	sl.pendingArm = false
	sl.buf.reset(0)
}

// CancelAll cancels every pending timer. Used on shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.slots))
	for key := range s.slots {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.Cancel(key)
	}
}

// Armed reports whether key currently has a pending timer.
func (s *Scheduler) Armed(key string) bool {
	s.mu.Lock()
	sl := s.slots[key]
	s.mu.Unlock()
	if sl == nil {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.armed
}

// Sweep drops state for keys idle longer than ttl (not armed, not firing,
// no recent activity), returning the number removed.
func (s *Scheduler) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, sl := range s.slots {
		sl.mu.Lock()
		idle := !sl.armed && !sl.firing && sl.lastActive.Before(cutoff)
		sl.mu.Unlock()
		if idle {
			delete(s.slots, key)
			removed++
		}
	}
	return removed
}

// fire handles a timer expiry for (key, generation g).
func (s *Scheduler) fire(key string, g uint64) {
	s.mu.Lock()
	sl := s.slots[key]
	s.mu.Unlock()
	if sl == nil {
		return
	}

	sl.mu.Lock()
	if !sl.armed || sl.generation != g {
		// Stale fire: a newer arm or a cancel owns this key now. The
		// buffer belongs to the newer window and must not be drained.
		sl.mu.Unlock()
		slog.Debug("proactive: stale fire discarded", "key", key, "generation", g)
		return
	}

	msgs := sl.buf.drainAndClear()
	sl.armed = false
	sl.timer = nil
	delay := sl.delay

	if len(msgs) == 0 {
		// Quiet window with nothing new: no decision to make.
		sl.lastActive = time.Now()
		sl.mu.Unlock()
		slog.Debug("proactive: quiet window empty, skipping check", "key", key)
		return
	}

	sl.firing = true
	sl.mu.Unlock()

	rearm := s.check(context.Background(), key, g, msgs)

	sl.mu.Lock()
	sl.firing = false
	sl.lastActive = time.Now()
	cancelled := sl.generation != g
	deferred := sl.pendingArm
	deferredDelay := sl.pendingDelay
	sl.pendingArm = false
	sl.mu.Unlock()

	// Deferred arms (bot spoke during the check) beat rearm-on-success.
	// A cancel issued while the check was in flight bumps the generation
	// and invalidates the rearm; a deferred arm set after the cancel is
	// still honored, since it means the bot spoke again.
	switch {
	case deferred:
		s.Arm(key, deferredDelay)
	case rearm && !cancelled:
		s.Arm(key, delay)
	}
}
