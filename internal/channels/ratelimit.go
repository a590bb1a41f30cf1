package channels

import (
	"sync"
	"time"
)

// Flood guard defaults. Chat users type in bursts, so the window is short
// and the cap generous; per-channel config can tighten or loosen it.
const (
	defaultFloodLimit  = 30
	defaultFloodWindow = time.Minute

	// floodGuardMaxSenders caps the tracked-sender map so rotating sender
	// IDs cannot exhaust memory.
	floodGuardMaxSenders = 4096
)

// FloodGuard bounds per-sender inbound message rates so one misbehaving
// client cannot flood the bus or the interjection buffers. Each sender
// gets a fixed counting window; when the tracked-sender map is full, the
// sender with the stalest window is evicted first. Safe for concurrent use.
type FloodGuard struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*floodWindow
}

type floodWindow struct {
	start time.Time
	count int
}

// NewFloodGuard creates a guard allowing limit messages per sender per
// window. Non-positive limit or window falls back to the defaults.
func NewFloodGuard(limit int, window time.Duration) *FloodGuard {
	if limit <= 0 {
		limit = defaultFloodLimit
	}
	if window <= 0 {
		window = defaultFloodWindow
	}
	return &FloodGuard{
		limit:   limit,
		window:  window,
		windows: make(map[string]*floodWindow),
	}
}

// Allow records one message from senderID and reports whether the sender
// is still within the rate limit.
func (g *FloodGuard) Allow(senderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()

	w := g.windows[senderID]
	if w == nil {
		if len(g.windows) >= floodGuardMaxSenders {
			g.evict(now)
		}
		g.windows[senderID] = &floodWindow{start: now, count: 1}
		return true
	}

	if now.Sub(w.start) >= g.window {
		w.start = now
		w.count = 1
		return true
	}

	w.count++
	return w.count <= g.limit
}

// evict drops expired windows, then the stalest live sender if the map
// is still at capacity.
func (g *FloodGuard) evict(now time.Time) {
	var stalest string
	var stalestStart time.Time
	for id, w := range g.windows {
		if now.Sub(w.start) >= g.window {
			delete(g.windows, id)
			continue
		}
		if stalest == "" || w.start.Before(stalestStart) {
			stalest = id
			stalestStart = w.start
		}
	}
	if len(g.windows) >= floodGuardMaxSenders && stalest != "" {
		delete(g.windows, stalest)
	}
}
