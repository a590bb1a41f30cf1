package channels

import (
	"sync"

	"github.com/chimeworks/gochime/internal/bus"
)

// DefaultHistoryLimit bounds the per-conversation recent history.
const DefaultHistoryLimit = 10

// PendingHistory keeps a bounded ring of recent messages per conversation
// key. Used to give the decider context when replying to a single message.
type PendingHistory struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]bus.ChatMessage
}

// NewPendingHistory creates a history keeper. limit <= 0 uses the default.
func NewPendingHistory(limit int) *PendingHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &PendingHistory{
		limit:   limit,
		entries: make(map[string][]bus.ChatMessage),
	}
}

// Record appends a message to key's history, dropping the oldest entry
// once the limit is reached.
func (h *PendingHistory) Record(key string, msg bus.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.entries[key], msg)
	if len(msgs) > h.limit {
		msgs = msgs[len(msgs)-h.limit:]
	}
	h.entries[key] = msgs
}

// Snapshot returns a copy of key's history, oldest first.
func (h *PendingHistory) Snapshot(key string) []bus.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.entries[key]
	out := make([]bus.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Clear drops key's history.
func (h *PendingHistory) Clear(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, key)
}
