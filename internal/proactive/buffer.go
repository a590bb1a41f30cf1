package proactive

import "github.com/chimeworks/gochime/internal/bus"

// messageBuffer is the bounded ordered log of utterances observed while a
// debounce timer is armed. It is owned by a scheduler slot and accessed
// only under that slot's lock; appends race with the timer fire, and the
// shared lock is what keeps a message from being lost or duplicated when
// both happen at once.
type messageBuffer struct {
	entries []bus.ChatMessage
	limit   int
}

// reset empties the buffer and sets its capacity for the next window.
func (b *messageBuffer) reset(limit int) {
	b.entries = nil
	b.limit = limit
}

// append adds a message, dropping the oldest entry when the limit would be
// exceeded. A limit of 0 means unbounded.
func (b *messageBuffer) append(msg bus.ChatMessage) {
	b.entries = append(b.entries, msg)
	if b.limit > 0 && len(b.entries) > b.limit {
		b.entries = b.entries[1:]
	}
}

// drainAndClear returns the current contents and empties the buffer.
func (b *messageBuffer) drainAndClear() []bus.ChatMessage {
	out := b.entries
	b.entries = nil
	return out
}

func (b *messageBuffer) len() int {
	return len(b.entries)
}
