package proactive

import (
	"fmt"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/sessions"
)

// Transport pushes one outbound message to a conversation, outside the
// normal request/response cycle. Fire-and-forget: delivery failures are
// the messaging transport's concern, not the scheduler's.
type Transport interface {
	Push(key, text string) error
}

// BusTransport delivers interjections through the message bus, resolving
// the conversation key back to a channel and chat ID.
type BusTransport struct {
	bus bus.MessageRouter
}

// NewBusTransport creates a Transport backed by the message bus.
func NewBusTransport(router bus.MessageRouter) *BusTransport {
	return &BusTransport{bus: router}
}

// Push publishes one outbound message for key.
func (t *BusTransport) Push(key, text string) error {
	channel, _, chatID, ok := sessions.ParseKey(key)
	if !ok {
		return fmt.Errorf("malformed conversation key %q", key)
	}
	t.bus.PublishOutbound(bus.OutboundMessage{
		Channel:  channel,
		ChatID:   chatID,
		Content:  text,
		Metadata: map[string]string{"session_key": key},
	})
	return nil
}
