// Package channels connects chat platforms (Telegram, Discord) to the
// interjection engine via the message bus. Each platform implementation
// embeds BaseChannel and publishes bus.InboundMessage for every accepted
// message, flagging whether the bot was explicitly addressed.
package channels

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/sessions"
)

// Channel is the interface every platform implementation satisfies.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram", "discord").
	Name() string

	// Start begins receiving messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is actively processing messages.
	IsRunning() bool

	// IsAllowed checks the channel's sender allowlist.
	IsAllowed(senderID string) bool
}

// BaseChannel provides the shared plumbing for channel implementations.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	running   atomic.Bool
	allowList []string
	flood     *FloodGuard
}

// NewBaseChannel creates a BaseChannel. An empty allowList admits everyone.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
		flood:     NewFloodGuard(0, 0),
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// SetFloodLimit replaces the flood guard with one allowing perMinute
// messages per sender. Non-positive keeps the default limit.
func (c *BaseChannel) SetFloodLimit(perMinute int) {
	c.flood = NewFloodGuard(perMinute, time.Minute)
}

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// IsAllowed checks if a sender is permitted by the allowlist.
// Supports compound senderID format: "123456|username".
// Empty allowlist means all senders are allowed.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		if senderID == allowed ||
			idPart == allowed ||
			senderID == trimmed ||
			idPart == trimmed ||
			(userPart != "" && (userPart == allowed || userPart == trimmed)) {
			return true
		}
	}
	return false
}

// HandleMessage publishes an accepted platform message to the bus.
// Drops messages from disallowed or flooding senders. mentioned is true
// when the message explicitly addresses the bot (@-mention or reply to
// one of the bot's messages). isGroup selects the peer kind. metadata
// should carry the platform message ID under "message_id" for dedupe.
func (c *BaseChannel) HandleMessage(senderID, senderName, chatID, content string, isGroup, mentioned bool, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		return
	}
	if !c.flood.Allow(senderID) {
		return
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		PeerKind:   string(sessions.PeerKindFromGroup(isGroup)),
		Mentioned:  mentioned,
		Metadata:   metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
