package bus

import (
	"context"
	"time"
)

// InboundMessage represents a message received from a channel (Telegram, Discord, etc.)
type InboundMessage struct {
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	Content    string            `json:"content"`
	PeerKind   string            `json:"peer_kind,omitempty"`   // "direct" or "group"
	Mentioned  bool              `json:"mentioned,omitempty"`   // @-mention or reply to the bot
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChatMessage is one utterance as seen by the interjection core: what the
// buffer holds between debounce fires and what the decision pipeline renders
// into a transcript.
type ChatMessage struct {
	Timestamp  time.Time `json:"timestamp"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
}

// MessageRouter abstracts inbound/outbound message routing between channels
// and the interjection engine.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
