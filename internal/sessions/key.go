// Package sessions — conversation key builder and parser.
//
// Conversation keys scope all per-conversation interjection state
// (buffer, sticky flags, debounce timers) and follow the canonical format:
//
//	chat:{channel}:{kind}:{chatID}
//
// Where {kind} is "direct" for DMs and "group" for group chats.
//
// Examples:
//
//	chat:telegram:group:-100123456
//	chat:telegram:direct:386246614
//	chat:discord:group:1183736249
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes DM from group conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup  PeerKind = "group"
)

// BuildKey builds the canonical conversation key for a channel conversation.
func BuildKey(channel string, kind PeerKind, chatID string) string {
	return fmt.Sprintf("chat:%s:%s:%s", channel, kind, chatID)
}

// ParseKey extracts the channel, peer kind, and chat ID from a canonical
// conversation key. Returns ok=false if the key is not in the expected format.
func ParseKey(key string) (channel string, kind PeerKind, chatID string, ok bool) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 || parts[0] != "chat" {
		return "", "", "", false
	}
	switch PeerKind(parts[2]) {
	case PeerDirect, PeerGroup:
	default:
		return "", "", "", false
	}
	return parts[1], PeerKind(parts[2]), parts[3], true
}

// PeerKindFromGroup returns PeerGroup if isGroup is true, PeerDirect otherwise.
func PeerKindFromGroup(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}
