package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/channels"
	"github.com/chimeworks/gochime/internal/decision"
	"github.com/chimeworks/gochime/internal/proactive"
	"github.com/chimeworks/gochime/internal/sessions"
)

// consumeInboundMessages reads inbound messages from the channels, feeds
// them to the interjection engine, and answers the ones the engine says
// to forward (explicit mentions and sticky-flag consumptions).
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, engine *proactive.Engine, pipeline *decision.Pipeline) {
	slog.Info("inbound message consumer started")

	// Webhook retries and reconnect replays must not double-process.
	dedupe := bus.NewDedupeCache(20*time.Minute, 5000)
	history := channels.NewPendingHistory(channels.DefaultHistoryLimit)

	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound message consumer stopped")
			return
		}

		if key := dedupeKey(msg); key != "" && dedupe.IsDuplicate(key) {
			slog.Debug("inbound: duplicate dropped", "channel", msg.Channel, "chat", msg.ChatID)
			continue
		}

		kind := sessions.PeerKind(msg.PeerKind)
		if kind != sessions.PeerGroup {
			kind = sessions.PeerDirect
		}
		key := sessions.BuildKey(msg.Channel, kind, msg.ChatID)

		chat := bus.ChatMessage{
			Timestamp:  time.Now(),
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Text:       msg.Content,
		}
		history.Record(key, chat)

		// Chat commands act on the engine directly, no LLM involved.
		if handleCommand(msgBus, engine, key, msg) {
			continue
		}

		action := engine.OnInboundMessage(key, chat, msg.Mentioned)
		if !action.ForwardToDecider {
			continue
		}

		// Reply off the consumer goroutine so a slow decider cannot
		// stall inbound processing.
		saved := history.Snapshot(key)
		go replyDirect(ctx, msgBus, pipeline, key, msg, chat, saved, action.ViaSticky)
	}
}

// replyDirect asks the decider for a direct reply and publishes it.
func replyDirect(ctx context.Context, msgBus *bus.MessageBus, pipeline *decision.Pipeline, key string, msg bus.InboundMessage, chat bus.ChatMessage, saved []bus.ChatMessage, viaSticky bool) {
	runID := uuid.NewString()[:8]
	slog.Debug("direct reply started", "run", runID, "key", key, "via_sticky", viaSticky)

	reply, err := pipeline.DirectReply(ctx, key, chat, saved)
	if err != nil {
		slog.Warn("direct reply failed", "run", runID, "key", key, "error", err)
		return
	}
	if reply == "" {
		slog.Debug("direct reply empty, suppressed", "run", runID, "key", key)
		return
	}

	msgBus.PublishOutbound(bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  reply,
		Metadata: map[string]string{"session_key": key},
	})
}

// handleCommand intercepts gochime chat commands. Returns true when the
// message was a command and has been handled.
//
//	/chime     — arm a one-shot direct reply for anyone in this chat
//	/chime me  — arm it for the sender only
func handleCommand(msgBus *bus.MessageBus, engine *proactive.Engine, key string, msg bus.InboundMessage) bool {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return false
	}

	cmd := strings.ToLower(fields[0])
	// Strip the bot-address suffix Telegram appends: "/chime@some_bot".
	if idx := strings.IndexByte(cmd, '@'); idx > 0 {
		cmd = cmd[:idx]
	}
	if cmd != "/chime" {
		return false
	}

	subject := ""
	if len(fields) > 1 && strings.EqualFold(fields[1], "me") {
		subject = msg.SenderID
	}
	engine.EnableDirectReply(key, subject)

	msgBus.PublishOutbound(bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  "Got it — I'll chime in on the next message here.",
		Metadata: map[string]string{"session_key": key},
	})
	return true
}

// dedupeKey derives a stable identity for an inbound message from the
// platform message ID. Messages without one return "" and skip dedupe;
// keying on content would drop legitimate repeats ("lol", "ok").
func dedupeKey(msg bus.InboundMessage) string {
	id := msg.Metadata["message_id"]
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", msg.Channel, msg.ChatID, id)
}
