package telegram

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/chimeworks/gochime/internal/channels"
)

// handleMessage processes an incoming Telegram update.
func (c *Channel) handleMessage(update telego.Update) {
	message := update.Message
	if message == nil {
		return
	}

	// Skip service messages (member added/removed, title changed, etc.).
	// These have no text and would pollute the conversation buffers.
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	user := message.From
	if user == nil || user.IsBot {
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if text == "" {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}
	senderName := user.FirstName
	if senderName == "" {
		senderName = user.Username
	}

	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"
	mentioned := !isGroup || c.detectMention(message, c.bot.Username())

	slog.Debug("telegram message received",
		"chat_type", message.Chat.Type,
		"chat_id", message.Chat.ID,
		"user_id", user.ID,
		"mentioned", mentioned,
		"text_preview", channels.Truncate(text, 60),
	)

	chatID := fmt.Sprintf("%d", message.Chat.ID)
	metadata := map[string]string{"message_id": fmt.Sprintf("%d", message.MessageID)}
	c.HandleMessage(senderID, senderName, chatID, text, isGroup, mentioned, metadata)
}

// isServiceMessage reports whether the update carries no user content.
func isServiceMessage(msg *telego.Message) bool {
	return len(msg.NewChatMembers) > 0 ||
		msg.LeftChatMember != nil ||
		msg.NewChatTitle != "" ||
		msg.PinnedMessage != nil
}

// detectMention checks if a Telegram message explicitly addresses the bot.
// Checks both msg.Text/Entities (text messages) and msg.Caption/CaptionEntities
// (photo/media messages). A reply to one of the bot's messages counts.
func (c *Channel) detectMention(msg *telego.Message, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	lowerBot := strings.ToLower(botUsername)

	for _, pair := range []struct {
		entities []telego.MessageEntity
		text     string
	}{
		{msg.Entities, msg.Text},
		{msg.CaptionEntities, msg.Caption},
	} {
		if pair.text == "" {
			continue
		}
		for _, entity := range pair.entities {
			if entity.Type == "mention" {
				mentioned := pair.text[entity.Offset : entity.Offset+entity.Length]
				if strings.EqualFold(mentioned, "@"+botUsername) {
					return true
				}
			}
			if entity.Type == "bot_command" {
				cmdText := pair.text[entity.Offset : entity.Offset+entity.Length]
				if strings.Contains(strings.ToLower(cmdText), "@"+lowerBot) {
					return true
				}
			}
		}
	}

	// Fallback: substring check in both text and caption
	if msg.Text != "" && strings.Contains(strings.ToLower(msg.Text), "@"+lowerBot) {
		return true
	}
	if msg.Caption != "" && strings.Contains(strings.ToLower(msg.Caption), "@"+lowerBot) {
		return true
	}

	// Reply to bot's message = implicit mention
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		if msg.ReplyToMessage.From.Username == botUsername {
			return true
		}
	}

	return false
}
