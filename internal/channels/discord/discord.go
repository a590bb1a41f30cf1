// Package discord implements the Discord channel over the gateway API.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/channels"
	"github.com/chimeworks/gochime/internal/config"
)

// discordMaxMessageLen is the gateway limit for a single text message.
const discordMaxMessageLen = 2000

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string // populated on start
}

// New creates a new Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	base := channels.NewBaseChannel("discord", msgBus, cfg.AllowFrom)
	if cfg.FloodLimitPerMinute > 0 {
		base.SetFloodLimit(cfg.FloodLimitPerMinute)
	}

	return &Channel{
		BaseChannel: base,
		session:     session,
		config:      cfg,
	}, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message to a Discord channel, splitting text
// that exceeds the message length limit.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for discord send")
	}
	if msg.Content == "" {
		return nil
	}

	for _, part := range splitMessage(msg.Content, discordMaxMessageLen) {
		if _, err := c.session.ChannelMessageSend(msg.ChatID, part); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

// handleMessage processes an incoming Discord message event.
func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == c.botUserID {
		return
	}
	if m.Content == "" {
		return
	}

	isGroup := m.GuildID != ""
	mentioned := !isGroup || c.detectMention(m)

	senderName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		senderName = m.Member.Nick
	}

	slog.Debug("discord message received",
		"channel_id", m.ChannelID,
		"guild_id", m.GuildID,
		"author", m.Author.Username,
		"mentioned", mentioned,
		"text_preview", channels.Truncate(m.Content, 60),
	)

	c.HandleMessage(m.Author.ID, senderName, m.ChannelID, m.Content, isGroup, mentioned,
		map[string]string{"message_id": m.ID})
}

// detectMention checks if the bot is @-mentioned or the message replies
// to one of the bot's messages.
func (c *Channel) detectMention(m *discordgo.MessageCreate) bool {
	for _, user := range m.Mentions {
		if user.ID == c.botUserID {
			return true
		}
	}
	if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		return m.ReferencedMessage.Author.ID == c.botUserID
	}
	return false
}

// splitMessage chunks text into pieces of at most limit bytes, preferring
// to break at newlines.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if text[i] == '\n' {
				cut = i
				break
			}
		}
		// Never split a multi-byte rune across parts.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}
