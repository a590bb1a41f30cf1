package discord

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

func TestDetectMention(t *testing.T) {
	c := &Channel{botUserID: "bot-1"}

	tests := []struct {
		name string
		msg  discordgo.MessageCreate
		want bool
	}{
		{
			name: "direct mention",
			msg: discordgo.MessageCreate{Message: &discordgo.Message{
				Mentions: []*discordgo.User{{ID: "bot-1"}},
			}},
			want: true,
		},
		{
			name: "mention of someone else",
			msg: discordgo.MessageCreate{Message: &discordgo.Message{
				Mentions: []*discordgo.User{{ID: "user-2"}},
			}},
			want: false,
		},
		{
			name: "reply to the bot",
			msg: discordgo.MessageCreate{Message: &discordgo.Message{
				ReferencedMessage: &discordgo.Message{
					Author: &discordgo.User{ID: "bot-1"},
				},
			}},
			want: true,
		},
		{
			name: "reply to someone else",
			msg: discordgo.MessageCreate{Message: &discordgo.Message{
				ReferencedMessage: &discordgo.Message{
					Author: &discordgo.User{ID: "user-2"},
				},
			}},
			want: false,
		},
		{
			name: "no mention",
			msg:  discordgo.MessageCreate{Message: &discordgo.Message{Content: "hi"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.detectMention(&tt.msg); got != tt.want {
				t.Errorf("detectMention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitMessageKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("émoji héavy tëxt", 40)
	for i, p := range splitMessage(long, 50) {
		if len(p) > 50 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(p))
		}
		if !utf8.ValidString(p) {
			t.Errorf("part %d is not valid UTF-8: %q", i, p)
		}
	}
}
