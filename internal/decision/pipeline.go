// Package decision turns buffered chat messages into an interjection
// verdict by consulting the external decider LLM and parsing its
// JSON-wrapped-in-prose answer.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/providers"
)

// Error taxonomy. All of them downgrade to "do not interject this cycle"
// at the caller; none should crash the scheduler loop.
var (
	// ErrDeciderUnavailable means no decider backend is configured.
	ErrDeciderUnavailable = errors.New("decider unavailable")

	// ErrMalformedVerdict means the decider answered but no usable JSON
	// verdict could be recovered from the text.
	ErrMalformedVerdict = errors.New("malformed verdict")
)

// Verdict is the canonical decision schema.
type Verdict struct {
	ShouldReply bool   `json:"should_reply"`
	Content     string `json:"content"`
}

const verdictInstruction = `Based on the conversation above, decide whether you should speak up now. Answer strictly as JSON inside a ` + "```json ... ```" + ` code block, with no other text.
Format:
` + "```json" + `
{"should_reply": true, "content": "<REPLY_CONTENT>"}
` + "```" + `
or
` + "```json" + `
{"should_reply": false, "content": ""}
` + "```"

const verdictSystem = "You are a chat participant deciding whether to interject in a group conversation. Only reply when you genuinely add something; staying silent is the default."

// Pipeline renders transcripts, invokes the decider, and parses verdicts.
type Pipeline struct {
	decider providers.Decider
}

// NewPipeline creates a pipeline around the given decider.
// decider may be nil; Decide then resolves to ErrDeciderUnavailable.
func NewPipeline(decider providers.Decider) *Pipeline {
	return &Pipeline{decider: decider}
}

// Decide asks the decider whether to interject, given the messages observed
// during the quiet window. It ALWAYS returns a usable Verdict: on any
// failure the verdict is {false, ""} and the error classifies the failure
// for logging and auditing.
func (p *Pipeline) Decide(ctx context.Context, key string, msgs []bus.ChatMessage) (Verdict, error) {
	if p.decider == nil {
		return Verdict{}, ErrDeciderUnavailable
	}

	prompt := fmt.Sprintf("[Chat messages since your last reply]\n%s\n\n%s",
		RenderTranscript(msgs), verdictInstruction)

	raw, err := p.decider.Complete(ctx, prompt, verdictSystem)
	if err != nil {
		return Verdict{}, fmt.Errorf("decider: %w", err)
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		slog.Warn("decision: unparseable verdict",
			"key", key,
			"error", err,
			"raw_preview", preview(raw, 120),
		)
		return Verdict{}, err
	}
	return verdict, nil
}

// DirectReply handles the sticky bypass path: the decider is asked to reply
// to one message directly, with saved context, no verdict schema.
func (p *Pipeline) DirectReply(ctx context.Context, key string, message bus.ChatMessage, saved []bus.ChatMessage) (string, error) {
	if p.decider == nil {
		return "", ErrDeciderUnavailable
	}

	var b strings.Builder
	if len(saved) > 0 {
		fmt.Fprintf(&b, "[Recent conversation]\n%s\n\n", RenderTranscript(saved))
	}
	fmt.Fprintf(&b, "%s says: %s\n\nReply directly to this message as a natural chat participant.", senderLabel(message), message.Text)

	reply, err := p.decider.Complete(ctx, b.String(), "")
	if err != nil {
		return "", fmt.Errorf("decider: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// ParseVerdict recovers a Verdict from untrusted decider output.
// Tolerates code fences and prose, and the reply_content field alias.
func ParseVerdict(raw string) (Verdict, error) {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return Verdict{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedVerdict)
	}

	var decoded struct {
		ShouldReply  *bool  `json:"should_reply"`
		Content      string `json:"content"`
		ReplyContent string `json:"reply_content"`
	}
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if decoded.ShouldReply == nil {
		return Verdict{}, fmt.Errorf("%w: missing should_reply", ErrMalformedVerdict)
	}

	content := decoded.Content
	if content == "" {
		content = decoded.ReplyContent
	}

	verdict := Verdict{ShouldReply: *decoded.ShouldReply, Content: strings.TrimSpace(content)}
	if verdict.ShouldReply && verdict.Content == "" {
		// A yes with nothing to say is a no.
		verdict.ShouldReply = false
	}
	return verdict, nil
}

// RenderTranscript formats messages as "sender [HH:MM]: text" lines in
// arrival order.
func RenderTranscript(msgs []bus.ChatMessage) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s [%s]: %s", senderLabel(m), m.Timestamp.Format("15:04"), m.Text)
	}
	return b.String()
}

func senderLabel(m bus.ChatMessage) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	if m.SenderID != "" {
		return m.SenderID
	}
	return "unknown"
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
