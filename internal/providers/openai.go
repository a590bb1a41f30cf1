package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDecider talks to any OpenAI-compatible chat-completion endpoint
// (OpenAI, Moonshot, DeepSeek, OpenRouter, ...) via a configurable base URL.
type OpenAIDecider struct {
	client  *openai.Client
	model   string
	name    string
	timeout time.Duration
}

// NewOpenAIDecider creates a decider client. baseURL may be empty for the
// default OpenAI endpoint. timeout bounds each completion call.
func NewOpenAIDecider(apiKey, baseURL, model string, timeout time.Duration) *OpenAIDecider {
	cfg := openai.DefaultConfig(apiKey)
	name := "openai"
	if baseURL != "" {
		cfg.BaseURL = baseURL
		name = providerNameFromURL(baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIDecider{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		name:    name,
		timeout: timeout,
	}
}

// Complete sends a single-turn completion request.
// Low temperature: verdicts should be near-deterministic.
func (d *OpenAIDecider) Complete(ctx context.Context, prompt, system string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Messages:    messages,
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns the provider identifier.
func (d *OpenAIDecider) Name() string { return d.name }

// providerNameFromURL derives a short provider label from a base URL host.
func providerNameFromURL(baseURL string) string {
	hosts := map[string]string{
		"api.moonshot.cn":  "moonshot",
		"api.deepseek.com": "deepseek",
		"openrouter.ai":    "openrouter",
		"api.groq.com":     "groq",
	}
	for host, name := range hosts {
		if strings.Contains(baseURL, host) {
			return name
		}
	}
	return "openai"
}
