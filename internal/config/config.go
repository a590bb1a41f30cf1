package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration for the GoChime gateway.
type Config struct {
	Proactive ProactiveConfig `json:"proactive"`
	Sticky    StickyConfig    `json:"sticky"`
	Decider   DeciderConfig   `json:"decider"`
	Channels  ChannelsConfig  `json:"channels"`
	Store     StoreConfig     `json:"store"`
}

// ProactiveConfig tunes the quiet-window interjection scheduler.
type ProactiveConfig struct {
	Enabled                 *bool  `json:"enabled,omitempty"`          // default true
	DebounceDelaySeconds    int    `json:"debounce_delay_seconds"`
	HistoryLimit            int    `json:"history_limit"`
	ContinuousRearm         bool   `json:"continuous_rearm"`
	MaxInterjectionsPerHour int    `json:"max_interjections_per_hour"` // 0 = uncapped
	SweepSchedule           string `json:"sweep_schedule"`             // cron expression, "" = disabled
	IdleTTLMinutes          int    `json:"idle_ttl_minutes"`           // 0 = never expire
}

// StickyConfig tunes the one-shot direct-reply gate.
type StickyConfig struct {
	Enabled *bool `json:"enabled,omitempty"` // default true
}

// DeciderConfig configures the external verdict LLM (OpenAI-compatible).
type DeciderConfig struct {
	APIKey         string `json:"api_key,omitempty"`
	BaseURL        string `json:"base_url,omitempty"` // "" = api.openai.com
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ChannelsConfig holds per-platform channel settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

// TelegramConfig configures the Telegram channel (long polling).
type TelegramConfig struct {
	Enabled             bool     `json:"enabled,omitempty"`
	Token               string   `json:"token,omitempty"`
	AllowFrom           []string `json:"allow_from,omitempty"`
	Proxy               string   `json:"proxy,omitempty"`
	FloodLimitPerMinute int      `json:"flood_limit_per_minute,omitempty"` // 0 = default (30)
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Enabled             bool     `json:"enabled,omitempty"`
	Token               string   `json:"token,omitempty"`
	AllowFrom           []string `json:"allow_from,omitempty"`
	FloodLimitPerMinute int      `json:"flood_limit_per_minute,omitempty"` // 0 = default (30)
}

// StoreConfig configures the verdict audit log.
type StoreConfig struct {
	Path string `json:"path,omitempty"` // "" = in-memory only, no audit log
}

// ProactiveEnabled resolves the tri-state enabled flag (default true).
func (c *Config) ProactiveEnabled() bool {
	return c.Proactive.Enabled == nil || *c.Proactive.Enabled
}

// StickyEnabled resolves the tri-state enabled flag (default true).
func (c *Config) StickyEnabled() bool {
	return c.Sticky.Enabled == nil || *c.Sticky.Enabled
}

// HasDecider reports whether a decider backend is configured.
func (c *Config) HasDecider() bool {
	return c.Decider.APIKey != ""
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
