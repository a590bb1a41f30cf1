package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Proactive: ProactiveConfig{
			DebounceDelaySeconds:    5,
			HistoryLimit:            20,
			ContinuousRearm:         false,
			MaxInterjectionsPerHour: 6,
			SweepSchedule:           "*/10 * * * *",
			IdleTTLMinutes:          720,
		},
		Decider: DeciderConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Path: "~/.gochime/verdicts.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env vars apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("GOCHIME_DECIDER_API_KEY", &c.Decider.APIKey)
	envStr("GOCHIME_DECIDER_BASE_URL", &c.Decider.BaseURL)
	envStr("GOCHIME_DECIDER_MODEL", &c.Decider.Model)
	envStr("GOCHIME_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("GOCHIME_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("GOCHIME_STORE_PATH", &c.Store.Path)

	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}
}
