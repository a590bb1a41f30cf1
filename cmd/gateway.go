package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/channels"
	"github.com/chimeworks/gochime/internal/channels/discord"
	"github.com/chimeworks/gochime/internal/channels/telegram"
	"github.com/chimeworks/gochime/internal/config"
	"github.com/chimeworks/gochime/internal/decision"
	"github.com/chimeworks/gochime/internal/proactive"
	"github.com/chimeworks/gochime/internal/providers"
	"github.com/chimeworks/gochime/internal/store"
)

func runGateway() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	msgBus := bus.New()

	// Decider backend. Without one the gateway still runs: checks fire
	// but always resolve to "do not reply".
	var decider providers.Decider
	if cfg.HasDecider() {
		d := providers.NewOpenAIDecider(
			cfg.Decider.APIKey,
			cfg.Decider.BaseURL,
			cfg.Decider.Model,
			time.Duration(cfg.Decider.TimeoutSeconds)*time.Second,
		)
		decider = d
		slog.Info("decider configured", "provider", d.Name(), "model", cfg.Decider.Model)
	} else {
		slog.Warn("no decider API key configured, interjections will never fire")
	}
	pipeline := decision.NewPipeline(decider)

	// Verdict audit store (optional).
	var recorder proactive.VerdictRecorder
	if cfg.Store.Path != "" {
		vs, storeErr := store.OpenVerdictStore(config.ExpandHome(cfg.Store.Path))
		if storeErr != nil {
			slog.Warn("verdict store unavailable, auditing disabled", "error", storeErr)
		} else {
			defer vs.Close()
			recorder = vs
		}
	}

	engine := proactive.NewEngine(cfg, pipeline, proactive.NewBusTransport(msgBus), recorder)

	// Every successful outbound delivery re-arms the conversation's
	// quiet-window timer.
	manager := channels.NewManager(msgBus, func(channel, chatID, sessionKey string) {
		if sessionKey == "" {
			return
		}
		engine.OnBotMessageSent(sessionKey)
	})
	registerChannels(manager, cfg, msgBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload tunables on config file changes.
	stopWatch := config.Watch(cfgPath, func(newCfg *config.Config) {
		slog.Info("config reloaded", "path", cfgPath)
		engine.ApplyConfig(newCfg)
	})
	defer stopWatch()

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consumeInboundMessages(gctx, msgBus, engine, pipeline)
		return nil
	})
	g.Go(func() error {
		engine.RunSweep(gctx)
		return nil
	})

	slog.Info("gochime gateway running", "version", Version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig.String())

	engine.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := manager.StopAll(stopCtx); err != nil {
		slog.Warn("error stopping channels", "error", err)
	}

	cancel()
	_ = g.Wait()
	slog.Info("gochime gateway stopped")
}

// registerChannels builds and registers each enabled platform channel.
func registerChannels(manager *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	if cfg.Channels.Telegram.Enabled {
		if cfg.Channels.Telegram.Token == "" {
			slog.Warn("telegram enabled but no token configured")
		} else if ch, err := telegram.New(cfg.Channels.Telegram, msgBus); err != nil {
			slog.Error("failed to create telegram channel", "error", err)
		} else {
			manager.RegisterChannel(ch.Name(), ch)
		}
	}

	if cfg.Channels.Discord.Enabled {
		if cfg.Channels.Discord.Token == "" {
			slog.Warn("discord enabled but no token configured")
		} else if ch, err := discord.New(cfg.Channels.Discord, msgBus); err != nil {
			slog.Error("failed to create discord channel", "error", err)
		} else {
			manager.RegisterChannel(ch.Name(), ch)
		}
	}
}
