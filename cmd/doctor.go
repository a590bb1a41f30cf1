package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/chimeworks/gochime/internal/config"
	"github.com/chimeworks/gochime/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("gochime doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Decider:")
	if cfg.HasDecider() {
		fmt.Printf("    %-12s %s\n", "Model:", cfg.Decider.Model)
		if cfg.Decider.BaseURL != "" {
			fmt.Printf("    %-12s %s\n", "Base URL:", cfg.Decider.BaseURL)
		}
		fmt.Printf("    %-12s configured\n", "API key:")
	} else {
		fmt.Println("    No API key configured — interjections will never fire.")
		fmt.Println("    Set decider.api_key or GOCHIME_DECIDER_API_KEY.")
	}

	fmt.Println()
	fmt.Println("  Channels:")
	printChannel("telegram", cfg.Channels.Telegram.Enabled, cfg.Channels.Telegram.Token)
	printChannel("discord", cfg.Channels.Discord.Enabled, cfg.Channels.Discord.Token)

	fmt.Println()
	fmt.Println("  Proactive:")
	fmt.Printf("    %-12s %v\n", "Enabled:", cfg.ProactiveEnabled())
	fmt.Printf("    %-12s %ds\n", "Delay:", cfg.Proactive.DebounceDelaySeconds)
	fmt.Printf("    %-12s %d\n", "History:", cfg.Proactive.HistoryLimit)

	if cfg.Store.Path != "" {
		fmt.Println()
		dbPath := config.ExpandHome(cfg.Store.Path)
		fmt.Printf("  Verdict store: %s", dbPath)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		vs, err := store.OpenVerdictStore(dbPath)
		if err != nil {
			fmt.Printf(" (ERROR: %s)\n", err)
		} else {
			_, recentErr := vs.Recent(ctx, "", 1)
			vs.Close()
			if recentErr != nil {
				fmt.Printf(" (ERROR: %s)\n", recentErr)
			} else {
				fmt.Println(" (OK)")
			}
		}
	}
}

func printChannel(name string, enabled bool, token string) {
	switch {
	case !enabled:
		fmt.Printf("    %-12s disabled\n", name+":")
	case token == "":
		fmt.Printf("    %-12s enabled but no token\n", name+":")
	default:
		fmt.Printf("    %-12s enabled\n", name+":")
	}
}
