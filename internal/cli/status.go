package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ TeleQwen Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 TeleQwen Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config load failed: %v\n", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if version, err := provider.NewQwenCLI(cfg.Provider).Probe(ctx); err == nil {
			fmt.Printf("Backend: ✓ %s\n", version)
		} else {
			fmt.Printf("Backend: ✗ %v\n", err)
		}

		if cfg.Channels.Telegram.Enabled {
			fmt.Println("Telegram: ✓ Enabled")
		} else {
			fmt.Println("Telegram: ✗ Disabled")
		}
		if cfg.Channels.Slack.Enabled {
			fmt.Println("Slack: ✓ Enabled")
		} else {
			fmt.Println("Slack: ✗ Disabled")
		}

		store := task.NewStore(cfg.Paths.TaskDir())
		fmt.Printf("Tasks: %d stored, %d resumable\n", len(store.All()), len(store.Resumable()))
		fmt.Println("Status:  Ready")
	},
}
