package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/channels"
	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/dashboard"
	"github.com/TeleQwen/TeleQwen/internal/engine"
	"github.com/TeleQwen/TeleQwen/internal/gateway"
	"github.com/TeleQwen/TeleQwen/internal/memory"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/TeleQwen/TeleQwen/internal/timeline"
	"github.com/TeleQwen/TeleQwen/internal/tools"
	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the agent gateway (Telegram, Slack, dashboard)",
	Run:   runGateway,
}

func runGateway(cmd *cobra.Command, args []string) {
	printHeader("🌐 TeleQwen Gateway")
	fmt.Println("Starting TeleQwen Gateway...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Printf("Failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	audit, err := timeline.New(cfg.Paths.TimelineDB())
	if err != nil {
		fmt.Printf("Failed to init audit db: %v\n", err)
		os.Exit(1)
	}
	defer audit.Close()

	store := task.NewStore(cfg.Paths.TaskDir())
	mem := memory.New(cfg.Paths.ConversationDir(), cfg.Memory.MaxEntries, cfg.Memory.KeepRecent)
	msgBus := bus.NewMessageBus()
	prov := provider.NewQwenCLI(cfg.Provider)
	dispatcher := tools.NewDispatcher(cfg.Tools, cfg.Paths)

	eng := engine.New(engine.Options{
		Provider:   prov,
		Store:      store,
		Dispatcher: dispatcher,
		Config:     cfg.Engine,
		Workspace:  cfg.Paths.Workspace,
	})
	gw := gateway.New(gateway.Options{
		Config:   cfg,
		Bus:      msgBus,
		Engine:   eng,
		Store:    store,
		Memory:   mem,
		Provider: prov,
		Audit:    audit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if resumable := store.Resumable(); len(resumable) > 0 {
		fmt.Printf("📋 %d resumable task(s) found. Use /resume in chat to continue them.\n", len(resumable))
	}
	if version, err := prov.Probe(ctx); err == nil {
		fmt.Printf("🧠 Reasoning backend: %s\n", version)
	} else {
		fmt.Printf("⚠️ Reasoning backend unavailable: %v\n", err)
	}

	var slack *channels.SlackChannel
	active := []channels.Channel{}
	if cfg.Channels.Telegram.Enabled {
		active = append(active, channels.NewTelegramChannel(cfg.Channels.Telegram, msgBus, cfg.Gateway.MaxReplyLength))
	}
	if cfg.Channels.Slack.Enabled {
		slack = channels.NewSlackChannel(cfg.Channels.Slack, msgBus)
		active = append(active, slack)
	}
	for _, ch := range active {
		if err := ch.Start(ctx); err != nil {
			fmt.Printf("Failed to start %s channel: %v\n", ch.Name(), err)
			os.Exit(1)
		}
		fmt.Printf("📡 Channel enabled: %s\n", ch.Name())
	}
	if len(active) == 0 {
		fmt.Println("⚠️ No channels enabled. The gateway will only serve HTTP.")
	}

	gateway.NewServer(gw, slack).Start(ctx)
	dashboard.New(audit, cfg.Gateway.Host, cfg.Gateway.DashboardPort).Start(ctx)

	go msgBus.DispatchOutbound(ctx)
	go func() {
		if err := gw.Run(ctx); err != nil {
			fmt.Printf("Gateway loop error: %v\n", err)
		}
	}()

	fmt.Printf("📊 Dashboard: http://%s:%d\n", cfg.Gateway.Host, cfg.Gateway.DashboardPort)
	fmt.Println("Gateway running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	gw.Stop()
	cancel()
	for _, ch := range active {
		_ = ch.Stop()
	}
}
