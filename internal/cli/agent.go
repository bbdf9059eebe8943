package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/engine"
	"github.com/TeleQwen/TeleQwen/internal/memory"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/TeleQwen/TeleQwen/internal/tools"
	"github.com/spf13/cobra"
)

var (
	agentMessage string
	agentOwner   string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a single request through the agent in the terminal",
	Run:   runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Message to send to the agent")
	agentCmd.Flags().StringVarP(&agentOwner, "owner", "o", "cli:default", "Conversation owner key")
}

func runAgent(cmd *cobra.Command, args []string) {
	if agentMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("🤖 TeleQwen Agent")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Printf("Failed to create data directories: %v\n", err)
		os.Exit(1)
	}

	store := task.NewStore(cfg.Paths.TaskDir())
	mem := memory.New(cfg.Paths.ConversationDir(), cfg.Memory.MaxEntries, cfg.Memory.KeepRecent)
	eng := engine.New(engine.Options{
		Provider:   provider.NewQwenCLI(cfg.Provider),
		Store:      store,
		Dispatcher: tools.NewDispatcher(cfg.Tools, cfg.Paths),
		Config:     cfg.Engine,
		Workspace:  cfg.Paths.Workspace,
	})

	mem.Add(agentOwner, memory.RoleUser, agentMessage)
	t, err := store.Create(agentOwner, agentMessage)
	if err != nil {
		fmt.Printf("Failed to create task: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Thinking...")
	history := mem.Formatted(agentOwner, cfg.Memory.PromptEntries)
	response := eng.Execute(context.Background(), t, history, func(note string) {
		fmt.Println(note)
	})
	mem.Add(agentOwner, memory.RoleAssistant, response)

	fmt.Println()
	fmt.Println(response)
}
