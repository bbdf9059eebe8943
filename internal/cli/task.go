package cli

import (
	"context"
	"encoding/json"
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
	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Inspect and resume persisted tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	taskListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored tasks",
		RunE:  runTaskList,
	}

	taskShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskShow,
	}

	taskResumeCmd = &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a checkpointed task",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskResume,
	}
)

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskResumeCmd)
}

func openTaskStore() (*config.Config, *task.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, task.NewStore(cfg.Paths.TaskDir()), nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	_, store, err := openTaskStore()
	if err != nil {
		return err
	}
	tasks := store.All()
	if len(tasks) == 0 {
		fmt.Println("No tasks stored.")
		return nil
	}
	for _, t := range tasks {
		request := t.UserRequest
		if len(request) > 70 {
			request = request[:70] + "..."
		}
		fmt.Printf("%-10s %-11s steps=%-3d retries=%-3d %s\n", t.ID, t.Status, len(t.Steps), t.RetryCount, request)
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	_, store, err := openTaskStore()
	if err != nil {
		return err
	}
	t, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("no task with id %s", args[0])
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runTaskResume(cmd *cobra.Command, args []string) error {
	cfg, store, err := openTaskStore()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	t, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("no task with id %s", args[0])
	}
	if !t.Resumable() {
		return fmt.Errorf("task %s is %s and cannot be resumed", t.ID, t.Status)
	}

	mem := memory.New(cfg.Paths.ConversationDir(), cfg.Memory.MaxEntries, cfg.Memory.KeepRecent)
	eng := engine.New(engine.Options{
		Provider:   provider.NewQwenCLI(cfg.Provider),
		Store:      store,
		Dispatcher: tools.NewDispatcher(cfg.Tools, cfg.Paths),
		Config:     cfg.Engine,
		Workspace:  cfg.Paths.Workspace,
	})

	fmt.Printf("Resuming task %s from step %d...\n", t.ID, t.CurrentStep+1)
	history := mem.Formatted(t.OwnerID, cfg.Memory.PromptEntries)
	response := eng.Execute(context.Background(), t, history, func(note string) {
		fmt.Println(note)
	})
	mem.Add(t.OwnerID, memory.RoleAssistant, response)

	fmt.Println()
	fmt.Println(response)
	if t.Status == task.StatusFailed {
		os.Exit(1)
	}
	return nil
}
