package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/task"
)

const helpText = `Available commands:
/start  - greet the agent
/help   - this message
/reset  - clear conversation memory
/status - agent health and counters
/tasks  - your recent tasks
/resume [id] - resume a checkpointed task
/selfupdate - restart the agent to pick up changes

Anything else is treated as a request. The agent can search the web, read
and write files, run shell commands and Python, and modify itself.`

// runCommand executes a slash command and returns the reply text. Unknown
// commands get a pointer to /help instead of silence.
func (g *Gateway) runCommand(ctx context.Context, msg *bus.InboundMessage, content string) string {
	fields := strings.Fields(content)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/start":
		return "👋 Ready. Send me a request, or /help for commands."
	case "/help":
		return helpText
	case "/reset":
		g.memory.Reset(ownerKey(msg))
		return "Conversation memory cleared."
	case "/status":
		return g.statusText(ctx, msg)
	case "/tasks":
		return g.tasksText(msg)
	case "/resume":
		return g.resumeCommand(ctx, msg, args)
	case "/selfupdate":
		return g.selfUpdate()
	default:
		return fmt.Sprintf("Unknown command %s. Try /help.", command)
	}
}

func (g *Gateway) statusText(ctx context.Context, msg *bus.InboundMessage) string {
	var b strings.Builder
	b.WriteString("Status\n")
	fmt.Fprintf(&b, "  Uptime: %s\n", time.Since(g.started).Round(time.Second))

	if p, ok := g.provider.(provider.Prober); ok {
		if version, err := p.Probe(ctx); err == nil {
			fmt.Fprintf(&b, "  Reasoning backend: %s\n", version)
		} else {
			fmt.Fprintf(&b, "  Reasoning backend: unavailable (%v)\n", err)
		}
	}

	count, max := g.memory.Stats(ownerKey(msg))
	fmt.Fprintf(&b, "  Memory: %d/%d messages\n", count, max)
	fmt.Fprintf(&b, "  Resumable tasks: %d\n", len(g.store.Resumable()))
	fmt.Fprintf(&b, "  Queue: %d inbound, %d outbound", g.bus.InboundSize(), g.bus.OutboundSize())
	return b.String()
}

func (g *Gateway) tasksText(msg *bus.InboundMessage) string {
	tasks := g.store.ForOwner(ownerKey(msg), 5)
	if len(tasks) == 0 {
		return "No tasks yet."
	}
	var b strings.Builder
	b.WriteString("Recent tasks:\n")
	for _, t := range tasks {
		request := t.UserRequest
		if len(request) > 60 {
			request = request[:60] + "..."
		}
		fmt.Fprintf(&b, "%s %s [%s] %s\n", statusIcon(t.Status), t.ID, t.Status, request)
	}
	b.WriteString("\nUse /resume <id> to continue a checkpointed task.")
	return b.String()
}

func (g *Gateway) resumeCommand(ctx context.Context, msg *bus.InboundMessage, args []string) string {
	var t *task.Task
	if len(args) > 0 {
		found, err := g.store.Get(args[0])
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		if found == nil {
			return fmt.Sprintf("No task with id %s.", args[0])
		}
		t = found
	} else {
		// No id: pick the owner's most recently updated resumable task.
		for _, candidate := range g.store.ForOwner(ownerKey(msg), 0) {
			if candidate.Resumable() {
				t = candidate
				break
			}
		}
		if t == nil {
			return "No resumable tasks."
		}
	}
	if !t.Resumable() {
		return fmt.Sprintf("Task %s is %s and cannot be resumed.", t.ID, t.Status)
	}
	return g.resumeTask(ctx, msg, t)
}

// selfUpdate schedules a process exit with the restart code the outer
// supervisor watches for. The delay lets the reply reach the transport.
func (g *Gateway) selfUpdate() string {
	slog.Info("self-update restart triggered", "exit_code", config.RestartExitCode)
	exit := g.exit
	time.AfterFunc(2*time.Second, func() { exit(config.RestartExitCode) })
	return "🔄 Restarting to apply updates. Back in a moment..."
}

func statusIcon(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return "✅"
	case task.StatusFailed:
		return "❌"
	case task.StatusCheckpoint:
		return "⏸"
	case task.StatusRunning:
		return "▶"
	default:
		return "•"
	}
}
