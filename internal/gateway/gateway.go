// Package gateway owns the request boundary: it consumes inbound messages,
// enforces authorization and rate limits, runs chat commands, and drives
// the task engine.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/engine"
	"github.com/TeleQwen/TeleQwen/internal/memory"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/ratelimit"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/TeleQwen/TeleQwen/internal/timeline"
)

// Options wires a Gateway.
type Options struct {
	Config   *config.Config
	Bus      *bus.MessageBus
	Engine   *engine.Engine
	Store    *task.Store
	Memory   *memory.Memory
	Provider provider.Provider
	// Audit is optional; auditing failures never block message handling.
	Audit *timeline.Service
}

// Gateway processes one inbound message at a time. Tasks from different
// chats are therefore serialized, which keeps the single-writer persistence
// model honest.
type Gateway struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	engine   *engine.Engine
	store    *task.Store
	memory   *memory.Memory
	provider provider.Provider
	audit    *timeline.Service
	limiter  *ratelimit.Limiter
	running  atomic.Bool
	started  time.Time
	// exit is called (after a delay) by /selfupdate. Overridable in tests.
	exit func(code int)
}

// New creates a gateway.
func New(opts Options) *Gateway {
	gw := opts.Config.Gateway
	return &Gateway{
		cfg:      opts.Config,
		bus:      opts.Bus,
		engine:   opts.Engine,
		store:    opts.Store,
		memory:   opts.Memory,
		provider: opts.Provider,
		audit:    opts.Audit,
		limiter:  ratelimit.New(gw.RateLimitMessages, gw.RateLimitWindow),
		started:  time.Now(),
		exit:     func(code int) { os.Exit(code) },
	}
}

// Run consumes inbound messages until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.running.Store(true)
	slog.Info("gateway loop started")

	for g.running.Load() {
		msg, err := g.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to consume message", "error", err)
			continue
		}
		g.handleMessage(ctx, msg)
	}
	return nil
}

// Stop signals the loop to stop after the current message.
func (g *Gateway) Stop() {
	g.running.Store(false)
}

func (g *Gateway) handleMessage(ctx context.Context, msg *bus.InboundMessage) {
	if !g.authorized(msg) {
		slog.Warn("unauthorized message dropped", "channel", msg.Channel, "sender", msg.SenderID)
		return
	}

	owner := ownerKey(msg)
	if !g.limiter.Allow(owner) {
		g.reply(msg, "", "⏳ Rate limit exceeded. Please wait a moment.")
		return
	}

	g.record(msg.Channel, msg.ChatID, msg.SenderID, "in", msg.Content)

	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, "/") {
		g.reply(msg, "", g.runCommand(ctx, msg, content))
		return
	}

	g.runTask(ctx, msg, content)
}

// authorized enforces the Telegram admin lock. Other channels handle their
// own access control (the Slack bridge authenticates inbound posts).
func (g *Gateway) authorized(msg *bus.InboundMessage) bool {
	if msg.Channel != "telegram" {
		return true
	}
	admin := strings.TrimSpace(g.cfg.Channels.Telegram.AdminID)
	if admin == "" {
		return true
	}
	return msg.SenderID == admin || msg.ChatID == admin
}

func (g *Gateway) runTask(ctx context.Context, msg *bus.InboundMessage, content string) {
	owner := ownerKey(msg)
	g.memory.Add(owner, memory.RoleUser, content)

	t, err := g.store.Create(owner, content)
	if err != nil {
		slog.Error("failed to create task", "error", err)
		g.reply(msg, "", fmt.Sprintf("Error: %v", err))
		return
	}
	if g.audit != nil {
		if err := g.audit.CreateTask(t.ID, msg.Channel, msg.ChatID, msg.SenderID, content); err != nil {
			slog.Warn("task audit failed", "task_id", t.ID, "error", err)
		}
	}

	history := g.memory.Formatted(owner, g.cfg.Memory.PromptEntries)
	progress := func(note string) { g.reply(msg, t.ID, note) }

	response := g.engine.Execute(ctx, t, history, progress)

	g.memory.Add(owner, memory.RoleAssistant, response)
	if g.audit != nil {
		if err := g.audit.FinishTask(t.ID, string(t.Status), response, len(t.Steps), t.RetryCount); err != nil {
			slog.Warn("task audit failed", "task_id", t.ID, "error", err)
		}
	}
	g.reply(msg, t.ID, response)
}

// resumeTask re-enters a checkpointed task.
func (g *Gateway) resumeTask(ctx context.Context, msg *bus.InboundMessage, t *task.Task) string {
	progress := func(note string) { g.reply(msg, t.ID, note) }
	history := g.memory.Formatted(ownerKey(msg), g.cfg.Memory.PromptEntries)

	response := g.engine.Execute(ctx, t, history, progress)
	g.memory.Add(ownerKey(msg), memory.RoleAssistant, response)
	if g.audit != nil {
		if err := g.audit.FinishTask(t.ID, string(t.Status), response, len(t.Steps), t.RetryCount); err != nil {
			slog.Warn("task audit failed", "task_id", t.ID, "error", err)
		}
	}
	return response
}

func (g *Gateway) reply(msg *bus.InboundMessage, taskID, content string) {
	if content == "" {
		return
	}
	g.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		TaskID:  taskID,
		Content: content,
	})
	g.record(msg.Channel, msg.ChatID, "", "out", content)
}

func (g *Gateway) record(channel, chatID, senderID, direction, content string) {
	if g.audit == nil {
		return
	}
	if err := g.audit.RecordMessage(channel, chatID, senderID, direction, content); err != nil {
		slog.Warn("message audit failed", "error", err)
	}
}

// ownerKey scopes memory and task ownership to one chat on one channel.
func ownerKey(msg *bus.InboundMessage) string {
	return msg.Channel + ":" + msg.ChatID
}
