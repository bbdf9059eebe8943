package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/bus"
	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/engine"
	"github.com/TeleQwen/TeleQwen/internal/memory"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/TeleQwen/TeleQwen/internal/tools"
)

type cannedProvider struct {
	response string
}

func (p *cannedProvider) Generate(context.Context, string) (string, error) {
	return p.response, nil
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, tools.Kind, string) tools.Result {
	return tools.Result{Status: tools.StatusSuccess, Output: "ok"}
}

type harness struct {
	gw       *Gateway
	store    *task.Store
	memory   *memory.Memory
	outbound chan *bus.OutboundMessage
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, response string, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.MaxTurns = 5
	cfg.Channels.Telegram.AdminID = "1000"
	if mutate != nil {
		mutate(cfg)
	}

	store := task.NewStore(t.TempDir())
	mem := memory.New(t.TempDir(), cfg.Memory.MaxEntries, cfg.Memory.KeepRecent)
	b := bus.NewMessageBus()
	eng := engine.New(engine.Options{
		Provider:   &cannedProvider{response: response},
		Store:      store,
		Dispatcher: nopDispatcher{},
		Config:     cfg.Engine,
		Sleep:      func(time.Duration) {},
	})
	prov := &cannedProvider{response: response}
	gw := New(Options{
		Config:   cfg,
		Bus:      b,
		Engine:   eng,
		Store:    store,
		Memory:   mem,
		Provider: prov,
	})

	out := make(chan *bus.OutboundMessage, 16)
	b.Subscribe("telegram", func(m *bus.OutboundMessage) { out <- m })

	ctx, cancel := context.WithCancel(context.Background())
	go b.DispatchOutbound(ctx)
	t.Cleanup(cancel)

	return &harness{gw: gw, store: store, memory: mem, outbound: out, cancel: cancel}
}

func (h *harness) recv(t *testing.T) *bus.OutboundMessage {
	t.Helper()
	select {
	case m := <-h.outbound:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
		return nil
	}
}

func inbound(sender, content string) *bus.InboundMessage {
	return &bus.InboundMessage{Channel: "telegram", SenderID: sender, ChatID: sender, Content: content}
}

func TestUnauthorizedSenderDropped(t *testing.T) {
	h := newHarness(t, "should not run", nil)
	h.gw.handleMessage(context.Background(), inbound("9999", "hello"))

	select {
	case m := <-h.outbound:
		t.Fatalf("unexpected reply: %q", m.Content)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPlainMessageRunsTask(t *testing.T) {
	h := newHarness(t, "The answer is 4.", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "what is 2+2"))

	m := h.recv(t)
	if m.Content != "The answer is 4." {
		t.Fatalf("reply = %q", m.Content)
	}
	if m.TaskID == "" {
		t.Fatal("reply missing task id")
	}

	history := h.memory.History("telegram:1000")
	if len(history) != 2 || history[0].Role != memory.RoleUser || history[1].Role != memory.RoleAssistant {
		t.Fatalf("history = %+v", history)
	}

	saved, err := h.store.Get(m.TaskID)
	if err != nil || saved == nil {
		t.Fatalf("task not persisted: %v", err)
	}
	if saved.Status != task.StatusCompleted {
		t.Fatalf("task status = %s", saved.Status)
	}
}

func TestRateLimitReply(t *testing.T) {
	h := newHarness(t, "ok", func(cfg *config.Config) {
		cfg.Gateway.RateLimitMessages = 1
		cfg.Gateway.RateLimitWindow = time.Minute
	})
	h.gw.handleMessage(context.Background(), inbound("1000", "/help"))
	h.recv(t)

	h.gw.handleMessage(context.Background(), inbound("1000", "/help"))
	m := h.recv(t)
	if !strings.Contains(m.Content, "Rate limit exceeded") {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestHelpCommand(t *testing.T) {
	h := newHarness(t, "", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "/help"))
	m := h.recv(t)
	if !strings.Contains(m.Content, "/resume") {
		t.Fatalf("help = %q", m.Content)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, "", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "/frobnicate now"))
	m := h.recv(t)
	if !strings.Contains(m.Content, "Unknown command /frobnicate") {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestResetCommandClearsMemory(t *testing.T) {
	h := newHarness(t, "hi", nil)
	h.memory.Add("telegram:1000", memory.RoleUser, "old message")

	h.gw.handleMessage(context.Background(), inbound("1000", "/reset"))
	m := h.recv(t)
	if m.Content != "Conversation memory cleared." {
		t.Fatalf("reply = %q", m.Content)
	}
	if history := h.memory.History("telegram:1000"); len(history) != 0 {
		t.Fatalf("history not cleared: %+v", history)
	}
}

func TestTasksCommandEmpty(t *testing.T) {
	h := newHarness(t, "", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "/tasks"))
	if m := h.recv(t); m.Content != "No tasks yet." {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestTasksCommandLists(t *testing.T) {
	h := newHarness(t, "done", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "first request"))
	h.recv(t)

	h.gw.handleMessage(context.Background(), inbound("1000", "/tasks"))
	m := h.recv(t)
	if !strings.Contains(m.Content, "first request") || !strings.Contains(m.Content, "completed") {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestResumeNoTasks(t *testing.T) {
	h := newHarness(t, "", nil)
	h.gw.handleMessage(context.Background(), inbound("1000", "/resume"))
	if m := h.recv(t); m.Content != "No resumable tasks." {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestResumeCompletedTaskRejected(t *testing.T) {
	h := newHarness(t, "done", nil)
	t1, err := h.store.Create("telegram:1000", "finished work")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t1.Status = task.StatusCompleted
	if err := h.store.Save(t1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h.gw.handleMessage(context.Background(), inbound("1000", "/resume "+t1.ID))
	m := h.recv(t)
	if !strings.Contains(m.Content, "cannot be resumed") {
		t.Fatalf("reply = %q", m.Content)
	}
}

func TestSelfUpdateCommand(t *testing.T) {
	h := newHarness(t, "", nil)
	exited := make(chan int, 1)
	h.gw.exit = func(code int) { exited <- code }

	h.gw.handleMessage(context.Background(), inbound("1000", "/selfupdate"))
	m := h.recv(t)
	if !strings.Contains(m.Content, "Restarting") {
		t.Fatalf("reply = %q", m.Content)
	}

	select {
	case code := <-exited:
		if code != config.RestartExitCode {
			t.Fatalf("exit code = %d, want %d", code, config.RestartExitCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exit not scheduled")
	}
}

func TestResumeCheckpointedTask(t *testing.T) {
	h := newHarness(t, "picked it back up", nil)
	t1, err := h.store.Create("telegram:1000", "long job")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t1.Status = task.StatusCheckpoint
	t1.CurrentStep = 1
	t1.Steps = []*task.Step{{Index: 0, ToolName: "EXEC", Status: task.StepCompleted}}
	if err := h.store.Save(t1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h.gw.handleMessage(context.Background(), inbound("1000", "/resume "+t1.ID))
	m := h.recv(t)
	if m.Content != "picked it back up" {
		t.Fatalf("reply = %q", m.Content)
	}
}
