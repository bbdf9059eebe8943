// Package engine implements the per-request task execution loop with
// checkpointing and layered retry.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/config"
	"github.com/TeleQwen/TeleQwen/internal/provider"
	"github.com/TeleQwen/TeleQwen/internal/task"
	"github.com/TeleQwen/TeleQwen/internal/tools"
)

// BudgetExhaustedMessage is returned when the turn budget runs out before a
// final answer. The task stays resumable.
const BudgetExhaustedMessage = "Task reached maximum turns without a final response. Use /tasks to check status."

// ProgressFunc receives best-effort progress notifications during long
// tasks. Delivery failures must be swallowed by the callback; the engine
// never lets them affect task state.
type ProgressFunc func(message string)

// ToolDispatcher executes an extracted directive. tools.Dispatcher is the
// production implementation.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, kind tools.Kind, body string) tools.Result
}

// Options configures an Engine.
type Options struct {
	Provider   provider.Provider
	Store      *task.Store
	Dispatcher ToolDispatcher
	Config     config.EngineConfig
	// Workspace is named in the system prompt's hygiene rules.
	Workspace string
	// Sleep is overridable in tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Engine drives one task at a time through its turn loop. A single engine
// instance owns a task's mutable state for the duration of Execute;
// concurrent Execute calls on the same task are undefined.
type Engine struct {
	provider   provider.Provider
	store      *task.Store
	dispatcher ToolDispatcher
	cfg        config.EngineConfig
	workspace  string
	sleep      func(time.Duration)
}

// New creates an engine.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxTaskRetries == 0 {
		cfg.MaxTaskRetries = 12
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = 5 * time.Second
	}
	if cfg.RetryBackoffFactor == 0 {
		cfg.RetryBackoffFactor = 3
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = 60 * time.Second
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Engine{
		provider:   opts.Provider,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		cfg:        cfg,
		workspace:  opts.Workspace,
		sleep:      sleep,
	}
}

// Execute runs the task's turn loop to completion, checkpoint, or failure
// and returns the final text. It never returns an error: callers always get
// either a genuine answer or a clearly prefixed failure string.
func (e *Engine) Execute(ctx context.Context, t *task.Task, history string, progress ProgressFunc) string {
	t.Status = task.StatusRunning
	e.persist(t)

	currentInput := t.UserRequest
	taskContext := ""

	// Resuming from a checkpoint: inject the completed-step summary and a
	// generic continuation instruction instead of the original request.
	if t.CurrentStep > 0 {
		taskContext = t.ContextSummary()
		currentInput = "Continue this task from where it left off."
	}

	lastProgress := time.Now()
	finalResponse := ""

	for turn := t.CurrentStep; turn < e.cfg.MaxTurns; turn++ {
		t.CurrentStep = turn

		if progress != nil && time.Since(lastProgress) > e.cfg.ProgressInterval {
			progress(fmt.Sprintf("⏳ Still working... completed step %d/%d max", len(t.Steps), e.cfg.MaxTurns))
			lastProgress = time.Now()
		}

		response, err := e.callWithRetry(ctx, t, currentInput, history, taskContext)
		if err != nil {
			// Retry budget exhausted: terminal, not retried further.
			t.Status = task.StatusFailed
			e.persist(t)
			return fmt.Sprintf("❌ Task failed after %d retry attempts. Last error: %v", e.cfg.MaxRetries, err)
		}

		kind, body, found := tools.Extract(response)
		if !found || turn >= e.cfg.MaxTurns-1 {
			// No directive, or the last allowed turn: this is the answer.
			finalResponse = response
			t.Status = task.StatusCompleted
			e.persist(t)
			break
		}

		step := &task.Step{
			Index:      turn,
			ToolName:   string(kind),
			ToolParams: body,
			Response:   response,
			Status:     task.StepPending,
		}
		t.Steps = append(t.Steps, step)
		// Checkpoint anchor: the step is durable before the side effect runs.
		e.persist(t)

		result, execErr := e.dispatch(ctx, kind, body)
		if execErr != nil {
			// The executor itself faulted (distinct from a reported error
			// result). Record the failure, checkpoint, and let the
			// reasoning process self-correct on the next turn.
			step.ToolResult = "Tool execution error: " + execErr.Error()
			step.Status = task.StepFailed
			t.Status = task.StatusCheckpoint
			e.persist(t)
			slog.Error("tool execution failed", "task_id", t.ID, "step", turn, "tool", kind, "error", execErr)

			currentInput = fmt.Sprintf("Tool [%s] failed with error: %v\n\nPlease try an alternative approach or diagnose the issue.", kind, execErr)
			taskContext = ""
			continue
		}

		encoded, _ := json.Marshal(result)
		step.ToolResult = string(encoded)
		step.Status = task.StepCompleted
		t.Status = task.StatusRunning
		e.persist(t)

		currentInput = fmt.Sprintf("Tool [%s] result:\n%s\n\nContinue with the task. If done, provide your final response to the user.", kind, encoded)
		taskContext = ""
	}

	if finalResponse == "" {
		finalResponse = BudgetExhaustedMessage
		t.Status = task.StatusCheckpoint
		e.persist(t)
	}
	return finalResponse
}

// callWithRetry calls the reasoning process with exponential backoff.
// Empty output, timeouts, and call errors all consume an attempt and bump
// the task's cumulative retry counter; N attempts produce N-1 waits.
func (e *Engine) callWithRetry(ctx context.Context, t *task.Task, input, history, taskContext string) (string, error) {
	prompt := e.composePrompt(input, history, taskContext)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		response, err := e.provider.Generate(ctx, prompt)
		if err == nil && response != "" {
			return response, nil
		}
		if err == nil {
			err = provider.ErrEmptyResponse
		}
		lastErr = err

		t.RetryCount++
		slog.Warn("reasoning call failed", "task_id", t.ID, "attempt", attempt, "retry_count", t.RetryCount, "error", err)
		if t.RetryCount >= e.cfg.MaxTaskRetries {
			return "", fmt.Errorf("task retry budget exhausted (%d total): %w", t.RetryCount, err)
		}

		if attempt < e.cfg.MaxRetries {
			e.sleep(e.backoff(attempt))
		}
	}
	return "", lastErr
}

// backoff returns the wait before the attempt+1-th try: base, base*factor,
// base*factor^2, ...
func (e *Engine) backoff(attempt int) time.Duration {
	wait := e.cfg.RetryBackoffBase
	for i := 1; i < attempt; i++ {
		wait *= time.Duration(e.cfg.RetryBackoffFactor)
	}
	return wait
}

// dispatch runs the tool dispatcher, converting an executor panic into an
// error so one misbehaving tool cannot take the whole task down.
func (e *Engine) dispatch(ctx context.Context, kind tools.Kind, body string) (result tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return e.dispatcher.Dispatch(ctx, kind, body), nil
}

// persist saves the task, logging and swallowing faults: execution
// proceeds on in-memory state, accepting silent loss on crash.
func (e *Engine) persist(t *task.Task) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(t); err != nil {
		slog.Error("task checkpoint failed", "task_id", t.ID, "error", err)
	}
}
