package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/config"
)

// QwenCLI spawns the Qwen command-line client for each reasoning turn.
// The full composed prompt goes to stdin; stdout is the response; stderr is
// diagnostics only and never surfaced to the end user.
type QwenCLI struct {
	command string
	args    []string
	timeout time.Duration
}

// NewQwenCLI creates a CLI provider from configuration.
func NewQwenCLI(cfg config.ProviderConfig) *QwenCLI {
	command := cfg.Command
	if command == "" {
		command = "qwen"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	return &QwenCLI{command: command, args: cfg.Args, timeout: timeout}
}

// Generate runs one invocation. Non-empty stdout is success regardless of
// the process exit code; empty stdout, a timeout, or a spawn failure is an
// error. The process is killed when the deadline expires.
func (q *QwenCLI) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, q.command, q.args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if diag := strings.TrimSpace(stderr.String()); diag != "" {
		slog.Warn("reasoning process stderr", "command", q.command, "stderr", diag)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("reasoning process timed out after %s", q.timeout.Round(time.Second))
	}

	response := strings.TrimSpace(stdout.String())
	if response != "" {
		return response, nil
	}
	if err != nil {
		return "", fmt.Errorf("reasoning process failed: %w", err)
	}
	return "", ErrEmptyResponse
}

// Probe runs `<command> --version` with a short timeout.
func (q *QwenCLI) Probe(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, q.command, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", q.command, err)
	}
	return strings.TrimSpace(string(out)), nil
}
