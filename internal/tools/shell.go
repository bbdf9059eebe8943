package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

func (d *Dispatcher) execCommand(ctx context.Context, command string) Result {
	if strings.TrimSpace(command) == "" {
		return errorf("EXEC requires a command")
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	return d.runProcess(ctx, cmd, "Command")
}

func (d *Dispatcher) runPython(ctx context.Context, code string) Result {
	if strings.TrimSpace(code) == "" {
		return errorf("PYTHON requires code to run")
	}
	if err := os.MkdirAll(d.workspace, 0o755); err != nil {
		return errorf("Python execution failed: %v", err)
	}
	// Scratch script lives in the workspace so the agent's directory hygiene
	// rules hold even for its own generated code.
	script := filepath.Join(d.workspace, fmt.Sprintf("_exec_%d.py", os.Getpid()))
	if err := os.WriteFile(script, []byte(code), 0o644); err != nil {
		return errorf("Python execution failed: %v", err)
	}
	defer os.Remove(script)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.pythonBinary, script)
	return d.runProcess(ctx, cmd, "Python execution")
}

// runProcess runs a prepared command, folds stdout and stderr into one
// result, and classifies by exit code. A deadline hit is an error result.
func (d *Dispatcher) runProcess(ctx context.Context, cmd *exec.Cmd, what string) Result {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return errorf("%s timed out after %s.", what, d.timeout.Round(time.Second))
	}

	var parts []string
	if s := strings.TrimSpace(stdout.String()); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		parts = append(parts, "STDERR: "+s)
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		text = what + " finished with no output."
	}

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return errorf("%s failed: %v", what, err)
		}
		exitCode = exitErr.ExitCode()
	}
	text += fmt.Sprintf("\n[Exit code: %d]", exitCode)

	output, truncated := d.truncated(text)
	if exitCode != 0 {
		return Result{Status: StatusError, Output: output, Truncated: truncated}
	}
	return success(output, truncated)
}
