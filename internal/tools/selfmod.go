package tools

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/config"
)

// selfModify writes one of the agent's own files. The resolved target must
// stay under the install root; this is an advisory path policy, not a
// sandbox — the agent has full access through the other tools anyway.
func (d *Dispatcher) selfModify(relPath, content string) Result {
	root, err := filepath.Abs(d.installRoot)
	if err != nil {
		return errorf("Self-modification failed: %v", err)
	}
	target := filepath.Clean(filepath.Join(root, relPath))
	if !isWithin(root, target) {
		return errorf("Path must be within the agent directory.")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errorf("Self-modification failed: %v", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return errorf("Self-modification failed: %v", err)
	}
	slog.Info("self-modify updated file", "path", target)
	return success(fmt.Sprintf("Successfully modified %s. Use SELF_RESTART to apply changes.", relPath), false)
}

// selfRestart schedules a process exit with the restart code the outer
// supervisor watches for. The delay lets the result reach the user first.
func (d *Dispatcher) selfRestart() Result {
	slog.Info("self-restart triggered", "exit_code", config.RestartExitCode)
	exit := d.exit
	time.AfterFunc(2*time.Second, func() { exit(config.RestartExitCode) })
	return success("Agent will restart in 2 seconds...", false)
}

func osExit(code int) { os.Exit(code) }

// isWithin reports whether path is root or a descendant of root.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}
