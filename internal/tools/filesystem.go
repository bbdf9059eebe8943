package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileReadCap limits file contents fed back to the model. Smaller than the
// general output cap because file dumps crowd out everything else.
const fileReadCap = 10000

func (d *Dispatcher) fileRead(path string) Result {
	path = expandPath(path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errorf("File not found: %s", path)
		}
		return errorf("Failed to read file: %v", err)
	}
	if info.IsDir() {
		return errorf("Not a file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return errorf("Failed to read file: %v", err)
	}
	output, truncated := truncate(string(content), fileReadCap)
	return success(output, truncated)
}

func (d *Dispatcher) fileWrite(path, content string) Result {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorf("Failed to write file: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errorf("Failed to write file: %v", err)
	}
	return success(fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), false)
}

func (d *Dispatcher) listFiles(dir string) Result {
	dir = expandPath(dir)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errorf("Directory not found: %s", dir)
		}
		return errorf("Failed to list directory: %v", err)
	}
	if !info.IsDir() {
		return errorf("Not a directory: %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errorf("Failed to list directory: %v", err)
	}
	if len(entries) == 0 {
		return success(fmt.Sprintf("Empty directory: %s", dir), false)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		prefix := "[FILE] "
		size := ""
		if e.IsDir() {
			prefix = "[DIR]  "
		} else if fi, err := e.Info(); err == nil {
			size = " (" + humanSize(fi.Size()) + ")"
		}
		lines = append(lines, prefix+e.Name()+size)
	}
	output, truncated := d.truncated(strings.Join(lines, "\n"))
	return success(output, truncated)
}

func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%dKB", n/1024)
	default:
		return fmt.Sprintf("%dMB", n/(1024*1024))
	}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
