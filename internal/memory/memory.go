// Package memory provides persistent per-owner conversation history with
// lossy summarization on overflow.
package memory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is one conversation message.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// summaryEntryCap limits each old message's contribution to the summary.
const summaryEntryCap = 200

// Memory manages per-owner conversation logs. Each owner's history lives in
// one JSON file; writes are full-file overwrites with no locking (single
// writer per owner by caller discipline).
type Memory struct {
	dir        string
	maxEntries int
	keepRecent int

	mu    sync.Mutex
	cache map[string][]Entry
}

// New creates a conversation memory rooted at dir. maxEntries is the hard
// storage cap; keepRecent is how many trailing entries survive compression.
func New(dir string, maxEntries, keepRecent int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if keepRecent <= 0 || keepRecent >= maxEntries {
		keepRecent = maxEntries * 3 / 5
	}
	return &Memory{
		dir:        dir,
		maxEntries: maxEntries,
		keepRecent: keepRecent,
		cache:      make(map[string][]Entry),
	}
}

// Init creates the storage directory. Calling it twice is a no-op.
func (m *Memory) Init() error {
	return os.MkdirAll(m.dir, 0o755)
}

// Add appends a message to the owner's history and persists it. When the
// history exceeds the cap, everything but the most recent entries is
// replaced by a single system summary entry. Compression is one-way.
func (m *Memory) Add(ownerID, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.load(ownerID), Entry{Role: role, Content: content})
	if len(history) > m.maxEntries {
		history = compress(history, m.keepRecent)
	}
	m.cache[ownerID] = history
	m.save(ownerID, history)
}

// History returns a copy of the owner's stored history.
func (m *Memory) History(ownerID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.load(ownerID)
	out := make([]Entry, len(history))
	copy(out, history)
	return out
}

// Formatted renders the owner's last maxMessages entries as role-prefixed
// lines for prompt injection.
func (m *Memory) Formatted(ownerID string, maxMessages int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.load(ownerID)
	if maxMessages > 0 && len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, strings.ToUpper(e.Role)+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}

// Reset drops the owner's history from cache and disk.
func (m *Memory) Reset(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[ownerID] = []Entry{}
	if err := os.Remove(m.path(ownerID)); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove conversation history", "owner", ownerID, "error", err)
	}
}

// Stats reports the owner's message count against the storage cap.
func (m *Memory) Stats(ownerID string) (count, max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.load(ownerID)), m.maxEntries
}

// Owners returns the owner ids with persisted history.
func (m *Memory) Owners() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return out
}

// compress folds all but the last keep entries into one leading system
// summary entry. There is no decompression path.
func compress(history []Entry, keep int) []Entry {
	if len(history) <= keep {
		return history
	}
	old := history[:len(history)-keep]
	recent := history[len(history)-keep:]

	parts := make([]string, 0, len(old))
	for _, e := range old {
		content := e.Content
		if len(content) > summaryEntryCap {
			content = content[:summaryEntryCap] + "..."
		}
		parts = append(parts, strings.ToUpper(e.Role)+": "+content)
	}
	summary := "[CONVERSATION SUMMARY]\n" + strings.Join(parts, "\n") + "\n[END SUMMARY]"

	out := make([]Entry, 0, keep+1)
	out = append(out, Entry{Role: RoleSystem, Content: summary})
	return append(out, recent...)
}

// load returns the owner's history, reading from disk on first access.
// A corrupt file is treated as absence of prior state.
func (m *Memory) load(ownerID string) []Entry {
	if history, ok := m.cache[ownerID]; ok {
		return history
	}
	var history []Entry
	data, err := os.ReadFile(m.path(ownerID))
	if err == nil {
		if err := json.Unmarshal(data, &history); err != nil {
			slog.Error("corrupt conversation history, starting fresh", "owner", ownerID, "error", err)
			history = nil
		}
	}
	if history == nil {
		history = []Entry{}
	}
	m.cache[ownerID] = history
	return history
}

// save persists the owner's history. Faults are logged and swallowed:
// execution proceeds on in-memory state.
func (m *Memory) save(ownerID string, history []Entry) {
	if err := m.Init(); err != nil {
		slog.Error("failed to create conversation dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		slog.Error("failed to marshal conversation history", "owner", ownerID, "error", err)
		return
	}
	if err := os.WriteFile(m.path(ownerID), data, 0o644); err != nil {
		slog.Error("failed to save conversation history", "owner", ownerID, "error", err)
	}
}

func (m *Memory) path(ownerID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(ownerID)
	return filepath.Join(m.dir, fmt.Sprintf("%s.json", filepath.Base(safe)))
}
