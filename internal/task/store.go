package task

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store persists tasks as one JSON document per id. Writes are full-file
// overwrites; there is no locking — the caller guarantees a single writer
// per task. A half-written file surfaces as a parse failure on the next
// load and is treated as absence of prior state.
type Store struct {
	dir string
}

// NewStore creates a task store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Init creates the task directory. Calling it twice is a no-op.
func (s *Store) Init() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Create builds, persists and returns a new pending task.
func (s *Store) Create(ownerID, userRequest string) (*Task, error) {
	t := New(ownerID, userRequest)
	if err := s.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Save writes the task to disk, refreshing its updated timestamp.
// Persistence faults are reported but callers may choose to continue on
// in-memory state.
func (s *Store) Save(t *Task) error {
	if err := s.Init(); err != nil {
		return fmt.Errorf("task store init: %w", err)
	}
	t.UpdatedAt = time.Now().Unix()
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	if err := os.WriteFile(s.path(t.ID), data, 0o644); err != nil {
		return fmt.Errorf("write task %s: %w", t.ID, err)
	}
	return nil
}

// Get loads a task by id. A missing or corrupt record yields (nil, nil).
func (s *Store) Get(id string) (*Task, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read task %s: %w", id, err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		slog.Error("skipping corrupt task record", "task_id", id, "error", err)
		return nil, nil
	}
	return &t, nil
}

// Resumable returns every task that can be picked up again (checkpointed,
// failed, or left running by a crash).
func (s *Store) Resumable() []*Task {
	var out []*Task
	for _, t := range s.scan() {
		if t.Resumable() {
			out = append(out, t)
		}
	}
	return out
}

// ForOwner returns the owner's tasks, most recently updated first,
// capped at limit (0 means no cap).
func (s *Store) ForOwner(ownerID string, limit int) []*Task {
	var out []*Task
	for _, t := range s.scan() {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// All returns every readable task record.
func (s *Store) All() []*Task {
	return s.scan()
}

// scan reads every task file in the store directory, skipping records that
// fail to parse.
func (s *Store) scan() []*Task {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var out []*Task
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		t, err := s.Get(id)
		if err != nil || t == nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}
