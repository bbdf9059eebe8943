// Package task provides persistent task records with checkpoint support.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	// StatusCheckpoint marks a task saved mid-flight; it can be resumed.
	StatusCheckpoint Status = "checkpoint"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Step status values.
const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// Step is a single tool invocation inside a task. Once its result is
// attached the step is never mutated again.
type Step struct {
	Index      int    `json:"index"`
	ToolName   string `json:"tool_name"`
	ToolParams string `json:"tool_params"`
	ToolResult string `json:"tool_result"`
	Response   string `json:"response_text"`
	Status     string `json:"status"`
}

// Task is one multi-turn request with its execution trail. A single engine
// instance owns a task's mutable state at a time; concurrent mutation is
// undefined.
type Task struct {
	ID          string  `json:"task_id"`
	OwnerID     string  `json:"owner_id"`
	UserRequest string  `json:"user_request"`
	Status      Status  `json:"status"`
	Steps       []*Step `json:"steps"`
	CurrentStep int     `json:"current_step"`
	RetryCount  int     `json:"retry_count"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// New creates a pending task with a fresh short id.
func New(ownerID, userRequest string) *Task {
	now := time.Now().Unix()
	return &Task{
		ID:          NewID(),
		OwnerID:     ownerID,
		UserRequest: userRequest,
		Status:      StatusPending,
		Steps:       []*Step{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewID returns a short opaque task identifier.
func NewID() string {
	return uuid.NewString()[:8]
}

// Resumable reports whether the task can be picked up again. Beyond
// checkpoints, failed tasks and tasks left running by a crash count too,
// so a restart or an explicit retry can continue them.
func (t *Task) Resumable() bool {
	switch t.Status {
	case StatusCheckpoint, StatusFailed, StatusRunning:
		return true
	}
	return false
}

// contextResultPreview caps per-step result text inside the resume summary.
const contextResultPreview = 300

// ContextSummary renders the completed steps for prompt injection on resume.
func (t *Task) ContextSummary() string {
	if len(t.Steps) == 0 {
		return ""
	}
	lines := []string{
		"Original request: " + t.UserRequest,
		"Steps completed so far:",
	}
	for _, s := range t.Steps {
		if s.Status != StepCompleted {
			continue
		}
		lines = append(lines, fmt.Sprintf("  Step %d: Used %s", s.Index+1, s.ToolName))
		if s.ToolResult != "" {
			preview := s.ToolResult
			if len(preview) > contextResultPreview {
				preview = preview[:contextResultPreview] + "..."
			}
			lines = append(lines, "    Result: "+preview)
		}
	}
	lines = append(lines, fmt.Sprintf("\nResume from step %d. Continue the task.", t.CurrentStep+1))
	return strings.Join(lines, "\n")
}
