// Package timeline is the SQLite-backed audit log behind the dashboard.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service wraps the audit database. All writes are best-effort from the
// caller's point of view; the gateway logs and continues when auditing
// fails.
type Service struct {
	db *sql.DB
}

// New opens (or creates) the audit database at dbPath and applies the
// schema.
func New(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}

// RecordMessage appends one message audit row.
func (s *Service) RecordMessage(channel, chatID, senderID, direction, content string) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (channel, chat_id, sender_id, direction, content) VALUES (?, ?, ?, ?, ?)`,
		channel, chatID, senderID, direction, content,
	)
	return err
}

// CreateTask records the start of an engine run.
func (s *Service) CreateTask(taskID, channel, chatID, senderID, contentIn string) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (task_id, channel, chat_id, sender_id, status, content_in) VALUES (?, ?, ?, ?, 'pending', ?)`,
		taskID, channel, chatID, senderID, contentIn,
	)
	return err
}

// FinishTask records the outcome of an engine run. Terminal statuses also
// stamp completed_at.
func (s *Service) FinishTask(taskID, status, contentOut string, steps, retries int) error {
	var completedAt any
	if status == "completed" || status == "failed" {
		completedAt = time.Now()
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, content_out = ?, steps = ?, retries = ?, updated_at = CURRENT_TIMESTAMP, completed_at = COALESCE(?, completed_at) WHERE task_id = ?`,
		status, contentOut, steps, retries, completedAt, taskID,
	)
	return err
}

// GetTask returns one task audit row, or nil when absent.
func (s *Service) GetTask(taskID string) (*TaskRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, task_id, channel, chat_id, COALESCE(sender_id, ''), status,
		        COALESCE(content_in, ''), COALESCE(content_out, ''), steps, retries,
		        created_at, updated_at, completed_at
		 FROM tasks WHERE task_id = ?`, taskID)
	var t TaskRecord
	var completed sql.NullTime
	err := row.Scan(&t.ID, &t.TaskID, &t.Channel, &t.ChatID, &t.SenderID, &t.Status,
		&t.ContentIn, &t.ContentOut, &t.Steps, &t.Retries, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return &t, nil
}

// RecentTasks returns the latest task audit rows, newest first.
func (s *Service) RecentTasks(limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, task_id, channel, chat_id, COALESCE(sender_id, ''), status,
		        COALESCE(content_in, ''), COALESCE(content_out, ''), steps, retries,
		        created_at, updated_at, completed_at
		 FROM tasks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var completed sql.NullTime
		if err := rows.Scan(&t.ID, &t.TaskID, &t.Channel, &t.ChatID, &t.SenderID, &t.Status,
			&t.ContentIn, &t.ContentOut, &t.Steps, &t.Retries, &t.CreatedAt, &t.UpdatedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			t.CompletedAt = &completed.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentMessages returns the latest message audit rows, newest first.
func (s *Service) RecentMessages(limit int) ([]MessageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, channel, chat_id, COALESCE(sender_id, ''), direction, COALESCE(content, ''), created_at
		 FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageEvent
	for rows.Next() {
		var m MessageEvent
		if err := rows.Scan(&m.ID, &m.Channel, &m.ChatID, &m.SenderID, &m.Direction, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetStats aggregates the audit log for the dashboard.
func (s *Service) GetStats() (*Stats, error) {
	stats := &Stats{TasksByStatus: map[string]int{}}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.TasksByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE created_at >= datetime('now', '-1 day')`,
	).Scan(&stats.TasksLast24h); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE created_at >= datetime('now', '-1 day')`,
	).Scan(&stats.MessagesIn24h); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&stats.TotalMessages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(retries), 0) FROM tasks`).Scan(&stats.TotalRetries); err != nil {
		return nil, err
	}
	return stats, nil
}
