package timeline

import "time"

// MessageEvent is one audited message crossing the gateway, in either
// direction.
type MessageEvent struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Direction string    `json:"direction"` // "in" | "out"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskRecord is the audit row for one engine run. It mirrors the task
// store's lifecycle but lives in SQLite so the dashboard can aggregate
// without scanning JSON files.
type TaskRecord struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	Channel     string     `json:"channel"`
	ChatID      string     `json:"chat_id"`
	SenderID    string     `json:"sender_id"`
	Status      string     `json:"status"`
	ContentIn   string     `json:"content_in,omitempty"`
	ContentOut  string     `json:"content_out,omitempty"`
	Steps       int        `json:"steps"`
	Retries     int        `json:"retries"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stats is the aggregate view served by the dashboard.
type Stats struct {
	TasksByStatus map[string]int `json:"tasks_by_status"`
	TasksLast24h  int            `json:"tasks_last_24h"`
	MessagesIn24h int            `json:"messages_in_24h"`
	TotalMessages int            `json:"total_messages"`
	TotalRetries  int            `json:"total_retries"`
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	sender_id TEXT,
	direction TEXT NOT NULL,
	content TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT UNIQUE NOT NULL,
	channel TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	sender_id TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	content_in TEXT,
	content_out TEXT,
	steps INTEGER NOT NULL DEFAULT 0,
	retries INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_chat ON tasks(chat_id);
`
