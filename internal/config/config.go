// Package config provides configuration types and loading for teleqwen.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Provider, Engine, Memory, Channels, Gateway, Tools.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Provider ProviderConfig `json:"provider"`
	Engine   EngineConfig   `json:"engine"`
	Memory   MemoryConfig   `json:"memory"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Tools    ToolsConfig    `json:"tools"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	// DataDir holds tasks/, conversations/ and the timeline database.
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	// Workspace is where the agent is told to put scratch files and scripts.
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	// InstallRoot is the directory self-modification is confined to.
	InstallRoot string `json:"installRoot" envconfig:"INSTALL_ROOT"`
}

// TaskDir returns the task record directory.
func (p PathsConfig) TaskDir() string { return filepath.Join(p.DataDir, "tasks") }

// ConversationDir returns the conversation history directory.
func (p PathsConfig) ConversationDir() string { return filepath.Join(p.DataDir, "conversations") }

// TimelineDB returns the path of the sqlite timeline database.
func (p PathsConfig) TimelineDB() string { return filepath.Join(p.DataDir, "timeline.db") }

// ---------------------------------------------------------------------------
// Provider – reasoning subprocess contract
// ---------------------------------------------------------------------------

// ProviderConfig configures the reasoning CLI subprocess.
type ProviderConfig struct {
	// Command is the executable invoked per reasoning turn. The full prompt is
	// written to its stdin and stdout is read as the response.
	Command string `json:"command" envconfig:"COMMAND"`
	// Args are passed to the command on every invocation.
	Args []string `json:"args" envconfig:"ARGS"`
	// Timeout is the hard wall-clock limit for one invocation.
	Timeout time.Duration `json:"timeout" envconfig:"TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Engine – task execution loop
// ---------------------------------------------------------------------------

// EngineConfig groups task-engine loop settings.
type EngineConfig struct {
	// MaxTurns is the tool-turn budget per request.
	MaxTurns int `json:"maxTurns" envconfig:"MAX_TURNS"`
	// MaxRetries is the per-call reasoning retry attempt cap.
	MaxRetries int `json:"maxRetries" envconfig:"MAX_RETRIES"`
	// MaxTaskRetries caps the cumulative retry counter across a task's life.
	MaxTaskRetries int `json:"maxTaskRetries" envconfig:"MAX_TASK_RETRIES"`
	// RetryBackoffBase is the first retry delay; each further delay is
	// multiplied by RetryBackoffFactor (5s, 15s, 45s...).
	RetryBackoffBase   time.Duration `json:"retryBackoffBase" envconfig:"RETRY_BACKOFF_BASE"`
	RetryBackoffFactor int           `json:"retryBackoffFactor" envconfig:"RETRY_BACKOFF_FACTOR"`
	// ProgressInterval is the minimum gap between progress notifications.
	ProgressInterval time.Duration `json:"progressInterval" envconfig:"PROGRESS_INTERVAL"`
}

// ---------------------------------------------------------------------------
// Memory – conversation history
// ---------------------------------------------------------------------------

// MemoryConfig groups conversation memory settings.
type MemoryConfig struct {
	// MaxEntries is the hard storage cap before compression kicks in.
	MaxEntries int `json:"maxEntries" envconfig:"MAX_ENTRIES"`
	// KeepRecent is how many entries survive compression uncompressed.
	KeepRecent int `json:"keepRecent" envconfig:"KEEP_RECENT"`
	// PromptEntries is how many trailing entries are rendered into prompts.
	PromptEntries int `json:"promptEntries" envconfig:"PROMPT_ENTRIES"`
}

// ---------------------------------------------------------------------------
// Channels – messaging transports
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Token   string `json:"token" envconfig:"TOKEN"`
	// AdminID restricts the bot to a single chat id. Empty allows everyone.
	AdminID string `json:"adminId" envconfig:"ADMIN_ID"`
}

// SlackConfig configures the Slack channel (delivered via channelbridge).
type SlackConfig struct {
	Enabled bool `json:"enabled" envconfig:"ENABLED"`
	// OutboundURL is the channelbridge endpoint replies are posted to.
	OutboundURL string `json:"outboundUrl" envconfig:"OUTBOUND_URL"`
	// InboundToken authenticates inbound posts from the bridge.
	InboundToken string `json:"inboundToken" envconfig:"INBOUND_TOKEN"`
}

// ---------------------------------------------------------------------------
// Gateway – request handling boundary
// ---------------------------------------------------------------------------

// GatewayConfig contains gateway server settings.
type GatewayConfig struct {
	Host          string `json:"host" envconfig:"HOST"`
	Port          int    `json:"port" envconfig:"PORT"`
	DashboardPort int    `json:"dashboardPort" envconfig:"DASHBOARD_PORT"`
	// RateLimitMessages per RateLimitWindow per owner.
	RateLimitMessages int           `json:"rateLimitMessages" envconfig:"RATE_LIMIT_MESSAGES"`
	RateLimitWindow   time.Duration `json:"rateLimitWindow" envconfig:"RATE_LIMIT_WINDOW"`
	// MaxReplyLength is the transport chunking limit for outbound text.
	MaxReplyLength int `json:"maxReplyLength" envconfig:"MAX_REPLY_LENGTH"`
}

// ---------------------------------------------------------------------------
// Tools – tool-specific behaviour
// ---------------------------------------------------------------------------

// ToolsConfig contains tool-specific settings.
type ToolsConfig struct {
	// Timeout is the hard wall-clock limit for one tool execution.
	Timeout time.Duration `json:"timeout" envconfig:"TIMEOUT"`
	// MaxOutputLength is the truncation cap for tool output fed back to the model.
	MaxOutputLength int `json:"maxOutputLength" envconfig:"MAX_OUTPUT_LENGTH"`
	// SearchMaxResults caps web search hits.
	SearchMaxResults int `json:"searchMaxResults" envconfig:"SEARCH_MAX_RESULTS"`
	// PythonBinary runs PYTHON tool scripts.
	PythonBinary string `json:"pythonBinary" envconfig:"PYTHON_BINARY"`
}

// RestartExitCode is the exit code the outer supervisor restarts us on.
const RestartExitCode = 42

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".teleqwen")
	return &Config{
		Paths: PathsConfig{
			DataDir:     filepath.Join(root, "data"),
			Workspace:   filepath.Join(root, "workspace"),
			InstallRoot: root,
		},
		Provider: ProviderConfig{
			Command: "qwen",
			Args:    []string{"-y"},
			Timeout: 600 * time.Second,
		},
		Engine: EngineConfig{
			MaxTurns:           15,
			MaxRetries:         3,
			MaxTaskRetries:     12,
			RetryBackoffBase:   5 * time.Second,
			RetryBackoffFactor: 3,
			ProgressInterval:   60 * time.Second,
		},
		Memory: MemoryConfig{
			MaxEntries:    50,
			KeepRecent:    30,
			PromptEntries: 20,
		},
		Gateway: GatewayConfig{
			Host:              "127.0.0.1", // Secure default
			Port:              18890,
			DashboardPort:     18891,
			RateLimitMessages: 5,
			RateLimitWindow:   10 * time.Second,
			MaxReplyLength:    4096,
		},
		Tools: ToolsConfig{
			Timeout:          600 * time.Second,
			MaxOutputLength:  4000,
			SearchMaxResults: 8,
			PythonBinary:     "python3",
		},
	}
}

// EnsureDirs creates all required data directories. Safe to call repeatedly.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{
		c.Paths.DataDir,
		c.Paths.TaskDir(),
		c.Paths.ConversationDir(),
		c.Paths.Workspace,
	} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
