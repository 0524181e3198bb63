package config

import (
	"time"

	"github.com/taskpilot/taskpilot/internal/logger"
)

// Config is the main taskpilot configuration
type Config struct {
	// Backend selects and configures the inference backend
	Backend BackendConfig `json:"backend" mapstructure:"backend"`

	// Session bounds the conversation loop
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Storage locates the task database and transcript archive
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging configures the zerolog output
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// BackendConfig holds inference backend settings
type BackendConfig struct {
	// Kind is "remote" (hosted API, authenticated) or "local"
	// (OpenAI-compatible server on localhost, no credential)
	Kind    string `json:"kind" mapstructure:"kind"`
	Model   string `json:"model" mapstructure:"model"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// MaxTokens caps the model output per request
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`

	// SystemPrompt overrides the built-in instruction prompt
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
}

// SessionConfig bounds a conversation session
type SessionConfig struct {
	MaxRounds      int           `json:"max_rounds" mapstructure:"max_rounds"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	RetryAttempts  int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff   time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`
}

// StorageConfig locates on-disk state
type StorageConfig struct {
	DatabasePath  string `json:"database_path" mapstructure:"database_path"`
	TranscriptDir string `json:"transcript_dir" mapstructure:"transcript_dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Kind:      "local",
			MaxTokens: 4096,
		},
		Session: SessionConfig{
			MaxRounds:      8,
			RequestTimeout: 60 * time.Second,
			RetryAttempts:  3,
			RetryBackoff:   time.Second,
		},
		Logging: logger.DefaultConfig(),
	}
}
