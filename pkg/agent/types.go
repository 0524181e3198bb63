package agent

import (
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/pkg/toolexec"
)

// Role identifies who produced a conversation message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Message is one entry in a session conversation. Model messages may carry
// tool calls; tool messages carry exactly one tool result. Conversations are
// append-only and never reordered.
type Message struct {
	Role       Role             `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []toolexec.Call  `json:"tool_calls,omitempty"`
	ToolResult *toolexec.Result `json:"tool_result,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// TerminalReason explains why a session ended
type TerminalReason string

const (
	ReasonCompleted            TerminalReason = "completed"
	ReasonRoundBudgetExhausted TerminalReason = "round_budget_exhausted"
	ReasonFatalError           TerminalReason = "fatal_error"
)

// SessionResult is the immutable summary returned to the caller
type SessionResult struct {
	SessionID    string         `json:"session_id"`
	State        State          `json:"state"`
	Reason       TerminalReason `json:"reason"`
	Diagnostic   string         `json:"diagnostic,omitempty"`
	Conversation []Message      `json:"conversation"`
	Rounds       int            `json:"rounds"`
}

// BackendKind selects the inference backend variant, resolved once per session
type BackendKind string

const (
	BackendRemote BackendKind = "remote"
	BackendLocal  BackendKind = "local"
)

// RunConfig configures a single session run
type RunConfig struct {
	MaxRounds      int           `json:"max_rounds"`
	RequestTimeout time.Duration `json:"request_timeout"`
	RetryAttempts  int           `json:"retry_attempts"`
	RetryBackoff   time.Duration `json:"retry_backoff"`
}

const (
	defaultMaxRounds      = 8
	defaultRequestTimeout = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBackoff   = time.Second
)

func (c RunConfig) withDefaults() RunConfig {
	if c.MaxRounds <= 0 {
		c.MaxRounds = defaultMaxRounds
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// IsRetryableError reports whether a backend error is transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthError(err) {
		return false
	}

	msg := strings.ToLower(err.Error())

	for _, marker := range []string{
		"timeout", "timed out", "deadline exceeded",
		"connection reset", "connection refused", "broken pipe", "eof",
		"429", "rate limit",
		"500", "502", "503", "504", "overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// IsAuthError reports whether a backend error is an authentication or
// authorization failure. These are never retried.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	for _, marker := range []string{
		"401", "403", "unauthorized", "forbidden",
		"invalid api key", "authentication",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
