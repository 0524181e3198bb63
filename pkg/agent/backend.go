package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskpilot/taskpilot/pkg/toolexec"
)

// ErrMalformedResponse marks a model response with no salvageable content:
// an empty body, or tool input that does not parse. It fails the round that
// produced it, never the session.
var ErrMalformedResponse = errors.New("malformed model response")

// Backend is the inference request/response contract shared by the two
// variants: conversation plus declared tool schema in, next message out.
type Backend interface {
	// Send issues one inference request for the given conversation
	Send(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name returns the backend variant name
	Name() string
}

// ChatRequest carries the ordered conversation and the fixed tool schema
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []toolexec.Schema
	MaxTokens    int
}

// ChatResponse is the model's next message: free text, tool calls, or both
type ChatResponse struct {
	Content   string
	ToolCalls []toolexec.Call
}

// BackendConfig holds the connection settings for a backend variant
type BackendConfig struct {
	Model   string
	APIKey  string // remote only
	BaseURL string // local only
}

// NewBackend builds the configured variant. The set is closed: remote
// (authenticated hosted API) or local (unauthenticated local server).
func NewBackend(kind BackendKind, cfg BackendConfig) (Backend, error) {
	switch kind {
	case BackendRemote:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("remote backend requires an API key")
		}
		return NewAnthropicBackend(cfg.APIKey), nil
	case BackendLocal:
		return NewLocalBackend(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", kind)
	}
}
