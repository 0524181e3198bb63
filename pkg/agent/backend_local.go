package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/taskpilot/taskpilot/pkg/toolexec"
)

const (
	// DefaultLocalBaseURL targets an OpenAI-compatible inference server
	// (llama.cpp, ollama) assumed already running and health-checked by
	// an external process.
	DefaultLocalBaseURL = "http://127.0.0.1:8080/v1"

	defaultLocalModel = "local"
)

// LocalBackend is the local variant: an OpenAI-compatible chat-completions
// server on localhost, reached over unauthenticated HTTP.
type LocalBackend struct {
	client openai.Client
}

// NewLocalBackend creates the local backend. No credential is sent.
func NewLocalBackend(baseURL string) *LocalBackend {
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	return &LocalBackend{
		client: openai.NewClient(option.WithBaseURL(baseURL)),
	}
}

// Name returns the backend variant name
func (b *LocalBackend) Name() string {
	return "local"
}

// Send issues one inference request
func (b *LocalBackend) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))

		case RoleModel:
			if len(msg.ToolCalls) > 0 {
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					argsJSON, err := json.Marshal(tc.Args)
					if err != nil {
						return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: string(argsJSON),
						},
					})
				}
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}

		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			content := msg.ToolResult.Output
			if !msg.ToolResult.OK {
				content = msg.ToolResult.Error
			}
			messages = append(messages, openai.ToolMessage(msg.ToolResult.CallID, content))
		}
	}

	model := req.Model
	if model == "" {
		model = defaultLocalModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, t := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.InputSchema),
				},
			})
		}
		params.Tools = tools
	}

	response, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return parseLocalChoice(response.Choices[0])
}

// parseLocalChoice extracts text and tool calls, salvaging whatever is
// usable from a partially malformed choice.
func parseLocalChoice(choice openai.ChatCompletionChoice) (*ChatResponse, error) {
	content := choice.Message.Content

	toolCalls := []toolexec.Call{}
	var parseErr error

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			parseErr = fmt.Errorf("%w: tool arguments for %s: %v", ErrMalformedResponse, tc.Function.Name, err)
			continue
		}
		toolCalls = append(toolCalls, toolexec.Call{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	if content == "" && len(toolCalls) == 0 {
		if parseErr != nil {
			return nil, parseErr
		}
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	return &ChatResponse{
		Content:   content,
		ToolCalls: toolCalls,
	}, nil
}
