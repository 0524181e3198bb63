package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/taskpilot/taskpilot/pkg/toolexec"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicBackend is the remote variant: the hosted Anthropic Messages API
// reached over authenticated HTTPS.
type AnthropicBackend struct {
	client anthropic.Client
}

// NewAnthropicBackend creates the remote backend with a bearer credential
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the backend variant name
func (b *AnthropicBackend) Name() string {
	return "remote"
}

// Send issues one inference request
func (b *AnthropicBackend) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := []anthropic.MessageParam{}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))

		case RoleTool:
			if msg.ToolResult == nil {
				continue
			}
			content := msg.ToolResult.Output
			isError := !msg.ToolResult.OK
			if isError {
				content = msg.ToolResult.Error
			}
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolResult.CallID, content, isError),
			))

		case RoleModel:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Args, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		}
	}

	model := req.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	if len(req.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, t := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema["properties"],
				},
			}
			if required, ok := t.InputSchema["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	response, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	return parseAnthropicResponse(response)
}

// parseAnthropicResponse extracts text and tool calls, salvaging whatever is
// usable. The call fails only when nothing in the body can be interpreted.
func parseAnthropicResponse(response *anthropic.Message) (*ChatResponse, error) {
	content := ""
	toolCalls := []toolexec.Call{}
	var parseErr error

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				parseErr = fmt.Errorf("%w: tool input for %s: %v", ErrMalformedResponse, b.Name, err)
				continue
			}
			toolCalls = append(toolCalls, toolexec.Call{
				ID:   b.ID,
				Name: b.Name,
				Args: args,
			})
		}
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
