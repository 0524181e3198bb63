package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/taskpilot/taskpilot/internal/observability"
	"github.com/taskpilot/taskpilot/internal/tracing"
	"github.com/taskpilot/taskpilot/pkg/task"
)

// Scope is the resolved identity under which tools execute
type Scope struct {
	UserID string
}

// Param defines a parameter for a tool
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error)

// Definition describes a tool's metadata and handler
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	Handler     Handler `json:"-"`
}

// Call is a single validated tool invocation requested by the model
type Call struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Result is the outcome of one tool call. Every call produces exactly one
// result; domain errors are carried in Error rather than raised.
type Result struct {
	CallID string `json:"call_id"`
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	// Fatal marks infrastructure failures that must end the session.
	// It is never shown to the model.
	Fatal bool `json:"-"`
}

// Schema is the wire-level declaration of a tool sent to the backend
type Schema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Executor manages and executes tools
type Executor struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// New creates an empty Executor
func New() *Executor {
	return &Executor{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition
func (e *Executor) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tools[def.Name] = &def
	e.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// RegisterAll registers a set of definitions, failing on the first error
func (e *Executor) RegisterAll(defs []Definition) error {
	for _, def := range defs {
		if err := e.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a tool definition by name, or nil
func (e *Executor) Get(name string) *Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tools[name]
}

// Names returns all registered tool names
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// Schemas returns the declared tool schemas, sorted for a stable wire order
func (e *Executor) Schemas() []Schema {
	e.mu.RLock()
	defer e.mu.RUnlock()

	schemas := make([]Schema, 0, len(e.tools))
	for _, def := range e.tools {
		schemas = append(schemas, def.WireSchema())
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Name < schemas[j].Name
	})
	return schemas
}

// WireSchema converts a definition into its wire-level declaration
func (d *Definition) WireSchema() Schema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, p := range d.Params {
		properties[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	input := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		input["required"] = required
	}

	return Schema{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: input,
	}
}

// Execute runs one tool call and always returns a Result. Unknown names,
// argument violations and domain rejections become error outcomes the model
// can react to; only store unavailability is marked fatal.
func (e *Executor) Execute(ctx context.Context, scope Scope, call Call) Result {
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "taskpilot.toolexec", "tool.execute",
		attribute.String("tool", call.Name),
	)
	defer span.End()

	e.mu.RLock()
	def := e.tools[call.Name]
	schema := e.schemas[call.Name]
	e.mu.RUnlock()

	if def == nil {
		log.Warn().Str("tool", call.Name).Msg("Unknown tool requested")
		observability.RecordToolExecution(call.Name, time.Since(start), false)
		return Result{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}
	}

	if err := validateArgs(schema, call.Args); err != nil {
		log.Warn().Str("tool", call.Name).Err(err).Msg("Tool argument validation failed")
		observability.RecordToolExecution(call.Name, time.Since(start), false)
		return Result{
			CallID: call.ID,
			Error:  fmt.Sprintf("invalid arguments: %v", err),
		}
	}

	output, err := def.Handler(ctx, scope, call.Args)
	duration := time.Since(start)
	observability.RecordToolExecution(call.Name, duration, err == nil)

	if err != nil {
		fatal := errors.Is(err, task.ErrUnavailable)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().
			Str("tool", call.Name).
			Dur("duration", duration).
			Bool("fatal", fatal).
			Err(err).
			Msg("Tool execution failed")
		return Result{
			CallID: call.ID,
			Error:  err.Error(),
			Fatal:  fatal,
		}
	}

	log.Debug().Str("tool", call.Name).Dur("duration", duration).Msg("Tool executed")

	return Result{
		CallID: call.ID,
		OK:     true,
		Output: encodeOutput(output),
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, p := range def.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[p.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", p.Type, p.Name)
		}
	}

	return nil
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	wire := def.WireSchema()
	raw := wire.InputSchema
	raw["additionalProperties"] = false

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
}

func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := []string{}
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%v", msgs)
	}
	return nil
}

func encodeOutput(output interface{}) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

