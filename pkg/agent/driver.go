package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskpilot/taskpilot/internal/observability"
	"github.com/taskpilot/taskpilot/internal/tracing"
	"github.com/taskpilot/taskpilot/pkg/toolexec"
)

const defaultSystemPrompt = "You are a task management assistant. " +
	"Use the provided tools to manage the user's tasks. " +
	"When the user's request has been fully handled, call complete_session exactly once."

// Driver orchestrates the round loop of one conversational session: it sends
// the conversation to the backend, feeds the model message through the state
// machine, dispatches tool calls in emission order and decides continue/stop.
type Driver struct {
	backend      Backend
	tools        *toolexec.Executor
	logger       zerolog.Logger
	model        string
	systemPrompt string
	maxTokens    int
}

// DriverConfig holds driver construction parameters
type DriverConfig struct {
	Backend      Backend
	Tools        *toolexec.Executor
	Logger       zerolog.Logger
	Model        string
	SystemPrompt string
	MaxTokens    int
}

// NewDriver creates a session driver
func NewDriver(cfg DriverConfig) (*Driver, error) {
	observability.EnsureRegistered()

	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool executor is required")
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &Driver{
		backend:      cfg.Backend,
		tools:        cfg.Tools,
		logger:       cfg.Logger,
		model:        cfg.Model,
		systemPrompt: systemPrompt,
		maxTokens:    cfg.MaxTokens,
	}, nil
}

// Run executes one session to a terminal state. It never returns an error:
// every failure mode resolves into the SessionResult's terminal reason. The
// session exists only for the duration of this call.
func (d *Driver) Run(ctx context.Context, scope toolexec.Scope, seedPrompt string, cfg RunConfig) SessionResult {
	cfg = cfg.withDefaults()
	sessionID := uuid.New().String()
	start := time.Now()

	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx = tracing.WithScope(ctx, scope.UserID)
	ctx, span := tracing.StartSpan(
		ctx,
		"taskpilot.agent",
		"session.run",
		attribute.String("session_id", sessionID),
		attribute.String("backend", d.backend.Name()),
		attribute.Int("max_rounds", cfg.MaxRounds),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, d.logger).With().
		Str("backend", d.backend.Name()).
		Logger()

	machine := NewMachine(cfg.MaxRounds)
	if err := machine.Start(); err != nil {
		// Unreachable with a fresh machine; kept as a guard.
		machine.Fail()
		return d.finish(span, logger, sessionID, machine, nil, err.Error(), start)
	}

	conversation := []Message{{
		Role:      RoleUser,
		Content:   seedPrompt,
		Timestamp: time.Now().UTC(),
	}}
	schemas := d.tools.Schemas()

	logger.Info().Int("max_rounds", cfg.MaxRounds).Msg("Session started")

	var diagnostic string

	for !machine.State().Terminal() {
		roundCtx, roundSpan := tracing.StartSpan(ctx, "taskpilot.agent", "session.round",
			attribute.Int("round", machine.Rounds()+1),
		)

		response, err := d.sendWithRetry(roundCtx, conversation, schemas, cfg)
		if err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				// A response with nothing salvageable costs its round and
				// nothing more; a stream of them ends in exhausted.
				logger.Warn().Err(err).Int("round", machine.Rounds()+1).Msg("Discarding malformed model output")
				roundSpan.SetStatus(codes.Error, err.Error())
				roundSpan.End()
				machine.EndRound()
				continue
			}
			diagnostic = err.Error()
			machine.Fail()
			logger.Error().Err(err).Int("round", machine.Rounds()+1).Msg("Backend request failed")
			roundSpan.SetStatus(codes.Error, diagnostic)
			roundSpan.End()
			break
		}

		conversation = append(conversation, Message{
			Role:      RoleModel,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
			Timestamp: time.Now().UTC(),
		})

		if err := machine.ObserveModel(len(response.ToolCalls) > 0); err != nil {
			diagnostic = err.Error()
			machine.Fail()
			roundSpan.End()
			break
		}

		if len(response.ToolCalls) > 0 {
			// Tool calls execute sequentially in emission order: later
			// calls may read state written by earlier ones. Every call
			// is answered before the next backend request.
			completed := false
			fatal := false

			for _, call := range response.ToolCalls {
				result := d.tools.Execute(roundCtx, scope, call)
				conversation = append(conversation, Message{
					Role:       RoleTool,
					Content:    resultContent(result),
					ToolResult: &result,
					Timestamp:  time.Now().UTC(),
				})

				if result.Fatal {
					fatal = true
					diagnostic = result.Error
				}
				if call.Name == toolexec.CompleteSessionTool && result.OK {
					completed = true
				}
			}

			if fatal {
				machine.Fail()
				logger.Error().Str("diagnostic", diagnostic).Msg("Tool escalated fatal error")
				roundSpan.SetStatus(codes.Error, diagnostic)
				roundSpan.End()
				break
			}
			if err := machine.FinishTools(completed); err != nil {
				diagnostic = err.Error()
				machine.Fail()
				roundSpan.End()
				break
			}
		} else {
			logger.Debug().Int("round", machine.Rounds()+1).Msg("Model produced text only")
		}

		machine.EndRound()
		roundSpan.SetAttributes(attribute.Int("tool_calls", len(response.ToolCalls)))
		roundSpan.End()
	}

	return d.finish(span, logger, sessionID, machine, conversation, diagnostic, start)
}

// sendWithRetry issues one backend request, retrying transient failures with
// exponential backoff. The retry budget is independent of the round budget.
func (d *Driver) sendWithRetry(ctx context.Context, conversation []Message, schemas []toolexec.Schema, cfg RunConfig) (*ChatResponse, error) {
	req := ChatRequest{
		Model:        d.model,
		SystemPrompt: d.systemPrompt,
		Messages:     conversation,
		Tools:        schemas,
		MaxTokens:    d.maxTokens,
	}

	var lastErr error

	for attempt := 0; attempt < cfg.RetryAttempts; attempt++ {
		attemptStart := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		response, err := d.backend.Send(attemptCtx, req)
		cancel()

		observability.RecordBackendRequest(d.backend.Name(), time.Since(attemptStart), err == nil)

		if err == nil {
			return response, nil
		}
		lastErr = err

		if IsAuthError(err) {
			return nil, fmt.Errorf("backend authentication failed: %w", err)
		}
		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == cfg.RetryAttempts-1 {
			break
		}

		delay := cfg.RetryBackoff * (1 << attempt)
		d.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying backend request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("backend unreachable after %d attempts: %w", cfg.RetryAttempts, lastErr)
}

func (d *Driver) finish(span trace.Span, logger zerolog.Logger, sessionID string, machine *Machine, conversation []Message, diagnostic string, start time.Time) SessionResult {
	state := machine.State()
	reason := reasonFor(state)

	result := SessionResult{
		SessionID:    sessionID,
		State:        state,
		Reason:       reason,
		Diagnostic:   diagnostic,
		Conversation: conversation,
		Rounds:       machine.Rounds(),
	}

	observability.RecordSessionRun(d.backend.Name(), string(reason), time.Since(start))
	observability.RecordSessionRounds(d.backend.Name(), machine.Rounds())

	if state == StateFailed {
		span.SetStatus(codes.Error, diagnostic)
	}
	span.SetAttributes(
		attribute.String("state", string(state)),
		attribute.Int("rounds", machine.Rounds()),
	)

	logger.Info().
		Str("state", string(state)).
		Str("reason", string(reason)).
		Int("rounds", machine.Rounds()).
		Dur("duration", time.Since(start)).
		Msg("Session finished")

	return result
}

func reasonFor(state State) TerminalReason {
	switch state {
	case StateCompleted:
		return ReasonCompleted
	case StateExhausted:
		return ReasonRoundBudgetExhausted
	default:
		return ReasonFatalError
	}
}

// resultContent is what the model sees for a tool result
func resultContent(result toolexec.Result) string {
	if result.OK {
		return result.Output
	}
	return result.Error
}
