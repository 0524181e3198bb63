package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/config"
	"github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/tracing"
	"github.com/taskpilot/taskpilot/pkg/agent"
	"github.com/taskpilot/taskpilot/pkg/task"
	"github.com/taskpilot/taskpilot/pkg/toolexec"
	"github.com/taskpilot/taskpilot/pkg/transcript"
)

var (
	chatBackend   string
	chatMaxRounds int
	chatUser      string
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Run one conversational session against the task store",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatBackend, "backend", "", "inference backend (remote or local)")
	chatCmd.Flags().IntVar(&chatMaxRounds, "max-rounds", 0, "round budget for the session")
	chatCmd.Flags().StringVar(&chatUser, "user", "default", "user scope the session runs under")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if chatBackend != "" {
		cfg.Backend.Kind = chatBackend
	}
	if chatMaxRounds > 0 {
		cfg.Session.MaxRounds = chatMaxRounds
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer lg.Close()

	if err := tracing.InitOpenTelemetry("taskpilot"); err != nil {
		return err
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())

	store, err := task.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	exec := toolexec.New()
	if err := exec.RegisterAll(toolexec.NewTaskTools(store)); err != nil {
		return err
	}

	backend, err := agent.NewBackend(agent.BackendKind(cfg.Backend.Kind), agent.BackendConfig{
		Model:   cfg.Backend.Model,
		APIKey:  cfg.Backend.APIKey,
		BaseURL: cfg.Backend.BaseURL,
	})
	if err != nil {
		return err
	}

	driver, err := agent.NewDriver(agent.DriverConfig{
		Backend:      backend,
		Tools:        exec,
		Logger:       lg.GetZerolog(),
		Model:        cfg.Backend.Model,
		SystemPrompt: cfg.Backend.SystemPrompt,
		MaxTokens:    cfg.Backend.MaxTokens,
	})
	if err != nil {
		return err
	}

	ctx := tracing.NewRequestContext(cmd.Context())
	scope := toolexec.Scope{UserID: chatUser}

	result := driver.Run(ctx, scope, args[0], agent.RunConfig{
		MaxRounds:      cfg.Session.MaxRounds,
		RequestTimeout: cfg.Session.RequestTimeout,
		RetryAttempts:  cfg.Session.RetryAttempts,
		RetryBackoff:   cfg.Session.RetryBackoff,
	})

	if path := archiveTranscript(lg.GetZerolog(), cfg.Storage.TranscriptDir, result); path != "" {
		fmt.Printf("transcript: %s\n", path)
	}

	printResult(result)

	if result.State == agent.StateFailed {
		return fmt.Errorf("session failed: %s", result.Diagnostic)
	}
	return nil
}

// archiveTranscript persists the finished session and returns the transcript
// path, or empty after logging the failure. An unarchivable transcript never
// fails the command.
func archiveTranscript(logger zerolog.Logger, dir string, result agent.SessionResult) string {
	archiver, err := transcript.New(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to open transcript archive")
		return ""
	}

	path, err := archiver.Archive(result)
	if err != nil {
		logger.Warn().Err(err).Str("session_id", result.SessionID).Msg("Failed to archive transcript")
		return ""
	}
	return path
}

func printResult(result agent.SessionResult) {
	fmt.Printf("session %s finished: %s (%s), %d round(s)\n",
		result.SessionID, result.State, result.Reason, result.Rounds)

	for _, msg := range result.Conversation {
		switch msg.Role {
		case agent.RoleModel:
			if msg.Content != "" {
				fmt.Printf("  model: %s\n", msg.Content)
			}
			for _, call := range msg.ToolCalls {
				fmt.Printf("  tool call: %s\n", call.Name)
			}
		case agent.RoleTool:
			if msg.ToolResult != nil && !msg.ToolResult.OK {
				fmt.Printf("  tool error: %s\n", msg.ToolResult.Error)
			}
		}
	}
}
