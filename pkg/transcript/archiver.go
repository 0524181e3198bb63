package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskpilot/taskpilot/pkg/agent"
)

// header is the first line of every transcript file
type header struct {
	SessionID  string    `json:"session_id"`
	State      string    `json:"state"`
	Reason     string    `json:"reason"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Rounds     int       `json:"rounds"`
	FinishedAt time.Time `json:"finished_at"`
}

// Archiver persists finished session conversations as JSONL files, one file
// per session, for post-hoc inspection.
type Archiver struct {
	dir string
}

// New creates an archiver writing under dir
func New(dir string) (*Archiver, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &Archiver{dir: dir}, nil
}

// Archive writes one finished session and returns the transcript path
func (a *Archiver) Archive(result agent.SessionResult) (string, error) {
	if result.SessionID == "" {
		return "", fmt.Errorf("session id cannot be empty")
	}

	path := filepath.Join(a.dir, result.SessionID+".jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	head := header{
		SessionID:  result.SessionID,
		State:      string(result.State),
		Reason:     string(result.Reason),
		Diagnostic: result.Diagnostic,
		Rounds:     result.Rounds,
		FinishedAt: time.Now().UTC(),
	}
	if err := writeLine(w, head); err != nil {
		return "", err
	}

	for _, msg := range result.Conversation {
		if err := writeLine(w, msg); err != nil {
			return "", err
		}
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush transcript: %w", err)
	}

	log.Debug().Str("session_id", result.SessionID).Str("path", path).Msg("Transcript archived")

	return path, nil
}

// List returns the session ids with an archived transcript
func (a *Archiver) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	return ids, nil
}

// Load reads an archived session back
func (a *Archiver) Load(sessionID string) (*agent.SessionResult, error) {
	if strings.ContainsAny(sessionID, "/\\") || strings.Contains(sessionID, "..") {
		return nil, fmt.Errorf("invalid session id")
	}

	f, err := os.Open(filepath.Join(a.dir, sessionID+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("transcript is empty")
	}

	var head header
	if err := json.Unmarshal(scanner.Bytes(), &head); err != nil {
		return nil, fmt.Errorf("failed to parse transcript header: %w", err)
	}

	result := &agent.SessionResult{
		SessionID:  head.SessionID,
		State:      agent.State(head.State),
		Reason:     agent.TerminalReason(head.Reason),
		Diagnostic: head.Diagnostic,
		Rounds:     head.Rounds,
	}

	for scanner.Scan() {
		var msg agent.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Warn().Str("session_id", sessionID).Err(err).Msg("Skipping malformed transcript line")
			continue
		}
		result.Conversation = append(result.Conversation, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return result, nil
}

func writeLine(w *bufio.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript line: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transcript line: %w", err)
	}
	return nil
}
