package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	owner          TEXT NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	urgency        TEXT NOT NULL DEFAULT 'normal',
	status         TEXT NOT NULL DEFAULT 'pending',
	due_date       TIMESTAMP,
	recurrence     TEXT NOT NULL DEFAULT '',
	assignee_user  TEXT NOT NULL DEFAULT '',
	assignee_group TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner);
CREATE TABLE IF NOT EXISTS task_prereqs (
	blocked_id TEXT NOT NULL,
	prereq_id  TEXT NOT NULL,
	PRIMARY KEY (blocked_id, prereq_id)
);
`

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the task database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to apply schema: %v", ErrUnavailable, err)
	}

	log.Info().Str("path", path).Msg("Task store opened")

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new task and returns it
func (s *SQLiteStore) Create(ctx context.Context, owner string, draft Draft) (*Task, error) {
	if err := draft.Validate(); err != nil {
		return nil, Reject("%s", err.Error())
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	urgency := draft.Urgency
	if urgency == "" {
		urgency = UrgencyNormal
	}

	now := time.Now().UTC()
	t := &Task{
		ID:          id,
		Owner:       owner,
		Title:       draft.Title,
		Description: draft.Description,
		Urgency:     urgency,
		Status:      StatusPending,
		DueDate:     draft.DueDate,
		Recurrence:  draft.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, owner, title, description, urgency, status, due_date, recurrence, assignee_user, assignee_group, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
		t.ID, t.Owner, t.Title, t.Description, string(t.Urgency), string(t.Status), nullableTime(t.DueDate), t.Recurrence, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Debug().Str("task_id", t.ID).Str("owner", owner).Msg("Task created")

	return t, nil
}

// Update applies field changes to an existing task
func (s *SQLiteStore) Update(ctx context.Context, owner, id string, update Update) (*Task, error) {
	t, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		if *update.Title == "" {
			return nil, Reject("title cannot be empty")
		}
		t.Title = *update.Title
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Urgency != nil {
		if _, err := ParseUrgency(string(*update.Urgency)); err != nil {
			return nil, Reject("%s", err.Error())
		}
		t.Urgency = *update.Urgency
	}
	if update.DueDate != nil {
		t.DueDate = update.DueDate
	}
	if update.Recurrence != nil {
		if err := ValidateRecurrence(*update.Recurrence); err != nil {
			return nil, Reject("%s", err.Error())
		}
		t.Recurrence = *update.Recurrence
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, urgency = ?, due_date = ?, recurrence = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		t.Title, t.Description, string(t.Urgency), nullableTime(t.DueDate), t.Recurrence, t.UpdatedAt, id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return t, nil
}

// SetStatus moves a task to a new status. Completing a task requires every
// prerequisite to already be done.
func (s *SQLiteStore) SetStatus(ctx context.Context, owner, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return Reject("%s", err.Error())
	}

	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}

	if status == StatusDone {
		incomplete, err := s.incompletePrereqs(ctx, id)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return Reject("cannot complete: has incomplete prerequisites")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		string(status), time.Now().UTC(), id, owner,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	log.Debug().Str("task_id", id).Str("status", string(status)).Msg("Task status updated")

	return nil
}

// Assign sets the assignee. A task is assigned to a user or a group, never both.
func (s *SQLiteStore) Assign(ctx context.Context, owner, id, userID, groupID string) error {
	if userID != "" && groupID != "" {
		return Reject("cannot assign to both a user and a group")
	}
	if userID == "" && groupID == "" {
		return Reject("either user_id or group_id must be set")
	}

	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET assignee_user = ?, assignee_group = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		userID, groupID, time.Now().UTC(), id, owner,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// LinkPrerequisite records that blockedID cannot complete before prereqID.
// Self-links and cycles are rejected.
func (s *SQLiteStore) LinkPrerequisite(ctx context.Context, owner, blockedID, prereqID string) error {
	if blockedID == prereqID {
		return Reject("a task cannot be its own prerequisite")
	}

	if _, err := s.Get(ctx, owner, blockedID); err != nil {
		return err
	}
	if _, err := s.Get(ctx, owner, prereqID); err != nil {
		return err
	}

	// Walking from the prerequisite: if the blocked task is reachable, the
	// new edge would close a cycle.
	reachable, err := s.reachable(ctx, prereqID, blockedID)
	if err != nil {
		return err
	}
	if reachable {
		return Reject("prerequisite link would create a cycle")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO task_prereqs (blocked_id, prereq_id) VALUES (?, ?)`,
		blockedID, prereqID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// UnlinkPrerequisite removes a prerequisite relation
func (s *SQLiteStore) UnlinkPrerequisite(ctx context.Context, owner, blockedID, prereqID string) error {
	if _, err := s.Get(ctx, owner, blockedID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM task_prereqs WHERE blocked_id = ? AND prereq_id = ?`,
		blockedID, prereqID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		return Reject("no such prerequisite link")
	}

	return nil
}

// Get returns a single task by id, scoped to its owner
func (s *SQLiteStore) Get(ctx context.Context, owner, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, title, description, urgency, status, due_date, recurrence, assignee_user, assignee_group, created_at, updated_at
		FROM tasks WHERE id = ? AND owner = ?`, id, owner,
	)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	prereqs, err := s.prereqIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Prerequisites = prereqs

	return t, nil
}

// List returns the owner's tasks matching the filter, newest first
func (s *SQLiteStore) List(ctx context.Context, owner string, filter Filter) ([]Task, error) {
	query := `
		SELECT id, owner, title, description, urgency, status, due_date, recurrence, assignee_user, assignee_group, created_at, updated_at
		FROM tasks WHERE owner = ?`
	args := []interface{}{owner}

	if filter.Status != "" {
		if _, err := ParseStatus(string(filter.Status)); err != nil {
			return nil, Reject("%s", err.Error())
		}
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.AssigneeUser != "" {
		query += ` AND assignee_user = ?`
		args = append(args, filter.AssigneeUser)
	}
	if filter.AssigneeGroup != "" {
		query += ` AND assignee_group = ?`
		args = append(args, filter.AssigneeGroup)
	}
	if filter.DueBefore != nil {
		query += ` AND due_date IS NOT NULL AND due_date < ?`
		args = append(args, *filter.DueBefore)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return tasks, nil
}

// incompletePrereqs counts prerequisites of id that are not done yet
func (s *SQLiteStore) incompletePrereqs(ctx context.Context, id string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_prereqs p
		JOIN tasks t ON t.id = p.prereq_id
		WHERE p.blocked_id = ? AND t.status != ?`, id, string(StatusDone),
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// prereqIDs returns the direct prerequisite ids of a task
func (s *SQLiteStore) prereqIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prereq_id FROM task_prereqs WHERE blocked_id = ? ORDER BY prereq_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ids = append(ids, pid)
	}
	return ids, rows.Err()
}

// reachable walks the prerequisite graph from fromID looking for targetID
func (s *SQLiteStore) reachable(ctx context.Context, fromID, targetID string) (bool, error) {
	visited := map[string]bool{}
	queue := []string{fromID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == targetID {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		prereqs, err := s.prereqIDs(ctx, current)
		if err != nil {
			return false, err
		}
		queue = append(queue, prereqs...)
	}

	return false, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var urgency, status string
	var due sql.NullTime

	err := row.Scan(
		&t.ID, &t.Owner, &t.Title, &t.Description, &urgency, &status,
		&due, &t.Recurrence, &t.AssigneeUser, &t.AssigneeGroup,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Urgency = Urgency(urgency)
	t.Status = Status(status)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}

	return &t, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
