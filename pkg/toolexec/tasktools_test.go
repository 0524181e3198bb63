package toolexec

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/pkg/task"
)

func setupTaskExecutor(t *testing.T) (*Executor, task.Store) {
	store, err := task.NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := New()
	require.NoError(t, e.RegisterAll(NewTaskTools(store)))

	return e, store
}

func execOK(t *testing.T, e *Executor, name string, args map[string]interface{}) Result {
	t.Helper()
	result := e.Execute(context.Background(), Scope{UserID: "u1"}, Call{ID: "c", Name: name, Args: args})
	require.True(t, result.OK, result.Error)
	return result
}

func TestNewTaskTools(t *testing.T) {
	t.Run("should register every domain tool and the completion signal", func(t *testing.T) {
		e, _ := setupTaskExecutor(t)

		for _, name := range []string{
			"create_task", "update_task", "set_status", "assign_task",
			"link_prerequisite", "unlink_prerequisite", "list_tasks",
			CompleteSessionTool,
		} {
			assert.NotNil(t, e.Get(name), name)
		}
	})
}

func TestCreateTaskTool(t *testing.T) {
	t.Run("should create a task and return it", func(t *testing.T) {
		e, _ := setupTaskExecutor(t)

		result := execOK(t, e, "create_task", map[string]interface{}{
			"title":    "write report",
			"urgency":  "high",
			"due_date": "2026-09-01",
		})

		var created task.Task
		require.NoError(t, json.Unmarshal([]byte(result.Output), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "write report", created.Title)
		assert.Equal(t, task.UrgencyHigh, created.Urgency)
		assert.Equal(t, task.StatusPending, created.Status)
		require.NotNil(t, created.DueDate)
		assert.Equal(t, "2026-09-01", created.DueDate.Format("2006-01-02"))
	})

	t.Run("should reject an unparseable due date", func(t *testing.T) {
		e, _ := setupTaskExecutor(t)

		result := e.Execute(context.Background(), Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: "create_task",
			Args: map[string]interface{}{"title": "x", "due_date": "next tuesday"},
		})

		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "invalid due_date")
		assert.False(t, result.Fatal)
	})

	t.Run("should reject an invalid recurrence", func(t *testing.T) {
		e, _ := setupTaskExecutor(t)

		result := e.Execute(context.Background(), Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: "create_task",
			Args: map[string]interface{}{"title": "x", "recurrence": "every full moon"},
		})

		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "invalid recurrence")
	})
}

func TestUpdateTaskTool(t *testing.T) {
	t.Run("should change only the provided fields", func(t *testing.T) {
		e, store := setupTaskExecutor(t)

		created, err := store.Create(context.Background(), "u1", task.Draft{
			Title:       "draft title",
			Description: "keep me",
		})
		require.NoError(t, err)

		result := execOK(t, e, "update_task", map[string]interface{}{
			"id":    created.ID,
			"title": "final title",
		})

		var updated task.Task
		require.NoError(t, json.Unmarshal([]byte(result.Output), &updated))
		assert.Equal(t, "final title", updated.Title)
		assert.Equal(t, "keep me", updated.Description)
	})
}

func TestSetStatusTool(t *testing.T) {
	t.Run("should move a task through its lifecycle", func(t *testing.T) {
		e, store := setupTaskExecutor(t)

		created, err := store.Create(context.Background(), "u1", task.Draft{Title: "t"})
		require.NoError(t, err)

		execOK(t, e, "set_status", map[string]interface{}{"id": created.ID, "status": "in_progress"})
		execOK(t, e, "set_status", map[string]interface{}{"id": created.ID, "status": "done"})

		got, err := store.Get(context.Background(), "u1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusDone, got.Status)
	})

	t.Run("should reject completing with incomplete prerequisites", func(t *testing.T) {
		e, store := setupTaskExecutor(t)
		ctx := context.Background()

		blocked, err := store.Create(ctx, "u1", task.Draft{Title: "blocked"})
		require.NoError(t, err)
		prereq, err := store.Create(ctx, "u1", task.Draft{Title: "prereq"})
		require.NoError(t, err)
		require.NoError(t, store.LinkPrerequisite(ctx, "u1", blocked.ID, prereq.ID))

		result := e.Execute(ctx, Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: "set_status",
			Args: map[string]interface{}{"id": blocked.ID, "status": "done"},
		})

		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "incomplete prerequisites")
		assert.False(t, result.Fatal)
	})
}

func TestAssignTaskTool(t *testing.T) {
	e, store := setupTaskExecutor(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", task.Draft{Title: "t"})
	require.NoError(t, err)

	t.Run("should assign to a user", func(t *testing.T) {
		execOK(t, e, "assign_task", map[string]interface{}{"id": created.ID, "user_id": "alice"})

		got, err := store.Get(ctx, "u1", created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.AssigneeUser)
	})

	t.Run("should reject assigning to both user and group", func(t *testing.T) {
		result := e.Execute(ctx, Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: "assign_task",
			Args: map[string]interface{}{"id": created.ID, "user_id": "alice", "group_id": "ops"},
		})

		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "both")
	})
}

func TestPrerequisiteTools(t *testing.T) {
	e, store := setupTaskExecutor(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "u1", task.Draft{Title: "a"})
	require.NoError(t, err)
	b, err := store.Create(ctx, "u1", task.Draft{Title: "b"})
	require.NoError(t, err)

	t.Run("should link and unlink", func(t *testing.T) {
		execOK(t, e, "link_prerequisite", map[string]interface{}{"task_id": a.ID, "prerequisite_id": b.ID})

		got, err := store.Get(ctx, "u1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID}, got.Prerequisites)

		execOK(t, e, "unlink_prerequisite", map[string]interface{}{"task_id": a.ID, "prerequisite_id": b.ID})

		got, err = store.Get(ctx, "u1", a.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Prerequisites)
	})

	t.Run("should reject a cycle", func(t *testing.T) {
		execOK(t, e, "link_prerequisite", map[string]interface{}{"task_id": a.ID, "prerequisite_id": b.ID})

		result := e.Execute(ctx, Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: "link_prerequisite",
			Args: map[string]interface{}{"task_id": b.ID, "prerequisite_id": a.ID},
		})

		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "cycle")
	})
}

func TestListTasksTool(t *testing.T) {
	t.Run("should report when nothing matches", func(t *testing.T) {
		e, _ := setupTaskExecutor(t)

		result := execOK(t, e, "list_tasks", map[string]interface{}{})
		assert.Equal(t, "no matching tasks", result.Output)
	})

	t.Run("should filter by status", func(t *testing.T) {
		e, store := setupTaskExecutor(t)
		ctx := context.Background()

		first, err := store.Create(ctx, "u1", task.Draft{Title: "pending one"})
		require.NoError(t, err)
		second, err := store.Create(ctx, "u1", task.Draft{Title: "done one"})
		require.NoError(t, err)
		require.NoError(t, store.SetStatus(ctx, "u1", second.ID, task.StatusDone))

		result := execOK(t, e, "list_tasks", map[string]interface{}{"status": "pending"})

		var tasks []task.Task
		require.NoError(t, json.Unmarshal([]byte(result.Output), &tasks))
		require.Len(t, tasks, 1)
		assert.Equal(t, first.ID, tasks[0].ID)
	})
}

func TestCompleteSessionTool(t *testing.T) {
	e, _ := setupTaskExecutor(t)

	t.Run("should succeed without a summary", func(t *testing.T) {
		result := execOK(t, e, CompleteSessionTool, map[string]interface{}{})
		assert.Equal(t, "session completed", result.Output)
	})

	t.Run("should echo the summary", func(t *testing.T) {
		result := execOK(t, e, CompleteSessionTool, map[string]interface{}{"summary": "all set"})
		assert.Contains(t, result.Output, "all set")
	})

	t.Run("should escalate fatally when the store is unreachable", func(t *testing.T) {
		e, store := setupTaskExecutor(t)
		require.NoError(t, store.Close())

		result := e.Execute(context.Background(), Scope{UserID: "u1"}, Call{
			ID:   "c",
			Name: CompleteSessionTool,
			Args: map[string]interface{}{},
		})

		assert.False(t, result.OK)
		assert.True(t, result.Fatal)
	})
}
