package toolexec

import (
	"context"
	"fmt"
	"time"

	"github.com/taskpilot/taskpilot/pkg/task"
)

// CompleteSessionTool is the reserved completion signal. Its successful
// execution ends the conversation; it carries no domain effect.
const CompleteSessionTool = "complete_session"

// NewTaskTools binds the task store operations to tool definitions,
// one tool per domain operation plus the completion signal.
func NewTaskTools(store task.Store) []Definition {
	return []Definition{
		{
			Name:        "create_task",
			Description: "Create a new task. Returns the created task including its id.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "Short task title", Required: true},
				{Name: "description", Type: "string", Description: "Longer free-text description"},
				{Name: "urgency", Type: "string", Description: "One of: low, normal, high, urgent"},
				{Name: "due_date", Type: "string", Description: "Due date, RFC3339 or YYYY-MM-DD"},
				{Name: "recurrence", Type: "string", Description: "Standard cron expression for recurring tasks"},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				due, err := parseDueDate(args)
				if err != nil {
					return nil, err
				}
				return store.Create(ctx, scope.UserID, task.Draft{
					Title:       stringArg(args, "title"),
					Description: stringArg(args, "description"),
					Urgency:     task.Urgency(stringArg(args, "urgency")),
					DueDate:     due,
					Recurrence:  stringArg(args, "recurrence"),
				})
			},
		},
		{
			Name:        "update_task",
			Description: "Update fields of an existing task. Only provided fields change.",
			Params: []Param{
				{Name: "id", Type: "string", Description: "Task id", Required: true},
				{Name: "title", Type: "string", Description: "New title"},
				{Name: "description", Type: "string", Description: "New description"},
				{Name: "urgency", Type: "string", Description: "One of: low, normal, high, urgent"},
				{Name: "due_date", Type: "string", Description: "New due date, RFC3339 or YYYY-MM-DD"},
				{Name: "recurrence", Type: "string", Description: "New cron recurrence expression"},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				update := task.Update{}
				if v, ok := optionalString(args, "title"); ok {
					update.Title = &v
				}
				if v, ok := optionalString(args, "description"); ok {
					update.Description = &v
				}
				if v, ok := optionalString(args, "urgency"); ok {
					u := task.Urgency(v)
					update.Urgency = &u
				}
				if _, ok := optionalString(args, "due_date"); ok {
					due, err := parseDueDate(args)
					if err != nil {
						return nil, err
					}
					update.DueDate = due
				}
				if v, ok := optionalString(args, "recurrence"); ok {
					update.Recurrence = &v
				}
				return store.Update(ctx, scope.UserID, stringArg(args, "id"), update)
			},
		},
		{
			Name:        "set_status",
			Description: "Set a task's status to pending, in_progress or done. Completing requires all prerequisites done.",
			Params: []Param{
				{Name: "id", Type: "string", Description: "Task id", Required: true},
				{Name: "status", Type: "string", Description: "One of: pending, in_progress, done", Required: true},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				id := stringArg(args, "id")
				if err := store.SetStatus(ctx, scope.UserID, id, task.Status(stringArg(args, "status"))); err != nil {
					return nil, err
				}
				return fmt.Sprintf("status of %s set to %s", id, stringArg(args, "status")), nil
			},
		},
		{
			Name:        "assign_task",
			Description: "Assign a task to a user or a group (exactly one of the two).",
			Params: []Param{
				{Name: "id", Type: "string", Description: "Task id", Required: true},
				{Name: "user_id", Type: "string", Description: "User to assign to"},
				{Name: "group_id", Type: "string", Description: "Group to assign to"},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				id := stringArg(args, "id")
				if err := store.Assign(ctx, scope.UserID, id, stringArg(args, "user_id"), stringArg(args, "group_id")); err != nil {
					return nil, err
				}
				return fmt.Sprintf("task %s assigned", id), nil
			},
		},
		{
			Name:        "link_prerequisite",
			Description: "Record that one task cannot complete before another task is done.",
			Params: []Param{
				{Name: "task_id", Type: "string", Description: "The blocked task", Required: true},
				{Name: "prerequisite_id", Type: "string", Description: "The task that must finish first", Required: true},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				if err := store.LinkPrerequisite(ctx, scope.UserID, stringArg(args, "task_id"), stringArg(args, "prerequisite_id")); err != nil {
					return nil, err
				}
				return "prerequisite linked", nil
			},
		},
		{
			Name:        "unlink_prerequisite",
			Description: "Remove a prerequisite relation between two tasks.",
			Params: []Param{
				{Name: "task_id", Type: "string", Description: "The blocked task", Required: true},
				{Name: "prerequisite_id", Type: "string", Description: "The prerequisite to remove", Required: true},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				if err := store.UnlinkPrerequisite(ctx, scope.UserID, stringArg(args, "task_id"), stringArg(args, "prerequisite_id")); err != nil {
					return nil, err
				}
				return "prerequisite unlinked", nil
			},
		},
		{
			Name:        "list_tasks",
			Description: "List the user's tasks, optionally filtered by status or assignee.",
			Params: []Param{
				{Name: "status", Type: "string", Description: "Filter: pending, in_progress or done"},
				{Name: "assignee_user", Type: "string", Description: "Filter by assigned user"},
				{Name: "assignee_group", Type: "string", Description: "Filter by assigned group"},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				tasks, err := store.List(ctx, scope.UserID, task.Filter{
					Status:        task.Status(stringArg(args, "status")),
					AssigneeUser:  stringArg(args, "assignee_user"),
					AssigneeGroup: stringArg(args, "assignee_group"),
				})
				if err != nil {
					return nil, err
				}
				if len(tasks) == 0 {
					return "no matching tasks", nil
				}
				return tasks, nil
			},
		},
		{
			Name:        CompleteSessionTool,
			Description: "Call this exactly once when the user's request has been fully handled. Ends the conversation.",
			Params: []Param{
				{Name: "summary", Type: "string", Description: "One-line summary of what was done"},
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]interface{}) (interface{}, error) {
				// The signal carries no domain effect, but it must not
				// succeed while the store is unreachable.
				if _, err := store.List(ctx, scope.UserID, task.Filter{}); err != nil {
					return nil, err
				}
				summary := stringArg(args, "summary")
				if summary == "" {
					return "session completed", nil
				}
				return fmt.Sprintf("session completed: %s", summary), nil
			},
		},
	}
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func optionalString(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// parseDueDate accepts RFC3339 timestamps or bare dates
func parseDueDate(args map[string]interface{}) (*time.Time, error) {
	raw := stringArg(args, "due_date")
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, task.Reject("invalid due_date %q: expected RFC3339 or YYYY-MM-DD", raw)
}
