package task

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Status represents the lifecycle state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Urgency represents how pressing a task is
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Task is a single work item owned by a user scope
type Task struct {
	ID            string     `json:"id"`
	Owner         string     `json:"owner"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Urgency       Urgency    `json:"urgency"`
	Status        Status     `json:"status"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Recurrence    string     `json:"recurrence,omitempty"`
	AssigneeUser  string     `json:"assignee_user,omitempty"`
	AssigneeGroup string     `json:"assignee_group,omitempty"`
	Prerequisites []string   `json:"prerequisites,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Draft holds the fields accepted when creating a task
type Draft struct {
	Title       string
	Description string
	Urgency     Urgency
	DueDate     *time.Time
	Recurrence  string
}

// Update holds optional field changes; nil pointers leave fields untouched
type Update struct {
	Title       *string
	Description *string
	Urgency     *Urgency
	DueDate     *time.Time
	Recurrence  *string
}

// Filter narrows List results; zero values match everything
type Filter struct {
	Status        Status
	AssigneeUser  string
	AssigneeGroup string
	DueBefore     *time.Time
}

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusDone:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q (expected pending, in_progress or done)", s)
}

// ParseUrgency validates an urgency string
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(s) {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return Urgency(s), nil
	}
	return "", fmt.Errorf("unknown urgency %q (expected low, normal, high or urgent)", s)
}

// ValidateRecurrence checks a recurrence against the standard cron format
func ValidateRecurrence(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid recurrence %q: %w", expr, err)
	}
	return nil
}

// Validate checks a draft before it reaches the store
func (d Draft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if d.Urgency != "" {
		if _, err := ParseUrgency(string(d.Urgency)); err != nil {
			return err
		}
	}
	return ValidateRecurrence(d.Recurrence)
}
