package task

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a task id does not exist for the owner
	ErrNotFound = errors.New("task not found")

	// ErrUnavailable marks infrastructure failures (the store itself is
	// unreachable) as opposed to business-rule rejections
	ErrUnavailable = errors.New("task store unavailable")
)

// RejectionError carries a domain validation message verbatim so callers
// can feed it back to whoever issued the operation
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Reject builds a RejectionError from a format string
func Reject(format string, args ...interface{}) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a business-rule rejection
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Store is the task domain operation interface
type Store interface {
	Create(ctx context.Context, owner string, draft Draft) (*Task, error)
	Update(ctx context.Context, owner, id string, update Update) (*Task, error)
	SetStatus(ctx context.Context, owner, id string, status Status) error
	Assign(ctx context.Context, owner, id, userID, groupID string) error
	LinkPrerequisite(ctx context.Context, owner, blockedID, prereqID string) error
	UnlinkPrerequisite(ctx context.Context, owner, blockedID, prereqID string) error
	Get(ctx context.Context, owner, id string) (*Task, error)
	List(ctx context.Context, owner string, filter Filter) ([]Task, error)
	Close() error
}
