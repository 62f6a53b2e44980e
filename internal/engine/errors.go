package engine

import (
	"fmt"
	"strings"
)

// BlockedTransitionError rejects a completion while blockers are open.
// Blockers carries the titles of the incomplete tasks so callers can name
// them; retrying with Force bypasses the check.
type BlockedTransitionError struct {
	TaskID   string
	Blockers []string
}

func (e *BlockedTransitionError) Error() string {
	return fmt.Sprintf("task %s is blocked by incomplete tasks: %s", e.TaskID, strings.Join(e.Blockers, ", "))
}

type TimerAlreadyRunningError struct {
	TaskID    string
	StartedAt string
}

func (e *TimerAlreadyRunningError) Error() string {
	return fmt.Sprintf("task %s already has a running timer", e.TaskID)
}

type NoTimerRunningError struct {
	TaskID string
}

func (e *NoTimerRunningError) Error() string {
	return fmt.Sprintf("task %s has no running timer", e.TaskID)
}

type EntryNotFoundError struct {
	TaskID  string
	EntryID string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("time entry %s not found on task %s", e.EntryID, e.TaskID)
}

// ValidationError rejects malformed input before any store write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
