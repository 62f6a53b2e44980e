package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/notify"
	"groundcontrol/internal/repo"
)

// TaskUpdateOptions carries a partial field set. Nil pointers leave the
// field alone; empty strings clear optional fields.
type TaskUpdateOptions struct {
	Title        *string
	Description  *string
	Assignee     *string
	Priority     *string
	Status       *string
	Project      *string
	DueDate      *string
	TimeEstimate *int
	Recurring    *domain.Recurrence
	BlockedBy    *[]string
	Force        bool
	Actor        string
}

// UpdateTask applies a partial update in one transaction. A status change
// routes through the ordering engine (append to the destination column);
// entry into done is gated by blockers and triggers the completion side
// effects regardless of which entry point initiated it.
func (e Engine) UpdateTask(ctx context.Context, id string, opts TaskUpdateOptions) (domain.Task, error) {
	if opts.Actor == "" {
		opts.Actor = domain.ActorSystem
	}
	if err := validateUpdate(opts); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	original := t

	statusChanged := opts.Status != nil && *opts.Status != t.Status
	completing := statusChanged && *opts.Status == domain.StatusDone
	if completing {
		if err := e.ensureCompletionAllowed(ctx, tx, t, opts.Force); err != nil {
			return domain.Task{}, err
		}
	}

	var updatedClauses []string
	if opts.Title != nil && *opts.Title != t.Title {
		if *opts.Title == "" {
			return domain.Task{}, &ValidationError{Field: "title", Reason: "required"}
		}
		updatedClauses = append(updatedClauses, fmt.Sprintf("title: %s → %s", t.Title, *opts.Title))
		t.Title = *opts.Title
	}
	if opts.Description != nil && *opts.Description != t.Description {
		updatedClauses = append(updatedClauses, "description updated")
		t.Description = *opts.Description
	}
	if opts.Priority != nil && *opts.Priority != t.Priority {
		updatedClauses = append(updatedClauses, fmt.Sprintf("priority: %s → %s", t.Priority, *opts.Priority))
		t.Priority = *opts.Priority
	}
	if opts.Project != nil {
		old := ""
		if t.Project != nil {
			old = *t.Project
		}
		if *opts.Project != old {
			updatedClauses = append(updatedClauses, fmt.Sprintf("project: %s → %s", orNone(old), orNone(*opts.Project)))
			if *opts.Project == "" {
				t.Project = nil
			} else {
				t.Project = opts.Project
			}
		}
	}
	if opts.DueDate != nil {
		old := ""
		if t.DueDate != nil {
			old = *t.DueDate
		}
		if *opts.DueDate != old {
			updatedClauses = append(updatedClauses, fmt.Sprintf("due date: %s → %s", orNone(old), orNone(*opts.DueDate)))
			if *opts.DueDate == "" {
				t.DueDate = nil
			} else {
				t.DueDate = opts.DueDate
			}
		}
	}
	if opts.TimeEstimate != nil {
		t.TimeEstimate = opts.TimeEstimate
		updatedClauses = append(updatedClauses, fmt.Sprintf("estimate: %dm", *opts.TimeEstimate))
	}
	if opts.Recurring != nil {
		if opts.Recurring.Frequency == "" {
			t.Recurring = nil
			updatedClauses = append(updatedClauses, "recurrence cleared")
		} else {
			t.Recurring = opts.Recurring
			updatedClauses = append(updatedClauses, fmt.Sprintf("recurs every %d %s", opts.Recurring.Interval, opts.Recurring.Frequency))
		}
	}
	if opts.BlockedBy != nil {
		if err := e.Repo.ReplaceBlockers(ctx, tx, t.ID, *opts.BlockedBy); err != nil {
			return domain.Task{}, err
		}
		t.BlockedBy = *opts.BlockedBy
		updatedClauses = append(updatedClauses, "blockers updated")
	}

	assigneeChanged := opts.Assignee != nil && *opts.Assignee != t.Assignee
	if assigneeChanged {
		t.Assignee = *opts.Assignee
	}

	if statusChanged {
		if err := e.moveStatusAppendTx(ctx, tx, &t, *opts.Status); err != nil {
			return domain.Task{}, err
		}
	}

	movedDetail := ""
	if statusChanged {
		movedDetail = fmt.Sprintf("status: %s → %s", original.Status, t.Status)
	}
	if completing {
		if e.applyCompletion(&t, opts.Assignee != nil) {
			movedDetail += " (assignee auto-cleared)"
		}
	}

	if err := e.touch(ctx, tx, &t); err != nil {
		return domain.Task{}, err
	}
	if statusChanged {
		if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionMoved, opts.Actor, movedDetail); err != nil {
			return domain.Task{}, err
		}
	}
	if completing {
		if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionCompleted, opts.Actor, ""); err != nil {
			return domain.Task{}, err
		}
	}
	if assigneeChanged {
		if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionAssigned, opts.Actor,
			fmt.Sprintf("assigned to %s", *opts.Assignee)); err != nil {
			return domain.Task{}, err
		}
	}
	if len(updatedClauses) > 0 {
		if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, opts.Actor,
			strings.Join(updatedClauses, ", ")); err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}

	if assigneeChanged && *opts.Assignee == e.watched() && opts.Actor != e.watched() {
		e.schedule(notify.Message{
			TaskID:     t.ID,
			TaskTitle:  t.Title,
			Action:     notify.ActionAssignment,
			AssignedBy: opts.Actor,
		})
	}
	return t, nil
}

// BulkUpdateTasks applies one shared field set to many tasks, skipping
// missing ids, and returns the number updated. Completion side effects
// apply per task, same as a single update.
func (e Engine) BulkUpdateTasks(ctx context.Context, ids []string, opts TaskUpdateOptions) (int, error) {
	count := 0
	for _, id := range ids {
		if _, err := e.UpdateTask(ctx, id, opts); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func validateUpdate(opts TaskUpdateOptions) error {
	if err := validateActor(opts.Actor); err != nil {
		return err
	}
	if opts.Assignee != nil && !domain.ValidAssignee(*opts.Assignee) {
		return &ValidationError{Field: "assignee", Reason: fmt.Sprintf("unknown assignee %q", *opts.Assignee)}
	}
	if opts.Priority != nil && !domain.ValidPriority(*opts.Priority) {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", *opts.Priority)}
	}
	if opts.Status != nil && !domain.ValidStatus(*opts.Status) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *opts.Status)}
	}
	if opts.Recurring != nil && opts.Recurring.Frequency != "" {
		if err := validateRecurrence(opts.Recurring); err != nil {
			return err
		}
	}
	return nil
}

func orNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
