package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"groundcontrol/internal/domain"
)

// MoveTask places a task at newOrder within newStatus, shifting displaced
// siblings to keep both partitions dense. An out-of-range newOrder is not
// rejected: the target clamps to the end of the destination column.
func (e Engine) MoveTask(ctx context.Context, id, newStatus string, newOrder int, force bool, actor string) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	if !domain.ValidStatus(newStatus) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return err
	}
	oldStatus := t.Status
	statusChanged := newStatus != oldStatus
	completing := statusChanged && newStatus == domain.StatusDone
	if completing {
		if err := e.ensureCompletionAllowed(ctx, tx, t, force); err != nil {
			return err
		}
	}

	if statusChanged {
		if err := e.Repo.CloseTaskGap(ctx, tx, oldStatus, t.Position); err != nil {
			return err
		}
		end, err := e.Repo.NextTaskPosition(ctx, tx, newStatus)
		if err != nil {
			return err
		}
		target := newOrder
		if target < 0 || target > end {
			target = end
		}
		if target < end {
			if err := e.Repo.MakeTaskRoom(ctx, tx, newStatus, target); err != nil {
				return err
			}
		}
		t.Status = newStatus
		t.Position = target
	} else {
		end, err := e.Repo.NextTaskPosition(ctx, tx, oldStatus)
		if err != nil {
			return err
		}
		target := newOrder
		if target < 0 || target >= end {
			target = end - 1
		}
		if target != t.Position {
			if err := e.Repo.ShiftTasksWithin(ctx, tx, oldStatus, t.Position, target); err != nil {
				return err
			}
			t.Position = target
		}
	}

	detail := fmt.Sprintf("reordered in %s", oldStatus)
	if statusChanged {
		detail = fmt.Sprintf("status: %s → %s", oldStatus, newStatus)
	}
	if completing {
		if e.applyCompletion(&t, false) {
			detail += " (assignee auto-cleared)"
		}
	}
	if err := e.touch(ctx, tx, &t); err != nil {
		return err
	}
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionMoved, actor, detail); err != nil {
		return err
	}
	if completing {
		if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionCompleted, actor, ""); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ensureCompletionAllowed rejects entry into done while any blocker is
// incomplete, unless forced. Runs before any write so a rejection leaves
// no partial state.
func (e Engine) ensureCompletionAllowed(ctx context.Context, tx *sql.Tx, t domain.Task, force bool) error {
	if force {
		return nil
	}
	blockers, err := e.Repo.BlockerDetailsTx(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	var incomplete []string
	for _, b := range blockers {
		if !b.Done {
			incomplete = append(incomplete, b.Title)
		}
	}
	if len(incomplete) > 0 {
		return &BlockedTransitionError{TaskID: t.ID, Blockers: incomplete}
	}
	return nil
}

// applyCompletion mutates the task for entry into done: the assignee is
// reset to unassigned unless the same call set one explicitly, and a
// recurrence schedule advances its next due date. Reports whether the
// assignee was auto-cleared.
func (e Engine) applyCompletion(t *domain.Task, explicitAssignee bool) bool {
	cleared := false
	if !explicitAssignee && t.Assignee != domain.ActorUnassigned {
		t.Assignee = domain.ActorUnassigned
		cleared = true
	}
	if t.Recurring != nil {
		next := e.nextOccurrence(t)
		t.Recurring.NextDue = &next
	}
	return cleared
}

// nextOccurrence advances from the due date when one is set, otherwise
// from the completion time.
func (e Engine) nextOccurrence(t *domain.Task) string {
	base := e.now().UTC()
	if t.DueDate != nil {
		if parsed, err := time.Parse("2006-01-02", *t.DueDate); err == nil {
			base = parsed
		}
	}
	interval := t.Recurring.Interval
	if interval < 1 {
		interval = 1
	}
	switch t.Recurring.Frequency {
	case "daily":
		base = base.AddDate(0, 0, interval)
	case "weekly":
		base = base.AddDate(0, 0, 7*interval)
	case "monthly":
		base = base.AddDate(0, interval, 0)
	}
	return base.Format("2006-01-02")
}

// moveStatusAppendTx changes a task's status without a target index:
// the source gap closes and the task appends to the destination column.
// Used by update paths where the caller names a status but no position.
func (e Engine) moveStatusAppendTx(ctx context.Context, tx *sql.Tx, t *domain.Task, newStatus string) error {
	if err := e.Repo.CloseTaskGap(ctx, tx, t.Status, t.Position); err != nil {
		return err
	}
	pos, err := e.Repo.NextTaskPosition(ctx, tx, newStatus)
	if err != nil {
		return err
	}
	t.Status = newStatus
	t.Position = pos
	return nil
}
