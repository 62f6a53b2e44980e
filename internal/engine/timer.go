package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"groundcontrol/internal/domain"
	"groundcontrol/internal/repo"
)

// StartTimer opens a time-tracking session on the task. A task carries
// at most one open timer.
func (e Engine) StartTimer(ctx context.Context, taskID, actor string) (domain.Task, error) {
	if err := validateActor(actor); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.ActiveTimerStart != nil {
		return domain.Task{}, &TimerAlreadyRunningError{TaskID: t.ID, StartedAt: *t.ActiveTimerStart}
	}
	start := e.nowString()
	t.ActiveTimerStart = &start
	if err := e.touch(ctx, tx, &t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, actor, "timer started"); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// StopTimer closes the open session and appends a time entry. Duration
// is the elapsed wall time rounded to whole minutes, never below one.
func (e Engine) StopTimer(ctx context.Context, taskID, actor string, notes *string) (domain.TimeEntry, error) {
	if err := validateActor(actor); err != nil {
		return domain.TimeEntry{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if t.ActiveTimerStart == nil {
		return domain.TimeEntry{}, &NoTimerRunningError{TaskID: t.ID}
	}
	start, err := time.Parse(time.RFC3339, *t.ActiveTimerStart)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("parse timer start: %w", err)
	}
	end := e.now().UTC()
	minutes := int(math.Round(end.Sub(start).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	entry := domain.TimeEntry{
		ID:        uuid.New().String(),
		StartTime: *t.ActiveTimerStart,
		EndTime:   end.Format(time.RFC3339),
		Duration:  minutes,
		Notes:     notes,
	}
	if err := e.Repo.InsertTimeEntry(ctx, tx, t.ID, entry); err != nil {
		return domain.TimeEntry{}, err
	}
	t.ActiveTimerStart = nil
	t.TotalTimeSpent += minutes
	if err := e.touch(ctx, tx, &t); err != nil {
		return domain.TimeEntry{}, err
	}
	detail := fmt.Sprintf("timer stopped, logged %dm", minutes)
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, actor, detail); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

// AddManualTime records an entry without a running timer. The duration
// is taken as given, no rounding, but must be positive. When startTime
// is empty the entry is backdated by the duration from now.
func (e Engine) AddManualTime(ctx context.Context, taskID, actor string, minutes int, startTime string, notes *string) (domain.TimeEntry, error) {
	if err := validateActor(actor); err != nil {
		return domain.TimeEntry{}, err
	}
	if minutes <= 0 {
		return domain.TimeEntry{}, &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	end := e.now().UTC()
	start := end.Add(-time.Duration(minutes) * time.Minute)
	if startTime != "" {
		parsed, err := time.Parse(time.RFC3339, startTime)
		if err != nil {
			return domain.TimeEntry{}, &ValidationError{Field: "start_time", Reason: "must be RFC 3339"}
		}
		start = parsed.UTC()
		end = start.Add(time.Duration(minutes) * time.Minute)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	entry := domain.TimeEntry{
		ID:        uuid.New().String(),
		StartTime: start.Format(time.RFC3339),
		EndTime:   end.Format(time.RFC3339),
		Duration:  minutes,
		Notes:     notes,
	}
	if err := e.Repo.InsertTimeEntry(ctx, tx, t.ID, entry); err != nil {
		return domain.TimeEntry{}, err
	}
	t.TotalTimeSpent += minutes
	if err := e.touch(ctx, tx, &t); err != nil {
		return domain.TimeEntry{}, err
	}
	detail := fmt.Sprintf("logged %dm manually", minutes)
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, actor, detail); err != nil {
		return domain.TimeEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

// DeleteTimeEntry removes an entry and deducts its duration from the
// running total, which never drops below zero.
func (e Engine) DeleteTimeEntry(ctx context.Context, taskID, entryID, actor string) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return err
	}
	entry, err := e.Repo.GetTimeEntryTx(ctx, tx, t.ID, entryID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return &EntryNotFoundError{TaskID: t.ID, EntryID: entryID}
		}
		return err
	}
	if err := e.Repo.DeleteTimeEntry(ctx, tx, t.ID, entryID); err != nil {
		return err
	}
	t.TotalTimeSpent -= entry.Duration
	if t.TotalTimeSpent < 0 {
		t.TotalTimeSpent = 0
	}
	if err := e.touch(ctx, tx, &t); err != nil {
		return err
	}
	detail := fmt.Sprintf("removed %dm time entry", entry.Duration)
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, actor, detail); err != nil {
		return err
	}
	return tx.Commit()
}
