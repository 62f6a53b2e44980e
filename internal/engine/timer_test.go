package engine_test

import (
	"errors"
	"testing"
	"time"

	"groundcontrol/internal/engine"
)

func TestTimerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Fix flaky test"})

	started, err := env.Engine.StartTimer(env.Ctx, task.ID, "clifton")
	if err != nil {
		t.Fatal(err)
	}
	if started.ActiveTimerStart == nil {
		t.Fatal("timer not recorded")
	}

	// Only one open timer per task.
	_, err = env.Engine.StartTimer(env.Ctx, task.ID, "clifton")
	var running *engine.TimerAlreadyRunningError
	if !errors.As(err, &running) {
		t.Fatalf("err = %v, want TimerAlreadyRunningError", err)
	}

	env.Clock.Advance(25*time.Minute + 20*time.Second)
	entry, err := env.Engine.StopTimer(env.Ctx, task.ID, "clifton", nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Duration != 25 {
		t.Fatalf("duration = %d, want 25 (rounded)", entry.Duration)
	}

	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveTimerStart != nil {
		t.Fatal("timer still open after stop")
	}
	if got.TotalTimeSpent != 25 {
		t.Fatalf("total = %d, want 25", got.TotalTimeSpent)
	}
	if len(got.TimeEntries) != 1 {
		t.Fatalf("entries = %+v", got.TimeEntries)
	}

	// Stopping again has nothing to stop.
	_, err = env.Engine.StopTimer(env.Ctx, task.ID, "clifton", nil)
	var none *engine.NoTimerRunningError
	if !errors.As(err, &none) {
		t.Fatalf("err = %v, want NoTimerRunningError", err)
	}
}

func TestStopTimerMinimumOneMinute(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Quick check"})
	if _, err := env.Engine.StartTimer(env.Ctx, task.ID, "clifton"); err != nil {
		t.Fatal(err)
	}
	env.Clock.Advance(10 * time.Second)
	entry, err := env.Engine.StopTimer(env.Ctx, task.ID, "clifton", nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Duration != 1 {
		t.Fatalf("duration = %d, want floor of 1", entry.Duration)
	}
}

func TestManualTimeEntry(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Research"})

	entry, err := env.Engine.AddManualTime(env.Ctx, task.ID, "clifton", 45, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Duration != 45 {
		t.Fatalf("duration = %d", entry.Duration)
	}

	// Manual durations are taken as given, but must be positive.
	if _, err := env.Engine.AddManualTime(env.Ctx, task.ID, "clifton", 0, "", nil); err == nil {
		t.Fatal("expected rejection of non-positive duration")
	}
	if _, err := env.Engine.AddManualTime(env.Ctx, task.ID, "clifton", -5, "", nil); err == nil {
		t.Fatal("expected rejection of negative duration")
	}

	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalTimeSpent != 45 {
		t.Fatalf("total = %d, want 45", got.TotalTimeSpent)
	}
}

func TestDeleteTimeEntry(t *testing.T) {
	env := newTestEnv(t)
	task := mustCreate(t, env, engine.TaskCreateOptions{Title: "Ledger"})

	entry, err := env.Engine.AddManualTime(env.Ctx, task.ID, "clifton", 30, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTimeEntry(env.Ctx, task.ID, entry.ID, "clifton"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalTimeSpent != 0 {
		t.Fatalf("total = %d, want 0", got.TotalTimeSpent)
	}
	if len(got.TimeEntries) != 0 {
		t.Fatalf("entries = %+v", got.TimeEntries)
	}

	err = env.Engine.DeleteTimeEntry(env.Ctx, task.ID, entry.ID, "clifton")
	var missing *engine.EntryNotFoundError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want EntryNotFoundError", err)
	}
}
