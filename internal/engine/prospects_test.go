package engine_test

import (
	"testing"

	"groundcontrol/internal/engine"
	"groundcontrol/internal/repo"
)

func seedStage(t *testing.T, env testEnv, stage string, names ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(names))
	for _, name := range names {
		p, err := env.Engine.CreateProspect(env.Ctx, engine.ProspectCreateOptions{Name: name, Stage: stage})
		if err != nil {
			t.Fatalf("create prospect: %v", err)
		}
		ids[name] = p.ID
	}
	return ids
}

func namesInStage(t *testing.T, env testEnv, stage string) []string {
	t.Helper()
	items, err := env.Engine.Repo.ListProspects(env.Ctx, repo.ProspectFilters{Stage: stage})
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(items))
	for i, item := range items {
		if item.Position != i {
			t.Fatalf("position[%d] = %d in %s, want dense run", i, item.Position, stage)
		}
		names = append(names, item.Name)
	}
	return names
}

func TestCreateProspectDefaults(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProspect(env.Ctx, engine.ProspectCreateOptions{Name: "Acme Bakery"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Stage != "lead" || p.Urgency != "fresh" || p.Position != 0 {
		t.Fatalf("prospect = %+v", p)
	}

	if _, err := env.Engine.CreateProspect(env.Ctx, engine.ProspectCreateOptions{Name: "Bad", Stage: "won"}); err == nil {
		t.Fatal("expected unknown stage rejection")
	}
	if _, err := env.Engine.CreateProspect(env.Ctx, engine.ProspectCreateOptions{Name: ""}); err == nil {
		t.Fatal("expected empty name rejection")
	}
}

func TestMoveProspectAcrossStages(t *testing.T) {
	env := newTestEnv(t)
	leads := seedStage(t, env, "lead", "a", "b", "c")
	seedStage(t, env, "contacted", "x")

	order := 0
	if _, err := env.Engine.MoveProspect(env.Ctx, leads["b"], "contacted", &order); err != nil {
		t.Fatal(err)
	}
	gotLead := namesInStage(t, env, "lead")
	if len(gotLead) != 2 || gotLead[0] != "a" || gotLead[1] != "c" {
		t.Fatalf("lead = %v", gotLead)
	}
	gotContacted := namesInStage(t, env, "contacted")
	if len(gotContacted) != 2 || gotContacted[0] != "b" || gotContacted[1] != "x" {
		t.Fatalf("contacted = %v", gotContacted)
	}
}

func TestMoveProspectWithoutOrderAppends(t *testing.T) {
	env := newTestEnv(t)
	leads := seedStage(t, env, "lead", "a")
	seedStage(t, env, "outreach", "x", "y")

	p, err := env.Engine.MoveProspect(env.Ctx, leads["a"], "outreach", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Position != 2 {
		t.Fatalf("position = %d, want appended at 2", p.Position)
	}
}

func TestMoveProspectWithinStage(t *testing.T) {
	env := newTestEnv(t)
	leads := seedStage(t, env, "lead", "a", "b", "c")

	order := 0
	if _, err := env.Engine.MoveProspect(env.Ctx, leads["c"], "lead", &order); err != nil {
		t.Fatal(err)
	}
	got := namesInStage(t, env, "lead")
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestUpdateProspect(t *testing.T) {
	env := newTestEnv(t)
	leads := seedStage(t, env, "lead", "a")

	urgency := "cold"
	notes := "called twice, no answer"
	p, err := env.Engine.UpdateProspect(env.Ctx, leads["a"], engine.ProspectUpdateOptions{
		Urgency: &urgency,
		Notes:   &notes,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Urgency != "cold" || p.Notes != notes {
		t.Fatalf("prospect = %+v", p)
	}

	bad := "boiling"
	if _, err := env.Engine.UpdateProspect(env.Ctx, leads["a"], engine.ProspectUpdateOptions{Urgency: &bad}); err == nil {
		t.Fatal("expected unknown urgency rejection")
	}
}

func TestDeleteProspectClosesGap(t *testing.T) {
	env := newTestEnv(t)
	leads := seedStage(t, env, "lead", "a", "b", "c")

	if err := env.Engine.DeleteProspect(env.Ctx, leads["b"]); err != nil {
		t.Fatal(err)
	}
	got := namesInStage(t, env, "lead")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("lead = %v", got)
	}

	// Missing id is a no-op.
	if err := env.Engine.DeleteProspect(env.Ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestPipelineStats(t *testing.T) {
	env := newTestEnv(t)
	seedStage(t, env, "lead", "a", "b")
	seedStage(t, env, "closed_won", "c")

	stats, err := env.Engine.PipelineStats(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.ByStage["lead"] != 2 || stats.ByStage["closed_won"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
