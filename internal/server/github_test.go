package server

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"groundcontrol/internal/engine"
)

func TestExtractTaskRefs(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"[TASK-abc123] fix login", []string{"abc123"}},
		{"[task-ABC] case insensitive", []string{"ABC"}},
		{"closes #deadbeef01", []string{"deadbeef01"}},
		{"#short is too short", nil},
		{"task: 4f2a fix the thing", []string{"4f2a"}},
		{"task 4f2a also matches", []string{"4f2a"}},
		{"[TASK-a] and #bbbbbbbb and task: c", []string{"a", "bbbbbbbb", "c"}},
		{"duplicate [TASK-x] [TASK-x]", []string{"x"}},
		{"nothing to see", nil},
	}
	for _, tc := range cases {
		got := extractTaskRefs(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("extractTaskRefs(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestGitHubWebhookRequiresSecret(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/webhooks/github", map[string]any{}, map[string]string{
		"X-GitHub-Event": "push",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without secret", resp.StatusCode)
	}
}

func TestGitHubPushAppendsSystemComments(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Parser rewrite"})
	if err != nil {
		t.Fatal(err)
	}
	short := task.ID[:10]

	payload := map[string]any{
		"ref": "refs/heads/main",
		"commits": []map[string]any{
			{
				"id":      "deadbeefcafe0123",
				"message": "rework tokenizer #" + short,
				"author":  map[string]any{"name": "Clifton"},
			},
			{
				"id":      "feedface0456",
				"message": "unrelated cleanup",
				"author":  map[string]any{"name": "Clifton"},
			},
		},
	}
	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/webhooks/github", payload, map[string]string{
		"X-GitHub-Event":   "push",
		"X-Webhook-Secret": "hook-secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, data)
	}
	var result map[string]int
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result["handled"] != 1 {
		t.Fatalf("handled = %d, want 1", result["handled"])
	}

	got, err := srv.Engine.Repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Author != "system" {
		t.Fatalf("comments = %+v", got.Comments)
	}
}

func TestGitHubPRMergeMovesToReview(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Login flow"})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{
		"action": "closed",
		"pull_request": map[string]any{
			"number": 12,
			"title":  "[TASK-" + task.ID[:8] + "] login flow",
			"merged": true,
			"head":   map[string]any{"ref": "feature/login"},
		},
	}
	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/webhooks/github", payload, map[string]string{
		"X-GitHub-Event":   "pull_request",
		"X-Webhook-Secret": "hook-secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.StatusCode, data)
	}

	got, err := srv.Engine.Repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "review" {
		t.Fatalf("status = %q, want review", got.Status)
	}
	if len(got.Comments) != 1 {
		t.Fatalf("comments = %+v", got.Comments)
	}
}

func TestGitHubUnmergedPRCloseIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Abandoned work"})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{
		"action": "closed",
		"pull_request": map[string]any{
			"number": 13,
			"title":  "[TASK-" + task.ID[:8] + "] abandoned",
			"merged": false,
		},
	}
	resp, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/webhooks/github", payload, map[string]string{
		"X-GitHub-Event":   "pull_request",
		"X-Webhook-Secret": "hook-secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got, err := srv.Engine.Repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "todo" || len(got.Comments) != 0 {
		t.Fatalf("task mutated by unmerged close: %+v", got)
	}
}
