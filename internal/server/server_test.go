package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"groundcontrol/internal/config"
	"groundcontrol/internal/db"
	"groundcontrol/internal/domain"
	"groundcontrol/internal/engine"
	"groundcontrol/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg)
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{AllowActorHeader: true},
		GitHub: GitHubConfig{Secret: "hook-secret"},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func asClifton() map[string]string {
	return map[string]string{"X-Actor": "clifton"}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", resp.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, data)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestUnknownActorHeaderRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"X-Actor": "mallory"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":    "Ship homepage",
		"assignee": "clifton",
	}, asClifton())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", resp.StatusCode, data)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != "todo" || task.Position != 0 {
		t.Fatalf("task = %+v", task)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/move", map[string]any{
		"status": "done",
		"order":  0,
	}, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move status = %d body = %s", resp.StatusCode, data)
	}
	var moved domain.Task
	if err := json.Unmarshal(data, &moved); err != nil {
		t.Fatal(err)
	}
	if moved.Status != "done" || moved.Assignee != "unassigned" {
		t.Fatalf("moved = %+v", moved)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/"+task.ID+"/activity", nil, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity status = %d", resp.StatusCode)
	}
	var acts []domain.Activity
	if err := json.Unmarshal(data, &acts); err != nil {
		t.Fatal(err)
	}
	if len(acts) != 3 || acts[0].Action != "completed" {
		t.Fatalf("activity = %+v", acts)
	}
}

func TestBlockedMoveReturnsConflict(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	dep, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Schema migration"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Release", BlockedBy: []string{dep.ID}})
	if err != nil {
		t.Fatal(err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/move", map[string]any{
		"status": "done",
		"order":  0,
	}, asClifton())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d body = %s", resp.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Blockers []string `json:"blockers"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, data)
	}
	if envelope.Error.Code != "blocked" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if len(envelope.Error.Details.Blockers) != 1 || envelope.Error.Details.Blockers[0] != "Schema migration" {
		t.Fatalf("blockers = %v", envelope.Error.Details.Blockers)
	}
}

func TestUpdateTaskOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Tune cache"})
	if err != nil {
		t.Fatal(err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/tasks/"+task.ID, map[string]any{
		"priority": "high",
	}, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d body = %s", resp.StatusCode, data)
	}
	var updated domain.Task
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.ID != task.ID || updated.Priority != "high" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestCommentAndSubtaskEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{
		Title:    "Landing page",
		Subtasks: []string{"draft copy"},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/comments", map[string]any{
		"content": "looks good @sage",
	}, asClifton())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment status = %d body = %s", resp.StatusCode, data)
	}
	var c domain.Comment
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatal(err)
	}
	if c.Author != "clifton" || len(c.Mentions) != 1 {
		t.Fatalf("comment = %+v", c)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodPost,
		srv.URL+"/v0/tasks/"+task.ID+"/subtasks/"+task.Subtasks[0].ID+"/toggle", nil, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d body = %s", resp.StatusCode, data)
	}
	var toggled domain.Task
	if err := json.Unmarshal(data, &toggled); err != nil {
		t.Fatal(err)
	}
	if len(toggled.Subtasks) != 1 || !toggled.Subtasks[0].Completed {
		t.Fatalf("toggled = %+v", toggled)
	}
}

func TestTimeTrackingOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	task, err := srv.Engine.CreateTask(ctx, engine.TaskCreateOptions{Title: "Audit queries"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Engine.StartTimer(ctx, task.ID, "clifton"); err != nil {
		t.Fatal(err)
	}

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/timer/stop",
		map[string]any{}, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d body = %s", resp.StatusCode, data)
	}
	var stopped domain.TimeEntry
	if err := json.Unmarshal(data, &stopped); err != nil {
		t.Fatal(err)
	}
	if stopped.Duration < 1 {
		t.Fatalf("entry = %+v", stopped)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/time", map[string]any{
		"minutes": 30,
	}, asClifton())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("manual status = %d body = %s", resp.StatusCode, data)
	}
	var manual domain.TimeEntry
	if err := json.Unmarshal(data, &manual); err != nil {
		t.Fatal(err)
	}
	if manual.Duration != 30 {
		t.Fatalf("entry = %+v", manual)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodDelete,
		srv.URL+"/v0/tasks/"+task.ID+"/time/"+manual.ID, nil, asClifton())
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d body = %s", resp.StatusCode, data)
	}
	got, err := srv.Engine.Repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalTimeSpent != stopped.Duration {
		t.Fatalf("total = %d", got.TotalTimeSpent)
	}
}

func TestValidationErrorsMapToBadRequest(t *testing.T) {
	srv := newTestServer(t)
	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":  "x",
		"status": "shipped",
	}, asClifton())
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body = %s", resp.StatusCode, data)
	}
}

func TestProspectEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/prospects", map[string]any{
		"name": "Acme Bakery",
	}, asClifton())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", resp.StatusCode, data)
	}
	var p domain.Prospect
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Stage != "lead" {
		t.Fatalf("prospect = %+v", p)
	}

	resp, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/prospects/"+p.ID+"/move", map[string]any{
		"stage": "contacted",
	}, asClifton())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move status = %d body = %s", resp.StatusCode, data)
	}
	var moved domain.Prospect
	if err := json.Unmarshal(data, &moved); err != nil {
		t.Fatal(err)
	}
	if moved.Stage != "contacted" || moved.Position != 0 {
		t.Fatalf("moved = %+v", moved)
	}
}
