package groundcontrolsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal GroundControl HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	Actor       string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model (partial).
type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	Assignee       string   `json:"assignee"`
	Priority       string   `json:"priority"`
	Position       int      `json:"position"`
	BlockedBy      []string `json:"blocked_by,omitempty"`
	TotalTimeSpent int      `json:"total_time_spent"`
}

// Prospect represents the API prospect model (partial).
type Prospect struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Stage    string `json:"stage"`
	Urgency  string `json:"urgency"`
	Position int    `json:"position"`
}

// Comment represents a task comment.
type Comment struct {
	ID       string   `json:"id"`
	Author   string   `json:"author"`
	Content  string   `json:"content"`
	Mentions []string `json:"mentions,omitempty"`
}

// Activity represents an audit record.
type Activity struct {
	ID        int64  `json:"id"`
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Action    string `json:"action"`
	Actor     string `json:"actor"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TimeEntry represents one logged session.
type TimeEntry struct {
	ID        string `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int    `json:"duration"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task in the default column.
func (c *Client) CreateTask(ctx context.Context, title string, fields map[string]any) (Task, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// ListTasks returns tasks in board order, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "v0/tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MoveTask moves a task to a status column and position.
func (c *Client) MoveTask(ctx context.Context, id, status string, order int, force bool) (Task, error) {
	body := map[string]any{"status": status, "order": order, "force": force}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/move", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateTask applies a partial update.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, fields, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// AddComment appends a comment to a task.
func (c *Client) AddComment(ctx context.Context, taskID, content string) (Comment, error) {
	var resp Comment
	endpoint := fmt.Sprintf("v0/tasks/%s/comments", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"content": content}, &resp)
	return resp, err
}

// StartTimer opens a time-tracking session.
func (c *Client) StartTimer(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/timer/start", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// StopTimer closes the session and returns the recorded entry.
func (c *Client) StopTimer(ctx context.Context, taskID string) (TimeEntry, error) {
	var resp TimeEntry
	endpoint := fmt.Sprintf("v0/tasks/%s/timer/stop", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// CreateProspect adds a pipeline prospect.
func (c *Client) CreateProspect(ctx context.Context, name, stage string) (Prospect, error) {
	body := map[string]any{"name": name}
	if stage != "" {
		body["stage"] = stage
	}
	var resp Prospect
	err := c.do(ctx, http.MethodPost, "v0/prospects", body, &resp)
	return resp, err
}

// MoveProspect relocates a prospect in the pipeline.
func (c *Client) MoveProspect(ctx context.Context, id, stage string, order *int) (Prospect, error) {
	body := map[string]any{"stage": stage}
	if order != nil {
		body["order"] = *order
	}
	var resp Prospect
	endpoint := fmt.Sprintf("v0/prospects/%s/move", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Activity returns recent audit records, newest first.
func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	endpoint := "v0/activity"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.Actor != "":
		req.Header.Set("X-Actor", c.Actor)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
