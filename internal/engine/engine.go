package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"groundcontrol/internal/activity"
	"groundcontrol/internal/config"
	"groundcontrol/internal/domain"
	"groundcontrol/internal/notify"
	"groundcontrol/internal/repo"
)

// Engine is the task state machine. Every mutation runs as one SQL
// transaction covering the entity write, the ordering shifts, and the
// activity append; notifications are scheduled only after commit.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Notify   notify.Queue
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Notify:   notify.Nop{},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// watched returns the remote collaborator handle whose mentions and
// assignments schedule notifications.
func (e Engine) watched() string {
	if e.Config != nil && e.Config.Actors.Watched != "" {
		return e.Config.Actors.Watched
	}
	return domain.ActorSage
}

func (e Engine) schedule(m notify.Message) {
	if e.Notify != nil {
		e.Notify.Schedule(m)
	}
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title        string
	Description  string
	Assignee     string
	Priority     string
	Status       string
	Project      string
	DueDate      string
	TimeEstimate *int
	Subtasks     []string
	Comments     []domain.Comment
	Recurring    *domain.Recurrence
	BlockedBy    []string
	Actor        string
}

// CreateTask appends a task to the end of its status column and logs a
// "created" activity. New tasks never land at an arbitrary position.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, &ValidationError{Field: "title", Reason: "required"}
	}
	if opts.Assignee == "" {
		opts.Assignee = domain.ActorUnassigned
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if opts.Status == "" {
		opts.Status = domain.StatusTodo
	}
	if opts.Actor == "" {
		opts.Actor = domain.ActorSystem
	}
	if err := validateActor(opts.Actor); err != nil {
		return domain.Task{}, err
	}
	if err := validateTaskEnums(opts.Assignee, opts.Priority, opts.Status); err != nil {
		return domain.Task{}, err
	}
	if opts.Recurring != nil {
		if err := validateRecurrence(opts.Recurring); err != nil {
			return domain.Task{}, err
		}
	}
	now := e.nowString()
	t := domain.Task{
		ID:           uuid.New().String(),
		Title:        opts.Title,
		Description:  opts.Description,
		Assignee:     opts.Assignee,
		Priority:     opts.Priority,
		Status:       opts.Status,
		TimeEstimate: opts.TimeEstimate,
		Recurring:    opts.Recurring,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if opts.Project != "" {
		t.Project = &opts.Project
	}
	if opts.DueDate != "" {
		t.DueDate = &opts.DueDate
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	pos, err := e.Repo.NextTaskPosition(ctx, tx, t.Status)
	if err != nil {
		return domain.Task{}, err
	}
	t.Position = pos
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if len(opts.BlockedBy) > 0 {
		if err := e.Repo.AddBlockers(ctx, tx, t.ID, opts.BlockedBy); err != nil {
			return domain.Task{}, err
		}
		t.BlockedBy = opts.BlockedBy
	}
	for _, title := range opts.Subtasks {
		st := domain.Subtask{ID: uuid.New().String(), Title: title}
		if err := e.Repo.InsertSubtask(ctx, tx, t.ID, st); err != nil {
			return domain.Task{}, err
		}
		t.Subtasks = append(t.Subtasks, st)
	}
	for _, c := range opts.Comments {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.CreatedAt == "" {
			c.CreatedAt = now
		}
		c.Mentions = ExtractMentions(c.Content)
		if err := e.Repo.InsertComment(ctx, tx, t.ID, c); err != nil {
			return domain.Task{}, err
		}
		t.Comments = append(t.Comments, c)
	}
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionCreated, opts.Actor, ""); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// CreateTaskFromTemplate stamps a task out of a stored template. Explicit
// option values win over template defaults.
func (e Engine) CreateTaskFromTemplate(ctx context.Context, templateID string, opts TaskCreateOptions) (domain.Task, error) {
	tpl, err := e.Repo.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Title == "" {
		opts.Title = tpl.Name
	}
	if opts.Description == "" {
		opts.Description = tpl.Description
	}
	if opts.Priority == "" {
		opts.Priority = tpl.Priority
	}
	if opts.Project == "" && tpl.Project != nil {
		opts.Project = *tpl.Project
	}
	if opts.TimeEstimate == nil {
		opts.TimeEstimate = tpl.TimeEstimate
	}
	if len(opts.Subtasks) == 0 {
		for _, st := range tpl.Subtasks {
			opts.Subtasks = append(opts.Subtasks, st.Title)
		}
	}
	return e.CreateTask(ctx, opts)
}

// DeleteTask logs a "deleted" activity before removing the row and closes
// the position gap in the task's column. Missing ids are a no-op.
func (e Engine) DeleteTask(ctx context.Context, id, actor string) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionDeleted, actor, ""); err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := e.Repo.CloseTaskGap(ctx, tx, t.Status, t.Position); err != nil {
		return err
	}
	return tx.Commit()
}

// BulkDeleteTasks deletes each listed task, skipping missing ids, and
// returns the number removed.
func (e Engine) BulkDeleteTasks(ctx context.Context, ids []string, actor string) (int, error) {
	count := 0
	for _, id := range ids {
		if _, err := e.Repo.GetTask(ctx, id); errors.Is(err, repo.ErrNotFound) {
			continue
		} else if err != nil {
			return count, err
		}
		if err := e.DeleteTask(ctx, id, actor); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ToggleSubtask flips one subtask's completed flag. An absent subtask id
// silently no-ops; an absent task id is NotFound.
func (e Engine) ToggleSubtask(ctx context.Context, taskID, subtaskID, actor string) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	n, err := e.Repo.ToggleSubtask(ctx, tx, taskID, subtaskID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if err := e.touch(ctx, tx, &t); err != nil {
		return err
	}
	if err := e.Activity.Append(ctx, tx, t.ID, t.Title, domain.ActionUpdated, actor, "subtask toggled"); err != nil {
		return err
	}
	return tx.Commit()
}

// touch persists the task with a fresh updated_at.
func (e Engine) touch(ctx context.Context, tx *sql.Tx, t *domain.Task) error {
	t.UpdatedAt = e.nowString()
	return e.Repo.UpdateTask(ctx, tx, *t)
}

func (e Engine) CreateProject(ctx context.Context, name, color string) (domain.Project, error) {
	if name == "" {
		return domain.Project{}, &ValidationError{Field: "name", Reason: "required"}
	}
	p := domain.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     color,
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) CreateTemplate(ctx context.Context, tpl domain.Template) (domain.Template, error) {
	if tpl.Name == "" {
		return domain.Template{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if tpl.Priority != "" && !domain.ValidPriority(tpl.Priority) {
		return domain.Template{}, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", tpl.Priority)}
	}
	tpl.ID = uuid.New().String()
	for i := range tpl.Subtasks {
		if tpl.Subtasks[i].ID == "" {
			tpl.Subtasks[i].ID = uuid.New().String()
		}
	}
	tpl.CreatedAt = e.nowString()
	if err := e.Repo.InsertTemplate(ctx, tpl); err != nil {
		return domain.Template{}, err
	}
	return tpl, nil
}

// BlockerStatus reports whether the task can currently complete and why not.
func (e Engine) BlockerStatus(ctx context.Context, taskID string) (domain.BlockerStatus, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return domain.BlockerStatus{}, err
	}
	blockers, err := e.Repo.BlockerDetails(ctx, taskID)
	if err != nil {
		return domain.BlockerStatus{}, err
	}
	status := domain.BlockerStatus{Blockers: blockers}
	for _, b := range blockers {
		if !b.Done {
			status.HasIncompleteBlockers = true
		}
	}
	return status, nil
}

// Stats aggregates board counts.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByAssignee map[string]int `json:"by_assignee"`
}

func (e Engine) TaskStats(ctx context.Context) (Stats, error) {
	byStatus, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	byAssignee, err := e.Repo.CountTasksByAssignee(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ByStatus: byStatus, ByAssignee: byAssignee}
	for _, c := range byStatus {
		s.Total += c
	}
	return s, nil
}

func validateActor(actor string) error {
	if !domain.ValidAuthor(actor) {
		return &ValidationError{Field: "actor", Reason: fmt.Sprintf("unknown actor %q", actor)}
	}
	return nil
}

func validateTaskEnums(assignee, priority, status string) error {
	if !domain.ValidAssignee(assignee) {
		return &ValidationError{Field: "assignee", Reason: fmt.Sprintf("unknown assignee %q", assignee)}
	}
	if !domain.ValidPriority(priority) {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", priority)}
	}
	if !domain.ValidStatus(status) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	return nil
}

func validateRecurrence(r *domain.Recurrence) error {
	switch r.Frequency {
	case "daily", "weekly", "monthly":
	default:
		return &ValidationError{Field: "recurring.frequency", Reason: fmt.Sprintf("unknown frequency %q", r.Frequency)}
	}
	if r.Interval < 1 {
		return &ValidationError{Field: "recurring.interval", Reason: "must be positive"}
	}
	return nil
}
