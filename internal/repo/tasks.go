package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"groundcontrol/internal/domain"
)

const taskColumns = `id,title,description,assignee,priority,status,project,due_date,time_estimate,position,recur_frequency,recur_interval,recur_next_due,active_timer_start,total_time_spent,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	var freq any
	var interval any
	var nextDue any
	if t.Recurring != nil {
		freq = t.Recurring.Frequency
		interval = t.Recurring.Interval
		nextDue = nullableStringPtr(t.Recurring.NextDue)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.Assignee, t.Priority, t.Status,
		nullableStringPtr(t.Project), nullableStringPtr(t.DueDate), nullableIntPtr(t.TimeEstimate), t.Position,
		freq, interval, nextDue, nullableStringPtr(t.ActiveTimerStart), t.TotalTimeSpent,
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	var freq any
	var interval any
	var nextDue any
	if t.Recurring != nil {
		freq = t.Recurring.Frequency
		interval = t.Recurring.Interval
		nextDue = nullableStringPtr(t.Recurring.NextDue)
	}
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, assignee=?, priority=?, status=?, project=?, due_date=?, time_estimate=?, position=?, recur_frequency=?, recur_interval=?, recur_next_due=?, active_timer_start=?, total_time_spent=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Assignee, t.Priority, t.Status,
		nullableStringPtr(t.Project), nullableStringPtr(t.DueDate), nullableIntPtr(t.TimeEstimate), t.Position,
		freq, interval, nextDue, nullableStringPtr(t.ActiveTimerStart), t.TotalTimeSpent,
		t.UpdatedAt, t.ID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(row taskScanner) (domain.Task, error) {
	var t domain.Task
	var description, project, dueDate, freq, nextDue, timerStart sql.NullString
	var estimate, interval sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &description, &t.Assignee, &t.Priority, &t.Status,
		&project, &dueDate, &estimate, &t.Position,
		&freq, &interval, &nextDue, &timerStart, &t.TotalTimeSpent,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if project.Valid {
		t.Project = &project.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if estimate.Valid {
		v := int(estimate.Int64)
		t.TimeEstimate = &v
	}
	if freq.Valid {
		rec := &domain.Recurrence{Frequency: freq.String, Interval: 1}
		if interval.Valid {
			rec.Interval = int(interval.Int64)
		}
		if nextDue.Valid {
			rec.NextDue = &nextDue.String
		}
		t.Recurring = rec
	}
	if timerStart.Valid {
		t.ActiveTimerStart = &timerStart.String
	}
	return t, nil
}

// GetTask loads the full task aggregate: blockers, subtasks, comments and
// time entries included.
func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTaskRow(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err != nil {
		return t, err
	}
	return r.loadTaskChildren(ctx, t)
}

// GetTaskTx is GetTask within an open transaction; the aggregate it
// returns reflects the transaction's own uncommitted writes.
func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTaskRow(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
	if err != nil {
		return t, err
	}
	blockers, err := r.ListBlockersTx(ctx, tx, t.ID)
	if err != nil {
		return t, err
	}
	t.BlockedBy = blockers
	return t, nil
}

func (r Repo) loadTaskChildren(ctx context.Context, t domain.Task) (domain.Task, error) {
	blockers, err := r.ListBlockers(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.BlockedBy = blockers
	subtasks, err := r.ListSubtasks(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.Subtasks = subtasks
	comments, err := r.ListComments(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.Comments = comments
	entries, err := r.ListTimeEntries(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.TimeEntries = entries
	return t, nil
}

type TaskFilters struct {
	Status   string
	Assignee string
	Project  string
	Priority string
}

// ListTasks returns tasks ordered by status then position; the per-status
// runs come back in board order.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Assignee != "" {
		clauses = append(clauses, "assignee=?")
		args = append(args, f.Assignee)
	}
	if f.Project != "" {
		clauses = append(clauses, "project=?")
		args = append(args, f.Project)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY status ASC, position ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) AddBlockers(ctx context.Context, tx *sql.Tx, taskID string, blockers []string) error {
	for _, b := range blockers {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO task_blockers(task_id, blocker_id) VALUES (?,?)`, taskID, b); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) ReplaceBlockers(ctx context.Context, tx *sql.Tx, taskID string, blockers []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_blockers WHERE task_id=?`, taskID); err != nil {
		return err
	}
	return r.AddBlockers(ctx, tx, taskID, blockers)
}

func (r Repo) ListBlockers(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT blocker_id FROM task_blockers WHERE task_id=?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (r Repo) ListBlockersTx(ctx context.Context, tx *sql.Tx, taskID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT blocker_id FROM task_blockers WHERE task_id=?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// BlockerDetails resolves the blocking set to titles and statuses. Blocker
// ids pointing at deleted tasks are skipped.
func (r Repo) BlockerDetails(ctx context.Context, taskID string) ([]domain.Blocker, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT t.id, t.title, t.status FROM task_blockers b JOIN tasks t ON t.id=b.blocker_id WHERE b.task_id=?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Blocker
	for rows.Next() {
		var b domain.Blocker
		if err := rows.Scan(&b.ID, &b.Title, &b.Status); err != nil {
			return nil, err
		}
		b.Done = b.Status == domain.StatusDone
		res = append(res, b)
	}
	return res, nil
}

func (r Repo) BlockerDetailsTx(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Blocker, error) {
	rows, err := tx.QueryContext(ctx, `SELECT t.id, t.title, t.status FROM task_blockers b JOIN tasks t ON t.id=b.blocker_id WHERE b.task_id=?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Blocker
	for rows.Next() {
		var b domain.Blocker
		if err := rows.Scan(&b.ID, &b.Title, &b.Status); err != nil {
			return nil, err
		}
		b.Done = b.Status == domain.StatusDone
		res = append(res, b)
	}
	return res, nil
}

func (r Repo) InsertSubtask(ctx context.Context, tx *sql.Tx, taskID string, st domain.Subtask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO subtasks(id,task_id,title,completed,seq)
VALUES (?,?,?,?, (SELECT COALESCE(MAX(seq)+1,0) FROM subtasks WHERE task_id=?))`,
		st.ID, taskID, st.Title, boolToInt(st.Completed), taskID)
	return err
}

func (r Repo) ListSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,completed FROM subtasks WHERE task_id=? ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subtask
	for rows.Next() {
		var st domain.Subtask
		var completed int
		if err := rows.Scan(&st.ID, &st.Title, &completed); err != nil {
			return nil, err
		}
		st.Completed = completed != 0
		res = append(res, st)
	}
	return res, nil
}

// ToggleSubtask flips the completed flag. Returns the number of rows
// touched; zero means the subtask id was not present.
func (r Repo) ToggleSubtask(ctx context.Context, tx *sql.Tx, taskID, subtaskID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE subtasks SET completed = 1-completed WHERE task_id=? AND id=?`, taskID, subtaskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, taskID string, c domain.Comment) error {
	var mentions any
	if len(c.Mentions) > 0 {
		b, err := json.Marshal(c.Mentions)
		if err != nil {
			return err
		}
		mentions = string(b)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO comments(id,task_id,author,content,mentions_json,seq,created_at)
VALUES (?,?,?,?,?, (SELECT COALESCE(MAX(seq)+1,0) FROM comments WHERE task_id=?), ?)`,
		c.ID, taskID, c.Author, c.Content, mentions, taskID, c.CreatedAt)
	return err
}

func (r Repo) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,author,content,mentions_json,created_at FROM comments WHERE task_id=? ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var mentions sql.NullString
		if err := rows.Scan(&c.ID, &c.Author, &c.Content, &mentions, &c.CreatedAt); err != nil {
			return nil, err
		}
		if mentions.Valid && mentions.String != "" {
			if err := json.Unmarshal([]byte(mentions.String), &c.Mentions); err != nil {
				return nil, err
			}
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) InsertTimeEntry(ctx context.Context, tx *sql.Tx, taskID string, e domain.TimeEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO time_entries(id,task_id,start_time,end_time,duration,notes) VALUES (?,?,?,?,?,?)`,
		e.ID, taskID, e.StartTime, e.EndTime, e.Duration, nullableStringPtr(e.Notes))
	return err
}

func (r Repo) GetTimeEntryTx(ctx context.Context, tx *sql.Tx, taskID, entryID string) (domain.TimeEntry, error) {
	var e domain.TimeEntry
	var notes sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT id,start_time,end_time,duration,notes FROM time_entries WHERE task_id=? AND id=?`, taskID, entryID).
		Scan(&e.ID, &e.StartTime, &e.EndTime, &e.Duration, &notes)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if notes.Valid {
		e.Notes = &notes.String
	}
	return e, err
}

func (r Repo) DeleteTimeEntry(ctx context.Context, tx *sql.Tx, taskID, entryID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM time_entries WHERE task_id=? AND id=?`, taskID, entryID)
	return err
}

func (r Repo) ListTimeEntries(ctx context.Context, taskID string) ([]domain.TimeEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,start_time,end_time,duration,notes FROM time_entries WHERE task_id=? ORDER BY start_time ASC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeEntry
	for rows.Next() {
		var e domain.TimeEntry
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.StartTime, &e.EndTime, &e.Duration, &notes); err != nil {
			return nil, err
		}
		if notes.Valid {
			e.Notes = &notes.String
		}
		res = append(res, e)
	}
	return res, nil
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
}

func (r Repo) CountTasksByAssignee(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, `SELECT assignee, count(*) FROM tasks GROUP BY assignee`)
}

func (r Repo) countGrouped(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		res[key] = count
	}
	return res, nil
}

// MatchTaskIDs returns ids of tasks whose id contains the fragment. Used
// only by the integration edge; the core always looks up exact ids.
func (r Repo) MatchTaskIDs(ctx context.Context, fragment string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM tasks WHERE instr(id, ?) > 0`, fragment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var res []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
