package repo

import (
	"context"
	"database/sql"

	"groundcontrol/internal/domain"
)

// RecentActivity returns the most recent records globally, newest first.
func (r Repo) RecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,task_title,action,actor,details,created_at FROM activity ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivity(rows)
}

// ActivityForTask returns all records for one task, newest first.
func (r Repo) ActivityForTask(ctx context.Context, taskID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,task_title,action,actor,details,created_at FROM activity WHERE task_id=? ORDER BY id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivity(rows)
}

func scanActivity(rows *sql.Rows) ([]domain.Activity, error) {
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var details sql.NullString
		if err := rows.Scan(&a.ID, &a.TaskID, &a.TaskTitle, &a.Action, &a.Actor, &details, &a.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid {
			a.Details = details.String
		}
		res = append(res, a)
	}
	return res, nil
}
