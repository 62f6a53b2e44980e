package activity

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends audit records inside the mutation's transaction. Records
// are never updated or deleted; Append is the only write path.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, taskID, taskTitle, action, actor, details string) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO activity(task_id,task_title,action,actor,details,created_at) VALUES (?,?,?,?,?,?)`,
		taskID, taskTitle, action, actor, nullable(details), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
