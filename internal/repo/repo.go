package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"groundcontrol/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,color,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, nullable(p.Color), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var color sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,color,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &color, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if color.Valid {
		p.Color = color.String
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,color,created_at FROM projects ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var color sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &color, &p.CreatedAt); err != nil {
			return nil, err
		}
		if color.Valid {
			p.Color = color.String
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) InsertTemplate(ctx context.Context, t domain.Template) error {
	subtasks, err := marshalSubtasks(t.Subtasks)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO templates(id,name,description,priority,project,time_estimate,subtasks_json,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, nullable(t.Description), nullable(t.Priority), nullableStringPtr(t.Project), nullableIntPtr(t.TimeEstimate), subtasks, t.CreatedAt)
	return err
}

func scanTemplate(row *sql.Row) (domain.Template, error) {
	var t domain.Template
	var description, priority, project, subtasksJSON sql.NullString
	var estimate sql.NullInt64
	err := row.Scan(&t.ID, &t.Name, &description, &priority, &project, &estimate, &subtasksJSON, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if priority.Valid {
		t.Priority = priority.String
	}
	if project.Valid {
		t.Project = &project.String
	}
	if estimate.Valid {
		v := int(estimate.Int64)
		t.TimeEstimate = &v
	}
	if subtasksJSON.Valid && subtasksJSON.String != "" {
		if err := json.Unmarshal([]byte(subtasksJSON.String), &t.Subtasks); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	return scanTemplate(r.DB.QueryRowContext(ctx, `SELECT id,name,description,priority,project,time_estimate,subtasks_json,created_at FROM templates WHERE id=?`, id))
}

func (r Repo) GetTemplateByName(ctx context.Context, name string) (domain.Template, error) {
	return scanTemplate(r.DB.QueryRowContext(ctx, `SELECT id,name,description,priority,project,time_estimate,subtasks_json,created_at FROM templates WHERE name=?`, name))
}

func (r Repo) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description,priority,project,time_estimate,subtasks_json,created_at FROM templates ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		var t domain.Template
		var description, priority, project, subtasksJSON sql.NullString
		var estimate sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Name, &description, &priority, &project, &estimate, &subtasksJSON, &t.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			t.Description = description.String
		}
		if priority.Valid {
			t.Priority = priority.String
		}
		if project.Valid {
			t.Project = &project.String
		}
		if estimate.Valid {
			v := int(estimate.Int64)
			t.TimeEstimate = &v
		}
		if subtasksJSON.Valid && subtasksJSON.String != "" {
			if err := json.Unmarshal([]byte(subtasksJSON.String), &t.Subtasks); err != nil {
				return nil, err
			}
		}
		res = append(res, t)
	}
	return res, nil
}

func marshalSubtasks(in []domain.Subtask) (any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
