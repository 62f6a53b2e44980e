package repo

import (
	"context"
	"database/sql"
	"strings"

	"groundcontrol/internal/domain"
)

const prospectColumns = `id,name,stage,urgency,website,contact,notes,position,created_at,updated_at`

func (r Repo) InsertProspect(ctx context.Context, tx *sql.Tx, p domain.Prospect) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO prospects(`+prospectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Stage, p.Urgency, nullableStringPtr(p.Website), nullableStringPtr(p.Contact),
		nullable(p.Notes), p.Position, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) UpdateProspect(ctx context.Context, tx *sql.Tx, p domain.Prospect) error {
	_, err := tx.ExecContext(ctx, `UPDATE prospects SET name=?, stage=?, urgency=?, website=?, contact=?, notes=?, position=?, updated_at=? WHERE id=?`,
		p.Name, p.Stage, p.Urgency, nullableStringPtr(p.Website), nullableStringPtr(p.Contact),
		nullable(p.Notes), p.Position, p.UpdatedAt, p.ID)
	return err
}

func (r Repo) DeleteProspect(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM prospects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProspectRow(row taskScanner) (domain.Prospect, error) {
	var p domain.Prospect
	var website, contact, notes sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Stage, &p.Urgency, &website, &contact, &notes, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if website.Valid {
		p.Website = &website.String
	}
	if contact.Valid {
		p.Contact = &contact.String
	}
	if notes.Valid {
		p.Notes = notes.String
	}
	return p, nil
}

func (r Repo) GetProspect(ctx context.Context, id string) (domain.Prospect, error) {
	return scanProspectRow(r.DB.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id=?`, id))
}

func (r Repo) GetProspectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Prospect, error) {
	return scanProspectRow(tx.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id=?`, id))
}

type ProspectFilters struct {
	Stage   string
	Urgency string
}

func (r Repo) ListProspects(ctx context.Context, f ProspectFilters) ([]domain.Prospect, error) {
	var clauses []string
	var args []any
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.Urgency != "" {
		clauses = append(clauses, "urgency=?")
		args = append(args, f.Urgency)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+prospectColumns+` FROM prospects `+where+` ORDER BY stage ASC, position ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Prospect
	for rows.Next() {
		p, err := scanProspectRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) CountProspectsByStage(ctx context.Context) (map[string]int, error) {
	return r.countGrouped(ctx, `SELECT stage, count(*) FROM prospects GROUP BY stage`)
}
