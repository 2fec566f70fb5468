package repo

import (
	"context"
	"database/sql"

	"bugforge/internal/domain"
)

func (r Repo) InsertTeamMember(ctx context.Context, m domain.TeamMember) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO team_members(id,project_id,name,user_ref,created_at) VALUES (?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Name, m.UserRef, m.CreatedAt)
	return err
}

func (r Repo) GetTeamMember(ctx context.Context, id string) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,user_ref,created_at FROM team_members WHERE id=?`, id).
		Scan(&m.ID, &m.ProjectID, &m.Name, &m.UserRef, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

// FindTeamMemberByName matches a mention token against member names,
// case-insensitively.
func (r Repo) FindTeamMemberByName(ctx context.Context, projectID, name string) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,user_ref,created_at FROM team_members WHERE project_id=? AND name=? COLLATE NOCASE LIMIT 1`, projectID, name).
		Scan(&m.ID, &m.ProjectID, &m.Name, &m.UserRef, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListTeamMembers(ctx context.Context, projectID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,user_ref,created_at FROM team_members WHERE project_id=? ORDER BY name ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Name, &m.UserRef, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTeamMember(ctx context.Context, id, name, userRef string) error {
	var (
		fields []string
		args   []any
	)
	if name != "" {
		fields = append(fields, "name=?")
		args = append(args, name)
	}
	if userRef != "" {
		fields = append(fields, "user_ref=?")
		args = append(args, userRef)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	query := `UPDATE team_members SET ` + fields[0]
	for _, f := range fields[1:] {
		query += ", " + f
	}
	query += ` WHERE id=?`
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTeamMember(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM team_members WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
