package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"bugforge/internal/domain"
)

const bugColumns = `id,project_id,title,COALESCE(description,''),severity,priority,status,COALESCE(assignee,''),COALESCE(reporter,''),COALESCE(steps,''),COALESCE(attachments,''),created_at,updated_at`

func scanBug(scan func(dest ...any) error) (domain.Bug, error) {
	var b domain.Bug
	var steps, attachments string
	err := scan(&b.ID, &b.ProjectID, &b.Title, &b.Description, &b.Severity, &b.Priority, &b.Status,
		&b.Assignee, &b.Reporter, &steps, &attachments, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	b.Steps = splitLines(steps)
	b.Attachments = splitLines(attachments)
	return b, nil
}

func (r Repo) InsertBug(ctx context.Context, tx *sql.Tx, b domain.Bug) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO bugs(id,project_id,title,description,severity,priority,status,assignee,reporter,steps,attachments,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.ProjectID, b.Title, nullable(b.Description), b.Severity, b.Priority, b.Status,
		nullable(b.Assignee), nullable(b.Reporter), joinLines(b.Steps), joinLines(b.Attachments), b.CreatedAt, b.UpdatedAt)
	return err
}

func (r Repo) UpdateBug(ctx context.Context, tx *sql.Tx, b domain.Bug) error {
	res, err := tx.ExecContext(ctx, `UPDATE bugs SET title=?, description=?, severity=?, priority=?, status=?, assignee=?, reporter=?, steps=?, attachments=?, updated_at=? WHERE id=?`,
		b.Title, nullable(b.Description), b.Severity, b.Priority, b.Status, nullable(b.Assignee), nullable(b.Reporter),
		joinLines(b.Steps), joinLines(b.Attachments), b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetBug(ctx context.Context, id string) (domain.Bug, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id=?`, id)
	b, err := scanBug(row.Scan)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

type BugFilters struct {
	ProjectID       string
	Status          string
	Severity        string
	Assignee        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListBugs(ctx context.Context, f BugFilters) ([]domain.Bug, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, f.Severity)
	}
	if f.Assignee != "" {
		clauses = append(clauses, "assignee=?")
		args = append(args, f.Assignee)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + bugColumns + ` FROM bugs ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Bug
	for rows.Next() {
		b, err := scanBug(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) DeleteBug(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM bugs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountBugsByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM bugs WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// AppendTimelineEntry writes an explicit bug history row inside the mutating
// transaction.
func (r Repo) AppendTimelineEntry(ctx context.Context, tx *sql.Tx, e domain.TimelineEntry) error {
	var details any
	if len(e.Details) > 0 {
		data, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal timeline details: %w", err)
		}
		details = string(data)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO bug_timeline(bug_id,type,title,description,actor,details_json,ts) VALUES (?,?,?,?,?,?,?)`,
		e.BugID, e.Type, e.Title, nullable(e.Description), nullable(e.Actor), details, e.TS)
	return err
}

func (r Repo) ListTimelineEntries(ctx context.Context, bugID string) ([]domain.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,bug_id,type,title,COALESCE(description,''),COALESCE(actor,''),COALESCE(details_json,''),ts FROM bug_timeline WHERE bug_id=? ORDER BY id ASC`, bugID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimelineEntry
	for rows.Next() {
		var e domain.TimelineEntry
		var details string
		if err := rows.Scan(&e.ID, &e.BugID, &e.Type, &e.Title, &e.Description, &e.Actor, &details, &e.TS); err != nil {
			return nil, err
		}
		if details != "" {
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
