package repo

import (
	"context"
	"database/sql"

	"bugforge/internal/domain"
)

func (r Repo) InsertActivity(ctx context.Context, e domain.ActivityEntry) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO activity_log(actor,action,label,details,created_at) VALUES (?,?,?,?,?)`,
		e.Actor, e.Action, nullable(e.Label), nullable(e.Details), e.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListActivity returns the newest entries first, capped at limit.
func (r Repo) ListActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	return r.listActivity(ctx, ``, nil, limit)
}

func (r Repo) ListActivityByActor(ctx context.Context, actor string, limit int) ([]domain.ActivityEntry, error) {
	return r.listActivity(ctx, `WHERE actor=?`, []any{actor}, limit)
}

func (r Repo) listActivity(ctx context.Context, where string, args []any, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id,actor,action,COALESCE(label,''),COALESCE(details,''),created_at FROM activity_log ` + where + ` ORDER BY id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivity(rows)
}

// ActivityAfter returns entries with id greater than cursor in insertion
// order. The webhook forwarder uses it to tail the log.
func (r Repo) ActivityAfter(ctx context.Context, cursor int64, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id,actor,action,COALESCE(label,''),COALESCE(details,''),created_at FROM activity_log WHERE id > ? ORDER BY id ASC`
	args := []any{cursor}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivity(rows)
}

func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity_log`).Scan(&id)
	return id, err
}

func collectActivity(rows *sql.Rows) ([]domain.ActivityEntry, error) {
	var res []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Label, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
