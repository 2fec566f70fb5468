package repo

import (
	"context"
	"database/sql"
	"strings"

	"bugforge/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,target,comment_id,message,is_read,created_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.Target, n.CommentID, n.Message, boolInt(n.Read), n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,target,comment_id,message,is_read,created_at FROM notifications WHERE id=?`, id)
	n, err := scanNotification(row.Scan)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

func (r Repo) ListNotifications(ctx context.Context, limit int) ([]domain.Notification, error) {
	return r.listNotifications(ctx, ``, nil, limit)
}

func (r Repo) ListNotificationsByTarget(ctx context.Context, target string, limit int) ([]domain.Notification, error) {
	return r.listNotifications(ctx, `WHERE target=?`, []any{target}, limit)
}

func (r Repo) ListUnreadByTarget(ctx context.Context, target string, limit int) ([]domain.Notification, error) {
	return r.listNotifications(ctx, `WHERE target=? AND is_read=0`, []any{target}, limit)
}

func (r Repo) listNotifications(ctx context.Context, where string, args []any, limit int) ([]domain.Notification, error) {
	query := `SELECT id,target,comment_id,message,is_read,created_at FROM notifications ` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) SetNotificationRead(ctx context.Context, id string, read bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=? WHERE id=?`, boolInt(read), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNotifications removes the given ids atomically. If any id does not
// exist, nothing is deleted and ErrNotFound is returned.
func (r Repo) DeleteNotifications(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return ErrNotFound
	}
	return tx.Commit()
}

func scanNotification(scan func(dest ...any) error) (domain.Notification, error) {
	var n domain.Notification
	var read int
	err := scan(&n.ID, &n.Target, &n.CommentID, &n.Message, &read, &n.CreatedAt)
	n.Read = read != 0
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
