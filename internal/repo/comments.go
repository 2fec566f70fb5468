package repo

import (
	"context"
	"database/sql"

	"bugforge/internal/domain"
)

const commentColumns = `id,bug_id,test_case_id,author,body,created_at,updated_at`

func scanComment(scan func(dest ...any) error) (domain.Comment, error) {
	var c domain.Comment
	err := scan(&c.ID, &c.BugID, &c.TestCaseID, &c.Author, &c.Body, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r Repo) InsertComment(ctx context.Context, c domain.Comment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO comments(id,bug_id,test_case_id,author,body,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.BugID, c.TestCaseID, c.Author, c.Body, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=?`, id)
	c, err := scanComment(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) UpdateComment(ctx context.Context, id, body, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE comments SET body=?, updated_at=? WHERE id=?`, body, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment and its replies in one transaction.
func (r Repo) DeleteComment(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM replies WHERE comment_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r Repo) ListCommentsByBug(ctx context.Context, bugID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `bug_id=?`, bugID)
}

func (r Repo) ListCommentsByTestCase(ctx context.Context, testCaseID string) ([]domain.Comment, error) {
	return r.listComments(ctx, `test_case_id=?`, testCaseID)
}

func (r Repo) listComments(ctx context.Context, clause string, arg any) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE `+clause+` ORDER BY created_at ASC, id ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertReply(ctx context.Context, rep domain.Reply) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO replies(id,comment_id,author,body,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		rep.ID, rep.CommentID, rep.Author, rep.Body, rep.CreatedAt, rep.UpdatedAt)
	return err
}

func (r Repo) GetReply(ctx context.Context, id string) (domain.Reply, error) {
	var rep domain.Reply
	err := r.DB.QueryRowContext(ctx, `SELECT id,comment_id,author,body,created_at,updated_at FROM replies WHERE id=?`, id).
		Scan(&rep.ID, &rep.CommentID, &rep.Author, &rep.Body, &rep.CreatedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	return rep, err
}

func (r Repo) UpdateReply(ctx context.Context, id, body, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE replies SET body=?, updated_at=? WHERE id=?`, body, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteReply(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM replies WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListReplies(ctx context.Context, commentID string) ([]domain.Reply, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,comment_id,author,body,created_at,updated_at FROM replies WHERE comment_id=? ORDER BY created_at ASC, id ASC`, commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reply
	for rows.Next() {
		var rep domain.Reply
		if err := rows.Scan(&rep.ID, &rep.CommentID, &rep.Author, &rep.Body, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}
