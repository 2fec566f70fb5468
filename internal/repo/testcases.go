package repo

import (
	"context"
	"database/sql"
	"strings"

	"bugforge/internal/domain"
)

const testCaseColumns = `id,project_id,title,COALESCE(description,''),COALESCE(steps,''),COALESCE(expected_result,''),priority,status,COALESCE(owner,''),last_run_at,COALESCE(last_result,''),created_at,updated_at`

func scanTestCase(scan func(dest ...any) error) (domain.TestCase, error) {
	var tc domain.TestCase
	var steps string
	err := scan(&tc.ID, &tc.ProjectID, &tc.Title, &tc.Description, &steps, &tc.ExpectedResult,
		&tc.Priority, &tc.Status, &tc.Owner, &tc.LastRunAt, &tc.LastResult, &tc.CreatedAt, &tc.UpdatedAt)
	if err != nil {
		return tc, err
	}
	tc.Steps = splitLines(steps)
	return tc, nil
}

func (r Repo) InsertTestCase(ctx context.Context, tc domain.TestCase) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO test_cases(id,project_id,title,description,steps,expected_result,priority,status,owner,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		tc.ID, tc.ProjectID, tc.Title, nullable(tc.Description), joinLines(tc.Steps), nullable(tc.ExpectedResult),
		tc.Priority, tc.Status, nullable(tc.Owner), tc.CreatedAt, tc.UpdatedAt)
	return err
}

func (r Repo) UpdateTestCase(ctx context.Context, tc domain.TestCase) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE test_cases SET title=?, description=?, steps=?, expected_result=?, priority=?, status=?, owner=?, last_run_at=?, last_result=?, updated_at=? WHERE id=?`,
		tc.Title, nullable(tc.Description), joinLines(tc.Steps), nullable(tc.ExpectedResult), tc.Priority, tc.Status,
		nullable(tc.Owner), tc.LastRunAt, nullable(tc.LastResult), tc.UpdatedAt, tc.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTestCase(ctx context.Context, id string) (domain.TestCase, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+testCaseColumns+` FROM test_cases WHERE id=?`, id)
	tc, err := scanTestCase(row.Scan)
	if err == sql.ErrNoRows {
		return tc, ErrNotFound
	}
	return tc, err
}

type TestCaseFilters struct {
	ProjectID string
	Status    string
	Owner     string
	Limit     int
}

func (r Repo) ListTestCases(ctx context.Context, f TestCaseFilters) ([]domain.TestCase, error) {
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
	if f.Owner != "" {
		clauses = append(clauses, "owner=?")
		args = append(args, f.Owner)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + testCaseColumns + ` FROM test_cases ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, tc)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTestCase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM test_cases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
