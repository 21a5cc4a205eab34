package directory

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

const userColumns = `user_id, employee_number, display_name, manager_id, is_admin, daily_work_minutes, is_disabled`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.UserID, &u.EmployeeNumber, &u.DisplayName, &u.ManagerID,
		&u.IsAdmin, &u.DailyWorkMinutes, &u.IsDisabled)
	return u, err
}

// FindByID: 無効化済みユーザは居ない扱い。見つからなければ nil。
func (s *Store) FindByID(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT `+userColumns+`
	FROM users
	WHERE user_id = ? AND is_disabled = 0`, userID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+userColumns+`
	FROM users
	WHERE is_disabled = 0
	ORDER BY employee_number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SubordinatesOf(ctx context.Context, managerID string) ([]string, error) {
	return s.queryIDs(ctx, `
	SELECT user_id FROM users
	WHERE manager_id = ? AND is_disabled = 0
	ORDER BY user_id ASC`, managerID)
}

// SubstituteDelegatesOf: manager が登録した代理人の一覧
func (s *Store) SubstituteDelegatesOf(ctx context.Context, managerID string) ([]string, error) {
	return s.queryIDs(ctx, `
	SELECT substitute_id FROM substitutes
	WHERE manager_id = ?
	ORDER BY substitute_id ASC`, managerID)
}

// ManagersDelegatingTo: user を代理人として登録している上長の一覧（逆引き）
func (s *Store) ManagersDelegatingTo(ctx context.Context, substituteID string) ([]string, error) {
	return s.queryIDs(ctx, `
	SELECT manager_id FROM substitutes
	WHERE substitute_id = ?
	ORDER BY manager_id ASC`, substituteID)
}

func (s *Store) AddSubstitute(ctx context.Context, managerID, substituteID string) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT IGNORE INTO substitutes (manager_id, substitute_id) VALUES (?, ?)`,
		managerID, substituteID)
	return err
}

func (s *Store) RemoveSubstitute(ctx context.Context, managerID, substituteID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM substitutes WHERE manager_id = ? AND substitute_id = ?`,
		managerID, substituteID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryIDs(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
