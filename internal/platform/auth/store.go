package auth

import (
	"context"
	"database/sql"
	"errors"
)

// 認証情報は社員台帳（users）に同居している。
type Credential struct {
	UserID         string
	EmployeeNumber string
	PasswordHash   string
	Role           string // admin / employee
	IsDisabled     bool
}

type CredentialStore interface {
	FindByEmployeeNumber(ctx context.Context, employeeNumber string) (*Credential, error)
	FindByUserID(ctx context.Context, userID string) (*Credential, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) (int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) CredentialStore {
	return &Store{db: db}
}

func (s *Store) FindByEmployeeNumber(ctx context.Context, employeeNumber string) (*Credential, error) {
	const q = `
SELECT user_id, employee_number, password_hash,
       CASE WHEN is_admin = 1 THEN 'admin' ELSE 'employee' END AS role,
       is_disabled
FROM users
WHERE employee_number = ?
LIMIT 1
`
	var cr Credential
	var isDisabledInt int
	err := s.db.QueryRowContext(ctx, q, employeeNumber).Scan(
		&cr.UserID,
		&cr.EmployeeNumber,
		&cr.PasswordHash,
		&cr.Role,
		&isDisabledInt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cr.IsDisabled = isDisabledInt != 0
	return &cr, nil
}

func (s *Store) FindByUserID(ctx context.Context, userID string) (*Credential, error) {
	const q = `
SELECT user_id, employee_number, password_hash,
       CASE WHEN is_admin = 1 THEN 'admin' ELSE 'employee' END AS role,
       is_disabled
FROM users
WHERE user_id = ?
LIMIT 1
`
	var cr Credential
	var isDisabledInt int
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&cr.UserID,
		&cr.EmployeeNumber,
		&cr.PasswordHash,
		&cr.Role,
		&isDisabledInt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cr.IsDisabled = isDisabledInt != 0
	return &cr, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) (int64, error) {
	const q = `UPDATE users SET password_hash = ? WHERE user_id = ?`
	res, err := s.db.ExecContext(ctx, q, hash, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
