package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"TEMPO-backend/internal/platform/db"
)

// ===== Error model (timeclock と同型) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string       { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError   { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError  { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrForbidden(msg string) *APIError { return &APIError{Code: CodeForbidden, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeForbidden:
			return 403
		default:
			return 500
		}
	}
	return 500
}

// ===== Service =====

const DefaultDailyMinutes = 480

type Service struct {
	db                  *sql.DB
	store               *Store
	defaultDailyMinutes int
}

func NewService(db *sql.DB, defaultDailyMinutes int) *Service {
	if defaultDailyMinutes <= 0 {
		defaultDailyMinutes = DefaultDailyMinutes
	}
	return &Service{db: db, store: NewStore(db), defaultDailyMinutes: defaultDailyMinutes}
}

func (s *Service) FindUser(ctx context.Context, userID string) (UserResponse, error) {
	if userID == "" {
		return UserResponse{}, ErrInvalid("user_id is required")
	}
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return UserResponse{}, err
	}
	if u == nil {
		return UserResponse{}, ErrNotFound("user not found")
	}
	return u.toDTO(), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.toDTO())
	}
	return out, nil
}

// RegisterSubstitute: 代理人登録。存在確認と登録を同一トランザクションで行う。
func (s *Service) RegisterSubstitute(ctx context.Context, req RegisterSubstituteRequest) error {
	if req.ManagerID == req.SubstituteID {
		return ErrInvalid("manager and substitute must differ")
	}
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		st := NewStore(tx)
		for _, id := range []string{req.ManagerID, req.SubstituteID} {
			u, err := st.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if u == nil {
				return ErrNotFound("user not found: " + id)
			}
		}
		return st.AddSubstitute(ctx, req.ManagerID, req.SubstituteID)
	})
}

func (s *Service) RemoveSubstitute(ctx context.Context, managerID, substituteID string) error {
	n, err := s.store.RemoveSubstitute(ctx, managerID, substituteID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("substitute registration not found")
	}
	return nil
}

// ===== timeclock.Directory 実装 =====

func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

func (s *Service) DisplayNameOf(ctx context.Context, userID string) (string, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNotFound("user not found")
	}
	return u.DisplayName, nil
}

// ManagerOf: 上長なしは "" を返す
func (s *Service) ManagerOf(ctx context.Context, userID string) (string, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNotFound("user not found")
	}
	if u.ManagerID == nil {
		return "", nil
	}
	return *u.ManagerID, nil
}

func (s *Service) SubordinatesOf(ctx context.Context, managerID string) ([]string, error) {
	return s.store.SubordinatesOf(ctx, managerID)
}

func (s *Service) SubstituteDelegatesOf(ctx context.Context, managerID string) ([]string, error) {
	return s.store.SubstituteDelegatesOf(ctx, managerID)
}

func (s *Service) ManagersDelegatingTo(ctx context.Context, substituteID string) ([]string, error) {
	return s.store.ManagersDelegatingTo(ctx, substituteID)
}

func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsAdmin, nil
}

// DailyTargetMinutes: 個人設定が無ければシステムデフォルトに落とす
func (s *Service) DailyTargetMinutes(ctx context.Context, userID string) (int, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, ErrNotFound("user not found")
	}
	if u.DailyWorkMinutes == nil || *u.DailyWorkMinutes <= 0 {
		return s.defaultDailyMinutes, nil
	}
	return *u.DailyWorkMinutes, nil
}
