package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// 秘密鍵 (本番では環境変数から取得推奨)
var jwtSecret = []byte("your-secret-key")

var (
	ErrAuthFailed = errors.New("authentication failed")
	ErrNotFound   = errors.New("not found")
)

type Service struct {
	store CredentialStore
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db)}
}

type AuthService interface {
	Login(ctx context.Context, employeeNumber, password string) (string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

func JWTSecret() []byte {
	return jwtSecret
}

// Login: 社員番号＋パスワードで認証し、sub=user_id のトークンを返す。
func (s *Service) Login(ctx context.Context, employeeNumber, password string) (string, error) {
	cr, err := s.store.FindByEmployeeNumber(ctx, employeeNumber)
	if err != nil {
		return "", err
	}
	if cr == nil || cr.IsDisabled {
		return "", ErrAuthFailed
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cr.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  cr.UserID,
		"role": cr.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	cr, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if cr == nil {
		return ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cr.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrAuthFailed
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	n, err := s.store.UpdatePasswordHash(ctx, userID, string(hash))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
