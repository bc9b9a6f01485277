package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrsched/internal/platform/querier"
)

type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	FindUserByID(ctx context.Context, userID string) (Profile, error)
	CreateSession(ctx context.Context, userID, tokenHash string, expires time.Time) error
	RevokeSession(ctx context.Context, userID, tokenHash string) error
	SessionValid(ctx context.Context, userID, tokenHash string) (bool, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID         string
	Email      string
	RoleName   string
	Password   string
	EmployeeID string
}

type Profile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	EmployeeID string `json:"employeeId,omitempty"`
	Name       string `json:"name,omitempty"`
	FactoryID  string `json:"factoryId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.role, u.password_hash, COALESCE(e.id::text, '')
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id AND e.active
    WHERE lower(u.email) = lower($1) AND u.active
  `, email).Scan(&out.ID, &out.Email, &out.RoleName, &out.Password, &out.EmployeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, ErrInvalidCredentials
	}
	return out, err
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (Profile, error) {
	var out Profile
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.email, u.role,
      COALESCE(e.id::text, ''), COALESCE(e.full_name, ''),
      COALESCE(e.factory_id::text, ''), COALESCE(e.group_id::text, '')
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id
    WHERE u.id = $1
  `, userID).Scan(&out.ID, &out.Email, &out.Role, &out.EmployeeID, &out.Name, &out.FactoryID, &out.GroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrUserNotFound
	}
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (user_id, token_hash, expires_at)
    VALUES ($1,$2,$3)
  `, userID, tokenHash, expires)
	return err
}

func (s *Store) RevokeSession(ctx context.Context, userID, tokenHash string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND token_hash = $2 AND revoked_at IS NULL", userID, tokenHash)
	return err
}

func (s *Store) SessionValid(ctx context.Context, userID, tokenHash string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM sessions
    WHERE user_id = $1 AND token_hash = $2 AND expires_at > now() AND revoked_at IS NULL
  `, userID, tokenHash).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}
