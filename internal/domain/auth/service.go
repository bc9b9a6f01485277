package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type Service struct {
	store  StoreAPI
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func NewService(store StoreAPI, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{store: store, Secret: secret, TTL: ttl, Now: time.Now}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return LoginResult{}, err
	}
	expires := s.Now().Add(s.TTL)
	if err := s.store.CreateSession(ctx, user.ID, HashToken(sessionID), expires); err != nil {
		return LoginResult{}, err
	}

	token, err := GenerateToken(s.Secret, Claims{
		UserID:     user.ID,
		RoleName:   user.RoleName,
		EmployeeID: user.EmployeeID,
		SessionID:  sessionID,
	}, s.TTL)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: expires,
		User: Profile{
			ID:         user.ID,
			Email:      user.Email,
			Role:       user.RoleName,
			EmployeeID: user.EmployeeID,
		},
	}, nil
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, HashToken(user.SessionID))
}

// SessionActive reports whether the session behind a token has not been revoked or expired.
func (s *Service) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return s.store.SessionValid(ctx, userID, HashToken(sessionID))
}

func (s *Service) Me(ctx context.Context, userID string) (Profile, error) {
	return s.store.FindUserByID(ctx, userID)
}
