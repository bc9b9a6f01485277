package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Chat posts a message to the shared HR channel.
type Chat interface {
	Send(ctx context.Context, text string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	Chat        Chat
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

// Create persists an in-app notification and mirrors it by email. Delivery
// failures are logged and do not fail the call.
func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}
	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, title, body); err != nil {
		slog.Warn("notification email send failed", "err", err)
	}
	return nil
}

// Notify creates the same notification for several users, skipping blanks
// and duplicates. The first store error is returned after all users are tried.
func (s *Service) Notify(ctx context.Context, userIDs []string, ntype, title, body string) error {
	var first error
	seen := map[string]struct{}{}
	for _, id := range userIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if err := s.Create(ctx, id, ntype, title, body); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Announce posts to the HR chat when one is configured.
func (s *Service) Announce(ctx context.Context, text string) {
	if s.Chat == nil {
		return
	}
	if err := s.Chat.Send(ctx, text); err != nil {
		slog.Warn("chat announce failed", "err", err)
	}
}

// Digest sends one leader the list of requests awaiting their decision.
func (s *Service) Digest(ctx context.Context, userID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	title := fmt.Sprintf("%d request(s) awaiting your decision", len(lines))
	return s.Create(ctx, userID, TypePendingDigest, title, strings.Join(lines, "\n"))
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
