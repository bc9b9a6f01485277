package notificationshandler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/notifications"
	"hrsched/internal/transport/http/handlers/handlertest"
)

type fakeInbox struct {
	items  map[string][]notifications.Notification
	unread bool
}

func (f *fakeInbox) List(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]notifications.Notification, error) {
	f.unread = unreadOnly
	var out []notifications.Notification
	for _, n := range f.items[userID] {
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	if offset > len(out) {
		offset = len(out)
	}
	return out[offset:min(len(out), offset+limit)], nil
}

func (f *fakeInbox) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	all, _ := f.List(ctx, userID, unreadOnly, 1000, 0)
	return len(all), nil
}

func (f *fakeInbox) MarkRead(_ context.Context, userID, id string) error {
	for i, n := range f.items[userID] {
		if n.ID == id {
			now := time.Now()
			f.items[userID][i].ReadAt = &now
			return nil
		}
	}
	return notifications.ErrNotFound
}

func (f *fakeInbox) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for i := range f.items[userID] {
		if f.items[userID][i].ReadAt == nil {
			now := time.Now()
			f.items[userID][i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

func TestNotificationInbox(t *testing.T) {
	inbox := &fakeInbox{items: map[string][]notifications.Notification{
		"u1": {
			{ID: "n1", Type: notifications.TypeRequestApproved, Title: "Request approved"},
			{ID: "n2", Type: notifications.TypeRequestRejected, Title: "Request rejected"},
		},
		"u2": {{ID: "n3", Type: notifications.TypePendingDigest, Title: "1 request(s) awaiting your decision"}},
	}}
	user := auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee}
	router := handlertest.Router(NewHandler(inbox, auth.RolePermissionStore{}), &user)

	rec := handlertest.Do(t, router, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	rec = handlertest.Do(t, router, http.MethodPost, "/notifications/n1/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = handlertest.Do(t, router, http.MethodGet, "/notifications?unread=true", nil)
	assert.True(t, inbox.unread)
	var items []notifications.Notification
	handlertest.Decode(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "n2", items[0].ID)

	rec = handlertest.Do(t, router, http.MethodPost, "/notifications/n3/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users' notifications are invisible")

	rec = handlertest.Do(t, router, http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	handlertest.Decode(t, rec, &body)
	assert.Equal(t, int64(1), body["updated"])
}

func TestNotificationsRequireAuthentication(t *testing.T) {
	router := handlertest.Router(NewHandler(&fakeInbox{}, auth.RolePermissionStore{}), nil)
	rec := handlertest.Do(t, router, http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
