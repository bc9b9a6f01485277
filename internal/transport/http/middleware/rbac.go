package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"hrsched/internal/domain/auth"
	"hrsched/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission rejects anonymous callers with 401 and callers whose
// role lacks permission with 403. A nil store uses the static role map.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	if store == nil {
		store = auth.RolePermissionStore{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
			if err != nil {
				slog.Error("permission check failed", "err", err, "permission", permission, "request_id", reqID)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
				return
			}
			if !allowed {
				slog.Debug("permission denied", "role", user.RoleName, "permission", permission, "user_id", user.UserID)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
