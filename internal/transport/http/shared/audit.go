package shared

import (
	"context"
	"log/slog"
	"net/http"

	"hrsched/internal/requestctx"
)

// Auditor records write events. *audit.Service satisfies it.
type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

// Audit records an event attributed to the current HTTP request. Failures are
// logged and never fail the request.
func Audit(r *http.Request, a Auditor, actorID, action, entityType, entityID string, before, after any) {
	if a == nil {
		return
	}
	ctx := r.Context()
	if err := a.Record(ctx, actorID, action, entityType, entityID, requestctx.GetRequestID(ctx), ClientIP(r), before, after); err != nil {
		slog.Warn("audit "+entityType+"."+action+" failed", "entityId", entityID, "err", err)
	}
}
