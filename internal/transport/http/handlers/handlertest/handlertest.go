// Package handlertest drives chi handlers in tests with an authenticated user.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/auth"
	"hrsched/internal/transport/http/middleware"
)

// Routes is implemented by every handler package.
type Routes interface {
	RegisterRoutes(r chi.Router)
}

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

// Router mounts h the way the server does. A nil user leaves requests anonymous.
func Router(h Routes, user *auth.UserContext) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *user))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(r)
	return r
}

// Do sends body (marshalled unless it is already []byte or nil) to the router.
func Do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// Decode parses the response envelope and, when dst is non-nil, its data.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

// ErrorCode returns the envelope's error code or "".
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := Decode(t, rec, nil)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

// Recorder captures audit events.
type Recorder struct {
	Events []Event
}

type Event struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     any
	After      any
}

func (a *Recorder) Record(_ context.Context, actorID, action, entityType, entityID, _, _ string, before, after any) error {
	a.Events = append(a.Events, Event{ActorID: actorID, Action: action, EntityType: entityType, EntityID: entityID, Before: before, After: after})
	return nil
}

// Actions lists the recorded actions in order.
func (a *Recorder) Actions() []string {
	out := make([]string, 0, len(a.Events))
	for _, e := range a.Events {
		out = append(out, e.EntityType+"."+e.Action)
	}
	return out
}
