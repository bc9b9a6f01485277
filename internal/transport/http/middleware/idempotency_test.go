package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"hrsched/internal/domain/auth"
)

type memoryKeys struct {
	hashes    map[string]string
	responses map[string]StoredResponse
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{hashes: map[string]string{}, responses: map[string]StoredResponse{}}
}

func (m *memoryKeys) Check(_ context.Context, userID, endpoint, key, hash string) (StoredResponse, bool, error) {
	id := userID + "|" + endpoint + "|" + key
	stored, ok := m.hashes[id]
	if !ok {
		return StoredResponse{}, false, nil
	}
	if stored != hash {
		return StoredResponse{}, false, ErrIdempotencyConflict
	}
	return m.responses[id], true, nil
}

func (m *memoryKeys) Save(_ context.Context, userID, endpoint, key, hash string, resp StoredResponse) error {
	id := userID + "|" + endpoint + "|" + key
	m.hashes[id] = hash
	m.responses[id] = resp
	return nil
}

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func TestIdempotencyReplaysAndConflicts(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryKeys())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"n":1}}`))
	}))

	send := func(body, key string, withUser bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString(body))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		if withUser {
			req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"a":1}`, "k1", true)
	assert.Equal(t, http.StatusCreated, first.Code)

	replay := send(`{"a":1}`, "k1", true)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, calls)

	conflict := send(`{"a":2}`, "k1", true)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	send(`{"a":1}`, "", true)
	send(`{"a":1}`, "k1", false)
	assert.Equal(t, 3, calls, "requests without key or user pass through")
}
