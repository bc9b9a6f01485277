package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"hrsched/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

// NewRateStore keeps counters in Redis when a client is given so limits hold
// across replicas, otherwise in process memory.
func NewRateStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "hrsched:ratelimit", CleanUpInterval: time.Minute}), nil
	}
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "hrsched:ratelimit", MaxRetry: 3})
}

type rateLimiter struct {
	name  string
	inner *limiter.Limiter
	keyFn RateLimitKeyFunc
}

func newRateLimiter(store limiter.Store, name string, limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		name:  name,
		inner: limiter.New(store, limiter.Rate{Period: window, Limit: int64(limit)}),
		keyFn: keyFn,
	}
}

// RateLimit applies a per-actor (or per-IP when anonymous) budget to every request.
func RateLimit(store limiter.Store, limit int, window time.Duration) func(http.Handler) http.Handler {
	rl := newRateLimiter(store, "global", limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveRateLimit adds tighter budgets for login attempts and request decisions.
func SensitiveRateLimit(store limiter.Store, baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	decisionLimit := max(baseLimit/2, 1)
	authByIP := newRateLimiter(store, "login-ip", authLimit, window, clientIPKey)
	authByEmail := newRateLimiter(store, "login-email", authLimit, window, AuthEmailOrIPKey("email"))
	decisions := newRateLimiter(store, "decision", decisionLimit, window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !authByIP.enforce(w, r) || !authByEmail.enforce(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !decisions.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	normalizedField := strings.TrimSpace(field)
	if normalizedField == "" {
		normalizedField = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, normalizedField)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

// enforce fails open when the store errors so a Redis outage does not take the API down.
func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	lctx, err := rl.inner.Get(r.Context(), rl.name+":"+key)
	if err != nil {
		slog.Warn("rate limit store failed", "limiter", rl.name, "err", err)
		return true
	}

	resetIn := max(lctx.Reset-time.Now().Unix(), 0)
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetIn, 10))

	if lctx.Reached {
		w.Header().Set("Retry-After", strconv.FormatInt(max(resetIn, 1), 10))
		slog.Warn("rate limit exceeded",
			"limiter", rl.name,
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", lctx.Limit,
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil || r.Method != http.MethodPost {
		return sensitiveScopeNone
	}
	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	switch {
	case path == "/auth/login":
		return sensitiveScopeAuth
	case strings.HasPrefix(path, "/jobs/"):
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/requests/") && (strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/reject")):
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
