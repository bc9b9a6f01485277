package reports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/cache"
)

const generationKey = "reports:gen"

type Source interface {
	UnifiedView(ctx context.Context, filter requests.Filter) ([]requests.Request, error)
}

// Service aggregates the unified view. Results are cached under a
// generation counter that every request write bumps, so stale entries are
// never read again and simply expire.
type Service struct {
	Source Source
	Cache  cache.Cache
	TTL    time.Duration
}

func NewService(source Source, c cache.Cache, ttl time.Duration) *Service {
	return &Service{Source: source, Cache: c, TTL: ttl}
}

// Invalidate starts a new cache generation.
func (s *Service) Invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if _, err := s.Cache.Incr(ctx, generationKey); err != nil {
		slog.Warn("report cache invalidate failed", "err", err)
	}
}

func (s *Service) cacheKey(ctx context.Context, kind string, filter requests.Filter) (string, bool) {
	if s.Cache == nil {
		return "", false
	}
	gen, ok, err := s.Cache.Get(ctx, generationKey)
	if err != nil {
		slog.Warn("report cache generation read failed", "err", err)
		return "", false
	}
	if !ok {
		gen = []byte("0")
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(raw)
	return "reports:" + string(gen) + ":" + kind + ":" + hex.EncodeToString(sum[:12]), true
}

func cached[T any](ctx context.Context, s *Service, kind string, filter requests.Filter, compute func([]requests.Request) (T, error)) (T, error) {
	var zero T
	key, useCache := s.cacheKey(ctx, kind, filter)
	if useCache {
		if raw, ok, err := s.Cache.Get(ctx, key); err == nil && ok {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}
	}

	items, err := s.Source.UnifiedView(ctx, filter)
	if err != nil {
		return zero, err
	}
	out, err := compute(items)
	if err != nil {
		return zero, err
	}
	if useCache {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.TTL); err != nil {
				slog.Warn("report cache write failed", "err", err)
			}
		}
	}
	return out, nil
}

func (s *Service) Summary(ctx context.Context, filter requests.Filter) (Summary, error) {
	return cached(ctx, s, "summary", filter, func(items []requests.Request) (Summary, error) {
		return Summarize(items), nil
	})
}

func (s *Service) Breakdown(ctx context.Context, filter requests.Filter, dim string) ([]Bucket, error) {
	if !ValidDimension(dim) {
		_, err := GroupBy(nil, dim)
		return nil, err
	}
	return cached(ctx, s, "by-"+dim, filter, func(items []requests.Request) ([]Bucket, error) {
		return GroupBy(items, dim)
	})
}

func (s *Service) Export(ctx context.Context, w io.Writer, format string, filter requests.Filter) error {
	items, err := s.Source.UnifiedView(ctx, filter)
	if err != nil {
		return err
	}
	return Export(w, format, items)
}
