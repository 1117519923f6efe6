package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/platform/cache"
)

const (
	modulesKey = "tutor:curriculum:modules"
	topicsKey  = "tutor:curriculum:topics"
)

// CachedStore serves the static curriculum reads from a KV cache and passes
// everything else to the wrapped Store. Curriculum writes invalidate the cache.
type CachedStore struct {
	Store
	kv  cache.KV
	ttl time.Duration
}

// NewCachedStore wraps inner with a read-through curriculum cache.
func NewCachedStore(inner Store, kv cache.KV, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: inner, kv: kv, ttl: ttl}
}

func (s *CachedStore) ListModules(ctx context.Context) ([]curriculum.Module, error) {
	return readThrough(ctx, s, modulesKey, s.Store.ListModules)
}

func (s *CachedStore) ListTopics(ctx context.Context) ([]curriculum.Topic, error) {
	return readThrough(ctx, s, topicsKey, s.Store.ListTopics)
}

func (s *CachedStore) InsertModule(ctx context.Context, m curriculum.Module) (curriculum.Module, error) {
	out, err := s.Store.InsertModule(ctx, m)
	if err != nil {
		return out, err
	}
	s.invalidate(ctx)
	return out, nil
}

func (s *CachedStore) InsertTopic(ctx context.Context, t curriculum.Topic) (curriculum.Topic, error) {
	out, err := s.Store.InsertTopic(ctx, t)
	if err != nil {
		return out, err
	}
	s.invalidate(ctx)
	return out, nil
}

// InsertQuestion invalidates too, since has_questions may be derived from it.
func (s *CachedStore) InsertQuestion(ctx context.Context, q curriculum.QuizQuestion) (curriculum.QuizQuestion, error) {
	out, err := s.Store.InsertQuestion(ctx, q)
	if err != nil {
		return out, err
	}
	s.invalidate(ctx)
	return out, nil
}

// HealthCheck reports the inner store first, then the cache.
func (s *CachedStore) HealthCheck(ctx context.Context) error {
	if err := s.Store.HealthCheck(ctx); err != nil {
		return err
	}
	return s.kv.HealthCheck(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.kv.Del(ctx, modulesKey, topicsKey); err != nil {
		slog.Warn("curriculum cache invalidation failed", "error", err)
	}
}

func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	b, err := s.kv.Get(ctx, key)
	if err == nil {
		var out []T
		if jerr := json.Unmarshal(b, &out); jerr == nil {
			return out, nil
		}
		slog.Warn("discarding corrupt cache entry", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("cache read failed", "key", key, "error", err)
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := s.kv.Set(ctx, key, b, s.ttl); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return out, nil
}
