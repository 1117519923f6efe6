package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-n-ai/tutor-portal/internal/curriculum"
	"github.com/p-n-ai/tutor-portal/internal/platform/cache"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("quiz session not found")

const sessionKeyPrefix = "tutor:quiz:session:"

// SessionStore keeps in-flight sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// KVSessionStore stores sessions as JSON in a cache.KV with a sliding TTL.
// Backed by Redis, sessions survive restarts and are shared across replicas.
type KVSessionStore struct {
	kv  cache.KV
	ttl time.Duration
}

// NewKVSessionStore creates a session store over kv.
func NewKVSessionStore(kv cache.KV, ttl time.Duration) *KVSessionStore {
	return &KVSessionStore{kv: kv, ttl: ttl}
}

func (s *KVSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := s.kv.Get(ctx, sessionKeyPrefix+id)
	if errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.History == nil {
		sess.History = map[string]curriculum.Option{}
	}
	return &sess, nil
}

func (s *KVSessionStore) Put(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKeyPrefix+sess.ID, b, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *KVSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Del(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
