package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process KV used when Redis is not configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory KV.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrMiss
	}
	if !m.expired(e) {
		return append([]byte(nil), e.value...), nil
	}

	// Re-read under the write lock: a Set may have replaced the entry since.
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok = m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if m.expired(e) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) HealthCheck(context.Context) error {
	return nil
}
