package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is a process-local expiring map.
type MemoryProvider struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	max     int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an in-memory cache holding at most maxEntries keys (0 = unbounded).
func NewMemoryProvider(maxEntries int) *MemoryProvider {
	return &MemoryProvider{
		entries: make(map[string]entry),
		now:     time.Now,
		max:     maxEntries,
	}
}

// Get returns a copy of the cached bytes unless absent or expired.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, still := m.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value for ttl; a non-positive ttl keeps the entry until replaced.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.max > 0 && len(m.entries) >= m.max {
		m.evictLocked()
	}
	m.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

// Len reports the number of stored entries, expired ones included until touched.
func (m *MemoryProvider) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close drops every entry.
func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// evictLocked drops expired entries, then the entry closest to expiry if still full.
func (m *MemoryProvider) evictLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	if len(m.entries) < m.max {
		return
	}
	var (
		victim  string
		soonest time.Time
	)
	for k, e := range m.entries {
		if e.expiresAt.IsZero() {
			continue
		}
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	if victim == "" {
		for k := range m.entries {
			victim = k
			break
		}
	}
	delete(m.entries, victim)
}
