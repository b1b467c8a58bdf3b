package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     int64
	expiresAt time.Time
}

// Memory is an in-process cache used when no Redis is configured.
// Entries expire lazily on read and in bulk via Cleanup.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) get(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return 0, false
	}
	return e.value, true
}

func (m *Memory) set(key string, value int64, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
}

// GetEmployee returns the cached employee ID for a frame hash
func (m *Memory) GetEmployee(_ context.Context, hash string) (int64, bool, error) {
	id, ok := m.get(frameKeyPrefix + hash)
	return id, ok, nil
}

// SetEmployee caches the employee ID for a frame hash
func (m *Memory) SetEmployee(_ context.Context, hash string, employeeID int64, ttl time.Duration) error {
	m.set(frameKeyPrefix+hash, employeeID, ttl)
	return nil
}

// Revoke marks a token ID as revoked for ttl
func (m *Memory) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl > 0 {
		m.set(revokedKeyPrefix+jti, 1, ttl)
	}
	return nil
}

// IsRevoked reports whether a token ID is revoked
func (m *Memory) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := m.get(revokedKeyPrefix + jti)
	return ok, nil
}

// Cleanup removes expired entries and returns how many were removed
func (m *Memory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
