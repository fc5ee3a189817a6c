package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Backend bounded in size. Each entry expires after
// the ttl it was stored with; maxTTL bounds how long any entry is retained.
type Memory struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemory creates a backend holding at most size entries.
func NewMemory(size int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Backend.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)})
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	return m.lru.Len()
}
