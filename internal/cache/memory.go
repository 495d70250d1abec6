package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the memory cache when no size is configured.
const DefaultMemoryEntries = 512

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process LRU cache. Expired entries are dropped lazily on
// access.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates a memory cache holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{entries: entries, now: time.Now}, nil
}

// Contains reports whether a live entry exists without touching recency.
func (m *Memory) Contains(_ context.Context, key string) (bool, error) {
	e, ok := m.entries.Peek(key)
	if !ok {
		return false, nil
	}
	if expired(e.expiresAt, m.now()) {
		m.entries.Remove(key)
		return false, nil
	}
	return true, nil
}

// Fetch returns the entry for key, or ErrMiss.
func (m *Memory) Fetch(_ context.Context, key string) ([]byte, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if expired(e.expiresAt, m.now()) {
		m.entries.Remove(key)
		return nil, ErrMiss
	}
	return e.data, nil
}

// Save stores a copy of data.
func (m *Memory) Save(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.entries.Add(key, memoryEntry{
		data:      append([]byte(nil), data...),
		expiresAt: expiresAt(m.now(), ttl),
	})
	return nil
}

// Len returns the number of entries, including expired ones not yet dropped.
func (m *Memory) Len() int {
	return m.entries.Len()
}
