package redisstore

import (
	"context"
	"sync"
	"time"

	"digitalwall/internal/ports"
)

// MemoryStore is the single-process stand-in used when no Redis address is
// configured. Good enough for development; cache entries honor their TTL
// lazily on read.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	counters map[string]int64
	now      func() time.Time
}

type memoryEntry struct {
	payload []byte
	expires time.Time
}

var (
	_ ports.CacheStore   = (*MemoryStore)(nil)
	_ ports.CounterStore = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  map[string]memoryEntry{},
		counters: map[string]int64{},
		now:      time.Now,
	}
}

// WithClock overrides the clock; tests pin expiry with it.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.entries, key)
		return nil, ports.ErrCacheMiss
	}

	payload := make([]byte, len(entry.payload))
	copy(payload, entry.payload)
	return payload, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{payload: make([]byte, len(value))}
	copy(entry.payload, value)
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Increment(_ context.Context, key string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key] += amount
	return nil
}

func (m *MemoryStore) Read(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}
