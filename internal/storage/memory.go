package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Object is a stored value together with the time it was last written.
type Object struct {
	Data      []byte
	UpdatedAt time.Time
}

// Memory is a thread-safe in-process Store. With a non-zero TTL, Run evicts
// objects that have not been rewritten within the TTL.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*Object
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// NewMemory creates a Memory store. ttl == 0 disables eviction.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		data: make(map[string]*Object),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores a copy of data under key.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &Object{Data: cp, UpdatedAt: m.now()}
	return nil
}

// Fetch returns a copy of the object under key. Objects past the TTL that
// have not been evicted yet are still returned.
func (m *Memory) Fetch(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	cp := make([]byte, len(o.Data))
	copy(cp, o.Data)
	return cp, nil
}

// Keys returns the keys currently held, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of objects held, including stale ones.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Evict removes objects older than now minus TTL and returns how many were
// removed. It is a no-op when TTL is zero.
func (m *Memory) Evict(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-m.ttl)
	removed := 0
	for k, o := range m.data {
		if !o.UpdatedAt.After(cutoff) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Run evicts stale objects every TTL/2 (minimum 1s) until ctx is cancelled.
// It returns immediately when TTL is zero.
func (m *Memory) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now); n > 0 {
				slog.Debug("storage: evicted stale objects", "count", n)
			}
		}
	}
}
