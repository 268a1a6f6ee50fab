package throttle

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count           int
	windowStartedAt time.Time
}

// MemoryThrottle keeps counters in process memory.
type MemoryThrottle struct {
	mu        sync.Mutex
	policy    Policy
	now       func() time.Time
	entries   map[string]*entry
	lastSweep time.Time
}

func NewMemoryThrottle(p Policy) *MemoryThrottle {
	return &MemoryThrottle{
		policy:  p,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *MemoryThrottle) WithClock(now func() time.Time) *MemoryThrottle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryThrottle) Allow(_ context.Context, identifier string) (bool, error) {
	key := Normalize(identifier)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	e, ok := m.entries[key]
	if !ok || !now.Before(e.windowStartedAt.Add(m.policy.Window)) {
		m.entries[key] = &entry{count: 1, windowStartedAt: now}
		return true, nil
	}

	e.count++
	return e.count <= m.policy.MaxAttempts, nil
}

func (m *MemoryThrottle) Clear(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, Normalize(identifier))
	return nil
}

// sweep drops expired windows at most once per window length.
func (m *MemoryThrottle) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.policy.Window {
		return
	}
	m.lastSweep = now

	for k, e := range m.entries {
		if !now.Before(e.windowStartedAt.Add(m.policy.Window)) {
			delete(m.entries, k)
		}
	}
}

func (m *MemoryThrottle) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
