package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// Memory keeps counters in process. Each instance of a horizontally scaled
// deployment gets its own counters; use Redis when that matters.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	sweepEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	stopOnce   sync.Once
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithSweepInterval sets how often expired windows are purged.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.sweepEvery = d
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		windows:    make(map[string]*window, 1024),
		now:        time.Now,
		sweepEvery: time.Minute,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background sweeper. Calling it more than once is a no-op.
func (m *Memory) Start() {
	m.startOnce.Do(func() {
		go m.sweepLoop()
	})
}

// Stop ends the sweeper and waits for it to exit.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	started := true
	m.startOnce.Do(func() { started = false })
	if started {
		<-m.done
	}
}

func (m *Memory) sweepLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

// Check never fails; the error is part of the Limiter contract.
func (m *Memory) Check(_ context.Context, identifier string, p Policy) (Result, error) {
	return m.check(identifier, p, m.now()), nil
}

func (m *Memory) check(key string, p Policy, now time.Time) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows[key]
	if w == nil || now.After(w.expiresAt) {
		m.windows[key] = &window{count: 1, expiresAt: now.Add(p.Window)}
		return Result{Allowed: true, Remaining: p.MaxRequests - 1, ResetIn: p.Window}
	}

	if w.count >= p.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetIn: w.expiresAt.Sub(now)}
	}

	w.count++
	return Result{Allowed: true, Remaining: p.MaxRequests - w.count, ResetIn: w.expiresAt.Sub(now)}
}

// Sweep drops every expired window.
func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, w := range m.windows {
		if now.After(w.expiresAt) {
			delete(m.windows, key)
		}
	}
}

// Len returns the number of tracked identifiers.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
