package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many new windows open between sweeps of expired ones.
const sweepEvery = 1024

type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	opened  int
	now     func() time.Time
}

type bucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemory() *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &bucket{windowEnd: now.Add(window)}
		m.buckets[key] = b

		m.opened++
		if m.opened >= sweepEvery {
			m.sweep(now)
		}
	}

	b.count++
	return b.count, b.windowEnd.Sub(now), nil
}

func (m *Memory) sweep(now time.Time) {
	for k, b := range m.buckets {
		if !now.Before(b.windowEnd) {
			delete(m.buckets, k)
		}
	}
	m.opened = 0
}
