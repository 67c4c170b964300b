package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type memoryBucket struct {
	tokens float64
	ts     time.Time
}

// MemoryStore is an in-process bucket backend for tests and single-node
// deployments. Each bucket is serialized under one mutex; the clock is
// injectable so windows can be advanced in tests.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		buckets: make(map[string]*memoryBucket),
		now:     now,
	}
}

func (s *MemoryStore) Take(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) (bool, float64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		b = &memoryBucket{tokens: float64(capacity), ts: now}
		s.buckets[key] = b
	}

	if elapsed := now.Sub(b.ts).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(capacity), b.tokens+elapsed*refillPerSec)
		b.ts = now
	}

	if cost <= 0 {
		b.tokens = math.Min(float64(capacity), b.tokens-float64(cost))
		return true, b.tokens, 0, nil
	}

	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		return true, b.tokens, 0, nil
	}

	return false, b.tokens, waitFor(b.tokens, float64(cost), refillPerSec), nil
}

func (s *MemoryStore) Give(ctx context.Context, key string, capacity int, refillPerSec float64, cost int) error {
	_, _, _, err := s.Take(ctx, key, capacity, refillPerSec, -cost)
	return err
}
