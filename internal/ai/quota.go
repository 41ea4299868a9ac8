package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Quota checks and records per-caller daily token usage.
// A budget of zero means unlimited.
type Quota interface {
	// Check returns true if the caller has budget remaining today.
	Check(ctx context.Context, caller string) (bool, error)
	// Record adds token usage for the caller to today's total.
	Record(ctx context.Context, caller string, tokens int) error
	// Usage returns today's usage and the daily budget for the caller.
	Usage(ctx context.Context, caller string) (used int64, budget int64, err error)
}

// quotaKey buckets usage per caller per UTC day.
func quotaKey(caller string, now time.Time) string {
	return "quota:" + caller + ":" + now.UTC().Format("20060102")
}

// InMemoryQuota is a process-local quota tracker for development and tests.
type InMemoryQuota struct {
	mu     sync.Mutex
	budget int64
	usage  map[string]int64
	now    func() time.Time
}

// NewInMemoryQuota creates an in-memory quota with the given daily budget.
func NewInMemoryQuota(budget int64) *InMemoryQuota {
	return &InMemoryQuota{
		budget: budget,
		usage:  make(map[string]int64),
		now:    time.Now,
	}
}

func (q *InMemoryQuota) Check(_ context.Context, caller string) (bool, error) {
	if q.budget <= 0 {
		return true, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage[quotaKey(caller, q.now())] < q.budget, nil
}

func (q *InMemoryQuota) Record(_ context.Context, caller string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.usage[quotaKey(caller, q.now())] += int64(tokens)
	return nil
}

func (q *InMemoryQuota) Usage(_ context.Context, caller string) (int64, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage[quotaKey(caller, q.now())], q.budget, nil
}

// CounterStore is the subset of the cache client RedisQuota needs.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
}

// RedisQuota tracks usage in Dragonfly/Redis so the budget is shared by all
// server instances. Keys expire after two days.
type RedisQuota struct {
	store  CounterStore
	budget int64
	now    func() time.Time
}

// NewRedisQuota creates a quota backed by the given counter store.
func NewRedisQuota(store CounterStore, budget int64) *RedisQuota {
	return &RedisQuota{store: store, budget: budget, now: time.Now}
}

func (q *RedisQuota) Check(ctx context.Context, caller string) (bool, error) {
	if q.budget <= 0 {
		return true, nil
	}
	used, err := q.store.Counter(ctx, quotaKey(caller, q.now()))
	if err != nil {
		return false, fmt.Errorf("read quota: %w", err)
	}
	return used < q.budget, nil
}

func (q *RedisQuota) Record(ctx context.Context, caller string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	if _, err := q.store.IncrBy(ctx, quotaKey(caller, q.now()), int64(tokens), 48*time.Hour); err != nil {
		return fmt.Errorf("record quota: %w", err)
	}
	return nil
}

func (q *RedisQuota) Usage(ctx context.Context, caller string) (int64, int64, error) {
	used, err := q.store.Counter(ctx, quotaKey(caller, q.now()))
	if err != nil {
		return 0, 0, fmt.Errorf("read quota: %w", err)
	}
	return used, q.budget, nil
}
