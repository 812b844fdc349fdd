// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLookupLimit and DefaultLookupWindow bound anonymous status
	// lookups to 5 attempts per 60 seconds per limit key.
	DefaultLookupLimit  = 5
	DefaultLookupWindow = 60 * time.Second
)

// RedisRateLimiter implements RateLimiter as a sliding window over a
// Redis sorted set: each attempt adds a uniquely-named member scored by
// its timestamp, expired members are trimmed, and the remaining
// cardinality is compared against the limit.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a sliding-window limiter backed by client.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow implements RateLimiter.
func (r *RedisRateLimiter) Allow(ctx context.Context, limitKey string) (bool, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:anon:%s", limitKey)
	now := time.Now()
	cutoff := now.Add(-r.window)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff.UnixNano()))
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	count := card.Val()
	if count <= int64(r.limit) {
		return true, 0, nil
	}

	oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter window lookup failed: %w", err)
	}
	retryAfter := r.window
	if len(oldest) == 1 {
		oldestAt := time.Unix(0, int64(oldest[0].Score))
		if remaining := r.window - now.Sub(oldestAt); remaining > 0 {
			retryAfter = remaining
		}
	}
	return false, retryAfter, nil
}

// InMemoryRateLimiter is a mutex-guarded sliding-window fallback for
// tests and single-process deployments without Redis.
type InMemoryRateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string][]time.Time
}

// NewInMemoryRateLimiter creates an in-process sliding-window limiter.
func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{limit: limit, window: window, attempts: make(map[string][]time.Time)}
}

// Allow implements RateLimiter.
func (r *InMemoryRateLimiter) Allow(_ context.Context, limitKey string) (bool, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	kept := r.attempts[limitKey][:0]
	for _, t := range r.attempts[limitKey] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.attempts[limitKey] = kept

	if len(kept) >= r.limit {
		retryAfter := r.window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	r.attempts[limitKey] = append(r.attempts[limitKey], now)
	return true, 0, nil
}
