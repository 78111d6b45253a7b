package local

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mailburst/mailburst/internal/ratelimit"
	"golang.org/x/time/rate"
)

var _ ratelimit.RateLimiter = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter is an in-process per-bucket limiter used when no Redis
// is configured. Single-process deployments lose nothing by pacing locally.
type TokenBucketLimiter struct {
	limitPerSec int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewTokenBucketLimiter(limitPerSec int) *TokenBucketLimiter {
	if limitPerSec < 1 {
		limitPerSec = 1
	}
	return &TokenBucketLimiter{
		limitPerSec: limitPerSec,
		buckets:     make(map[string]*rate.Limiter),
	}
}

func (l *TokenBucketLimiter) Allow(ctx context.Context, bucket string) (bool, error) {
	limiter, err := l.bucket(bucket)
	if err != nil {
		return false, err
	}
	return limiter.Allow(), nil
}

func (l *TokenBucketLimiter) Wait(ctx context.Context, bucket string) error {
	limiter, err := l.bucket(bucket)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return limiter.Wait(ctx)
}

func (l *TokenBucketLimiter) bucket(name string) (*rate.Limiter, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets[normalized]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.limitPerSec), l.limitPerSec)
		l.buckets[normalized] = limiter
	}
	return limiter, nil
}
