package ratelimit

import "context"

// RateLimiter paces outbound sends per bucket (one bucket per transport).
type RateLimiter interface {
	Allow(ctx context.Context, bucket string) (bool, error)
	Wait(ctx context.Context, bucket string) error
}
