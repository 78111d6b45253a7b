package local

import (
	"context"
	"testing"
)

func TestTokenBucketLimiterAllow(t *testing.T) {
	t.Parallel()

	limiter := NewTokenBucketLimiter(2)

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(context.Background(), "smtp")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed within burst", i+1)
		}
	}

	allowed, err := limiter.Allow(context.Background(), "smtp")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("call past burst should be rejected")
	}
}

func TestTokenBucketLimiterPerBucket(t *testing.T) {
	t.Parallel()

	limiter := NewTokenBucketLimiter(1)

	allowed, err := limiter.Allow(context.Background(), "smtp")
	if err != nil {
		t.Fatalf("Allow(smtp) error = %v", err)
	}
	if !allowed {
		t.Fatal("smtp first call should be allowed")
	}

	allowed, err = limiter.Allow(context.Background(), "sendmail")
	if err != nil {
		t.Fatalf("Allow(sendmail) error = %v", err)
	}
	if !allowed {
		t.Fatal("sendmail should have its own bucket")
	}
}

func TestTokenBucketLimiterRequiresBucket(t *testing.T) {
	t.Parallel()

	limiter := NewTokenBucketLimiter(1)
	if _, err := limiter.Allow(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty bucket")
	}
	if err := limiter.Wait(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
