package cache

import (
	"context"
	"time"
)

// retryCache decorates a backend so transient failures are retried with
// backoff instead of failing the pass. Backends mark transient errors
// with Retryable; anything unmarked fails through immediately.
type retryCache struct {
	inner Cache
}

// WithRetry wraps a backend in retry-with-backoff semantics. Used around
// RedisCache, whose network errors during a long watch session are
// usually transient.
func WithRetry(inner Cache) Cache {
	return &retryCache{inner: inner}
}

func (c *retryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var hit bool
	err := RetryWithBackoff(ctx, func() error {
		var err error
		data, hit, err = c.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return data, hit, nil
}

func (c *retryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return RetryWithBackoff(ctx, func() error {
		return c.inner.Set(ctx, key, data, ttl)
	})
}

func (c *retryCache) Delete(ctx context.Context, key string) error {
	return RetryWithBackoff(ctx, func() error {
		return c.inner.Delete(ctx, key)
	})
}

func (c *retryCache) Close() error { return c.inner.Close() }

var _ Cache = (*retryCache)(nil)
