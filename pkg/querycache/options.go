package querycache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	DefaultStaleTime  = time.Minute
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second
)

type Option func(*Cache)

// WithStaleTime sets how long a fetched value is served without refetching.
// Zero makes every Query fetch, still de-duplicated.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.staleTime = d
		}
	}
}

// WithRetry sets how many times a failed fetch is retried and the base delay
// of the exponential backoff between attempts.
func WithRetry(retries uint, delay time.Duration) Option {
	return func(c *Cache) {
		c.retries = retries
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithRetryIf limits retries to errors for which fn returns true.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Cache) {
		if fn != nil {
			c.retryIf = fn
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics registers cache metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.metrics = newMetrics(reg)
	}
}

// WithMutationHook replaces the default InvalidateOnSuccess hook.
func WithMutationHook(hook MutationHook) Option {
	return func(c *Cache) {
		c.hook = hook
	}
}
