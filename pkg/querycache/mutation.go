package querycache

import (
	"context"
	"errors"
)

// ErrNoMutationFn is returned by Mutate for a mutation without Fn.
var ErrNoMutationFn = errors.New("querycache: mutation has no function")

type intentKind int

const (
	intentNone intentKind = iota
	intentInvalidate
)

// Intent states what a mutation does to the cache once it settles. The zero
// value does nothing.
type Intent struct {
	kind   intentKind
	prefix Key
}

// InvalidatePrefix declares that every entry under prefix becomes stale when
// the mutation succeeds. A zero prefix declares nothing.
func InvalidatePrefix(prefix Key) Intent {
	if prefix.IsZero() {
		return Intent{}
	}
	return Intent{kind: intentInvalidate, prefix: prefix}
}

// Prefix returns the key prefix to invalidate, if the intent names one.
func (i Intent) Prefix() (Key, bool) {
	if i.kind != intentInvalidate {
		return Key{}, false
	}
	return i.prefix, true
}

func (i Intent) String() string {
	if p, ok := i.Prefix(); ok {
		return "invalidate " + p.String()
	}
	return "none"
}

// Mutation describes a write. Fn performs it; Intent is handed to the cache's
// mutation hook once Fn returns.
type Mutation[V, R any] struct {
	Name   string
	Fn     func(ctx context.Context, vars V) (R, error)
	Intent Intent
}

// Settled is what the mutation hook sees after a write, successful or not.
type Settled struct {
	Name   string
	Intent Intent
	Err    error
}

// MutationHook reacts to settled mutations. A cache has exactly one.
type MutationHook func(ctx context.Context, c *Cache, s Settled)

// InvalidateOnSuccess is the default hook: it invalidates the intent's prefix
// when the mutation succeeded and does nothing otherwise.
func InvalidateOnSuccess(_ context.Context, c *Cache, s Settled) {
	if s.Err != nil {
		return
	}
	prefix, ok := s.Intent.Prefix()
	if !ok {
		return
	}
	n := c.Invalidate(prefix)
	c.logger.Debug().Str("mutation", s.Name).Str("prefix", prefix.String()).Int("entries", n).Msg("invalidated queries")
}

// Mutate runs m.Fn with vars and then dispatches the outcome to the cache's
// mutation hook.
func Mutate[V, R any](ctx context.Context, c *Cache, m Mutation[V, R], vars V) (R, error) {
	if m.Fn == nil {
		var zero R
		return zero, ErrNoMutationFn
	}
	result, err := m.Fn(ctx, vars)
	c.settle(ctx, Settled{Name: m.Name, Intent: m.Intent, Err: err})
	return result, err
}

// settle is the single dispatch point for settled mutations.
func (c *Cache) settle(ctx context.Context, s Settled) {
	if c.hook != nil {
		c.hook(ctx, c, s)
	}
}
