package querycache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samhoque/apikit/pkg/httpclient"
)

var (
	users = NewDomain("users")
	posts = NewDomain("posts")
)

// counter returns a fetch function that counts calls and returns value-N.
func counter() (FetchFunc, *int32) {
	var n int32
	return func(context.Context) (any, error) {
		v := atomic.AddInt32(&n, 1)
		return fmt.Sprintf("value-%d", v), nil
	}, &n
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithRetry(0, time.Millisecond)}, opts...)
	c := New(opts...)
	t.Cleanup(c.Stop)
	return c
}

func TestCache_QueryServesFreshEntries(t *testing.T) {
	c := newTestCache(t)
	fetch, calls := counter()
	ctx := context.Background()

	v, err := c.Query(ctx, users.Detail(1), fetch)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)

	v, err = c.Query(ctx, users.Detail(1), fetch)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	// nil fetch reuses the remembered one
	c.Invalidate(users.Detail(1))
	v, err = c.Query(ctx, users.Detail(1), nil)
	require.NoError(t, err)
	assert.Equal(t, "value-2", v)
}

func TestCache_LargeIDsAreDistinct(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	v, err := c.Query(ctx, users.Detail(int64(1<<53+1)), func(context.Context) (any, error) {
		return "user-9007199254740993", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-9007199254740993", v)

	fetch, calls := counter()
	v, err = c.Query(ctx, users.Detail(int64(1<<53)), fetch)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCache_ZeroStaleTimeAlwaysFetches(t *testing.T) {
	c := newTestCache(t, WithStaleTime(0))
	fetch, calls := counter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Query(ctx, users.All(), fetch)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestCache_Errors(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Query(ctx, Key{}, nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = c.Query(ctx, users.All(), nil)
	assert.ErrorIs(t, err, ErrNoFetcher)

	c.SetData(users.Detail(1), 42)
	_, err = Fetch[string](ctx, c, users.Detail(1), nil)
	assert.Error(t, err)

	n, err := Fetch[int](ctx, c, users.Detail(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestCache_Concurrency(t *testing.T) {
	c := newTestCache(t)
	release := make(chan struct{})
	var requestCount int32
	fetch := func(context.Context) (any, error) {
		atomic.AddInt32(&requestCount, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make(chan any, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Query(context.Background(), users.List(nil), fetch)
			if err != nil {
				t.Errorf("Concurrent query failed: %v", err)
				return
			}
			results <- v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		assert.Equal(t, "shared", v)
	}
	// Should only have made one request despite 100 queries
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestCache_WaiterCancellation(t *testing.T) {
	c := newTestCache(t)
	release := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		<-release
		return "done", nil
	}

	go func() { _, _ = c.Query(context.Background(), users.All(), fetch) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Query(ctx, users.All(), fetch)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		v, ok := c.Peek(users.All())
		return ok && v == "done"
	}, time.Second, 5*time.Millisecond)
}

func TestCache_Retry(t *testing.T) {
	errFlaky := errors.New("flaky")

	t.Run("retries until success", func(t *testing.T) {
		c := newTestCache(t, WithRetry(3, time.Millisecond))
		var attempts int32
		v, err := c.Query(context.Background(), users.All(), func(context.Context) (any, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return nil, errFlaky
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, int32(3), attempts)
	})

	t.Run("gives up after retries", func(t *testing.T) {
		c := newTestCache(t, WithRetry(2, time.Millisecond))
		var attempts int32
		_, err := c.Query(context.Background(), users.All(), func(context.Context) (any, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, errFlaky
		})
		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, int32(3), attempts)

		state, ok := c.State(users.All())
		require.True(t, ok)
		assert.True(t, state.Stale)
		assert.ErrorIs(t, state.Err, errFlaky)
	})

	t.Run("retry predicate", func(t *testing.T) {
		c := newTestCache(t, WithRetry(3, time.Millisecond), WithRetryIf(httpclient.IsRetryable))
		var attempts int32
		_, err := c.Query(context.Background(), users.Detail(5), func(context.Context) (any, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, &httpclient.Error{Message: "Not Found", Status: http.StatusNotFound}
		})
		apiErr, ok := httpclient.AsError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, int32(1), attempts)
	})
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fetch, _ := counter()

	keys := []Key{
		users.List(nil),
		users.List(map[string]any{"page": 2}),
		users.Detail(1),
		users.Detail(2),
		posts.Detail(1),
	}
	for _, k := range keys {
		_, err := c.Query(ctx, k, fetch)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Invalidate(users.Lists()))
	assert.Equal(t, 4, c.Invalidate(users.All()))
	assert.Equal(t, 0, c.Invalidate(Key{}))

	for _, k := range keys[:4] {
		state, ok := c.State(k)
		require.True(t, ok)
		assert.True(t, state.Stale, k.String())
	}
	state, ok := c.State(posts.Detail(1))
	require.True(t, ok)
	assert.False(t, state.Stale)

	// stale entries keep their data until refetched
	v, ok := c.Peek(users.Detail(1))
	assert.True(t, ok)
	assert.Equal(t, "value-3", v)

	assert.Equal(t, 5, c.InvalidateAll())
}

func TestCache_InvalidationDuringFetch(t *testing.T) {
	c := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.Query(context.Background(), users.Detail(1), func(context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()

	<-started
	c.SetData(users.Detail(1), "placeholder")
	c.Invalidate(users.All())
	close(release)
	<-done

	state, ok := c.State(users.Detail(1))
	require.True(t, ok)
	assert.Equal(t, "old", state.Data)
	assert.True(t, state.Stale)
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := newTestCache(t)
	c.SetData(users.Detail(1), "a")
	c.SetData(users.Detail(2), "b")
	c.SetData(posts.All(), "c")
	assert.Equal(t, 3, c.Len())

	assert.Equal(t, 2, c.Remove(users.All()))
	assert.Equal(t, 0, c.Remove(Key{}))
	_, ok := c.Peek(users.Detail(1))
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_RefetchStale(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fetch, calls := counter()

	_, err := c.Query(ctx, users.Detail(1), fetch)
	require.NoError(t, err)
	_, err = c.Query(ctx, posts.Detail(1), fetch)
	require.NoError(t, err)
	c.SetData(users.Detail(9), "no fetcher")

	c.Invalidate(users.All())
	n, err := c.RefetchStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	state, _ := c.State(users.Detail(1))
	assert.False(t, state.Stale)
	assert.Equal(t, "value-3", state.Data)
}

func TestCache_Watch(t *testing.T) {
	var updateCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&updateCount, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":"value-%d"}`, n)
	}))
	defer server.Close()

	client := httpclient.NewClient(server.URL)
	fetch := func(ctx context.Context) (any, error) {
		resp, err := client.Get(ctx, "/test", nil)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	}

	c := newTestCache(t)
	key := NewKey("test")
	err := c.Watch(context.Background(), WatchConfig{
		Key:      key,
		CronSpec: "@every 50ms",
	}, fetch)
	require.NoError(t, err)

	v, ok := c.Peek(key)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"value": "value-1"}, v)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&updateCount) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	c.Unwatch(key)
	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&updateCount)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&updateCount))
}

func TestCache_ConcurrentWatchSameKey(t *testing.T) {
	c := newTestCache(t)
	fetch, calls := counter()
	config := WatchConfig{Key: users.All(), CronSpec: "@every 20ms", SkipInitialFetch: true}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Watch(context.Background(), config, fetch))
		}()
	}
	wg.Wait()

	c.watchMu.Lock()
	assert.Len(t, c.tickers, 1)
	assert.Len(t, c.stopChans, 1)
	c.watchMu.Unlock()

	c.Unwatch(users.All())
	time.Sleep(50 * time.Millisecond)
	before := atomic.LoadInt32(calls)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(calls))
}

func TestCache_WatchConfig(t *testing.T) {
	fetch, calls := counter()
	tests := []struct {
		name        string
		config      WatchConfig
		fetch       FetchFunc
		expectError bool
		fetched     bool
	}{
		{
			name:    "cron spec",
			config:  WatchConfig{Key: NewKey("a"), CronSpec: "* * * * *"},
			fetch:   fetch,
			fetched: true,
		},
		{
			name:   "skip initial fetch",
			config: WatchConfig{Key: NewKey("b"), CronSpec: "@every 1h", SkipInitialFetch: true},
			fetch:  fetch,
		},
		{
			name:        "invalid cron spec",
			config:      WatchConfig{Key: NewKey("c"), CronSpec: "invalid"},
			fetch:       fetch,
			expectError: true,
			fetched:     true,
		},
		{
			name:        "invalid every duration",
			config:      WatchConfig{Key: NewKey("d"), CronSpec: "@every soon"},
			fetch:       fetch,
			expectError: true,
			fetched:     true,
		},
		{
			name:        "missing fetch",
			config:      WatchConfig{Key: NewKey("e"), CronSpec: "@every 1s"},
			expectError: true,
		},
		{
			name:        "empty key",
			config:      WatchConfig{CronSpec: "@every 1s"},
			fetch:       fetch,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)
			before := atomic.LoadInt32(calls)
			err := c.Watch(context.Background(), tt.config, tt.fetch)
			if (err != nil) != tt.expectError {
				t.Fatalf("Watch() error = %v, expectError = %v", err, tt.expectError)
			}
			assert.Equal(t, tt.fetched, atomic.LoadInt32(calls) > before)
		})
	}
}

func TestCache_ScheduleStaleRefetch(t *testing.T) {
	c := newTestCache(t)
	assert.NoError(t, c.ScheduleStaleRefetch("*/5 * * * *"))
	assert.Error(t, c.ScheduleStaleRefetch("not a spec"))
}

func TestCache_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestCache(t, WithMetrics(reg))
	ctx := context.Background()
	fetch, _ := counter()

	_, _ = c.Query(ctx, users.Detail(1), fetch)
	_, _ = c.Query(ctx, users.Detail(1), fetch)
	_, _ = c.Query(ctx, users.Detail(2), fetch)
	_, _ = c.Query(ctx, posts.All(), func(context.Context) (any, error) { return nil, errors.New("down") })
	c.Invalidate(users.All())

	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.hits.WithLabelValues("users")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.metrics.misses.WithLabelValues("users")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.fetchErrors.WithLabelValues("posts")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.metrics.invalidations))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.metrics.entries))
}
