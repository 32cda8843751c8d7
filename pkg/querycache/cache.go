package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEmptyKey is returned when a query is made with a zero Key.
	ErrEmptyKey = errors.New("querycache: empty key")

	// ErrNoFetcher is returned when a key has to be fetched but no fetch
	// function is known for it.
	ErrNoFetcher = errors.New("querycache: no fetch function for key")
)

// FetchFunc loads the value for one key.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key           Key
	data          any
	err           error
	updatedAt     time.Time
	invalidatedAt time.Time
	stale         bool
	fetch         FetchFunc
}

func (e *entry) fresh(staleTime time.Duration, now time.Time) bool {
	return !e.stale && e.err == nil && !e.updatedAt.IsZero() && now.Sub(e.updatedAt) < staleTime
}

// EntryState is a snapshot of one cache entry.
type EntryState struct {
	Key       Key
	Data      any
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

// Cache is the query cache. Create one with New and release it with Stop.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group

	staleTime  time.Duration
	retries    uint
	retryDelay time.Duration
	retryIf    func(error) bool
	hook       MutationHook
	logger     zerolog.Logger
	metrics    *metrics

	watchMu   sync.Mutex
	cron      *cron.Cron
	stopChans map[string]chan struct{}
	tickers   map[string]*time.Ticker
	cronIDs   map[string]cron.EntryID
}

// New creates a cache. The mutation hook is fixed for the lifetime of the
// cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		staleTime:  DefaultStaleTime,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		retryIf:    func(error) bool { return true },
		hook:       InvalidateOnSuccess,
		logger:     log.Logger,
		cron:       cron.New(),
		stopChans:  make(map[string]chan struct{}),
		tickers:    make(map[string]*time.Ticker),
		cronIDs:    make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query returns the cached value for key when it is fresh, otherwise it calls
// fetch. Concurrent queries for the same key share one fetch. When fetch is nil
// the function remembered from an earlier query or Watch is used.
func (c *Cache) Query(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	if key.IsZero() {
		return nil, ErrEmptyKey
	}

	c.mu.RLock()
	e, ok := c.entries[key.Hash()]
	if ok && e.fresh(c.staleTime, time.Now()) {
		data := e.data
		c.mu.RUnlock()
		c.metrics.hit(key)
		return data, nil
	}
	c.mu.RUnlock()

	c.metrics.miss(key)
	return c.fetch(ctx, key, fetch)
}

// Fetch is the typed form of Cache.Query.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var fn FetchFunc
	if fetch != nil {
		fn = func(ctx context.Context) (any, error) { return fetch(ctx) }
	}
	v, err := c.Query(ctx, key, fn)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: value cached under %s is %T, not %T", key, v, zero)
	}
	return t, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	h := key.Hash()
	if fetch == nil {
		c.mu.RLock()
		if e, ok := c.entries[h]; ok {
			fetch = e.fetch
		}
		c.mu.RUnlock()
		if fetch == nil {
			return nil, fmt.Errorf("%w %s", ErrNoFetcher, key)
		}
	}

	// The shared fetch must outlive any single waiter giving up.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(h, func() (any, error) {
		return c.runFetch(shared, key, fetch)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) runFetch(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	started := time.Now()
	var data any
	err := retry.Do(
		func() error {
			v, err := fetch(ctx)
			if err != nil {
				return err
			}
			data = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries+1),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(c.retryIf),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Err(err).Str("key", key.String()).Uint("attempt", n+1).Msg("retrying query")
		}),
	)

	c.mu.Lock()
	e, ok := c.entries[key.Hash()]
	if !ok {
		e = &entry{key: key}
		c.entries[key.Hash()] = e
	}
	e.fetch = fetch
	if err != nil {
		e.err = err
		e.stale = true
	} else {
		e.data = data
		e.err = nil
		e.updatedAt = time.Now()
		// An invalidation that landed while this fetch was in flight wins.
		e.stale = e.invalidatedAt.After(started)
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.metrics.setEntries(size)
	if err != nil {
		c.metrics.fetchError(key)
		c.logger.Debug().Err(err).Str("key", key.String()).Msg("query failed")
		return nil, err
	}
	return data, nil
}

// Peek returns the cached value for key without fetching, fresh or not.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.Hash()]
	if !ok || e.updatedAt.IsZero() {
		return nil, false
	}
	return e.data, true
}

// State returns a snapshot of the entry for key.
func (c *Cache) State(key Key) (EntryState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.Hash()]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{
		Key:       e.key,
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Stale:     e.stale || !e.fresh(c.staleTime, time.Now()),
	}, true
}

// SetData stores data under key as a fresh value.
func (c *Cache) SetData(key Key, data any) {
	if key.IsZero() {
		return
	}
	c.mu.Lock()
	e, ok := c.entries[key.Hash()]
	if !ok {
		e = &entry{key: key}
		c.entries[key.Hash()] = e
	}
	e.data = data
	e.err = nil
	e.stale = false
	e.updatedAt = time.Now()
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.setEntries(size)
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many were marked. Stale entries are refetched by the next
// Query. A zero prefix matches nothing; use InvalidateAll for that.
func (c *Cache) Invalidate(prefix Key) int {
	if prefix.IsZero() {
		return 0
	}
	return c.invalidate(func(k Key) bool { return k.HasPrefix(prefix) })
}

// InvalidateAll marks every entry stale.
func (c *Cache) InvalidateAll() int {
	return c.invalidate(func(Key) bool { return true })
}

func (c *Cache) invalidate(match func(Key) bool) int {
	now := time.Now()
	n := 0
	c.mu.Lock()
	for _, e := range c.entries {
		if match(e.key) {
			e.stale = true
			e.invalidatedAt = now
			n++
		}
	}
	c.mu.Unlock()
	c.metrics.invalidated(n)
	return n
}

// Remove drops every entry under prefix and returns how many were dropped.
// Watched keys keep their schedule and are recreated on the next refresh.
func (c *Cache) Remove(prefix Key) int {
	if prefix.IsZero() {
		return 0
	}
	n := 0
	c.mu.Lock()
	for h, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, h)
			n++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()
	c.metrics.setEntries(size)
	return n
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.metrics.setEntries(0)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RefetchStale refetches every stale entry that has a known fetch function.
// It returns the number of entries refreshed and the joined fetch errors.
func (c *Cache) RefetchStale(ctx context.Context) (int, error) {
	now := time.Now()
	var keys []Key
	c.mu.RLock()
	for _, e := range c.entries {
		if e.fetch != nil && !e.fresh(c.staleTime, now) {
			keys = append(keys, e.key)
		}
	}
	c.mu.RUnlock()

	var errs []error
	n := 0
	for _, k := range keys {
		if _, err := c.fetch(ctx, k, nil); err != nil {
			errs = append(errs, fmt.Errorf("refetch %s: %w", k, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// WatchConfig defines a key kept up to date on a schedule.
type WatchConfig struct {
	Key              Key
	CronSpec         string // Cron specification for refreshes
	SkipInitialFetch bool   // Skip the fetch on Watch
}

// Watch refreshes a key on a schedule. "@every" specs below one minute run on
// a ticker; everything else goes through the cron scheduler.
func (c *Cache) Watch(ctx context.Context, config WatchConfig, fetch FetchFunc) error {
	if config.Key.IsZero() {
		return ErrEmptyKey
	}
	if fetch == nil {
		return fmt.Errorf("%w %s", ErrNoFetcher, config.Key)
	}
	h := config.Key.Hash()

	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		e = &entry{key: config.Key, stale: true}
		c.entries[h] = e
	}
	e.fetch = fetch
	c.mu.Unlock()

	c.Unwatch(config.Key)

	// Only do initial fetch if not skipped
	if !config.SkipInitialFetch {
		if _, err := c.fetch(ctx, config.Key, fetch); err != nil {
			return fmt.Errorf("initial fetch failed: %w", err)
		}
	}

	stopChan := make(chan struct{})
	updateFunc := func() {
		select {
		case <-stopChan:
			return
		default:
			updateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := c.fetch(updateCtx, config.Key, fetch); err != nil {
				c.logger.Error().Err(err).Str("key", config.Key.String()).Msg("error refreshing watched query")
			}
		}
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	// A concurrent Watch on the same key may have registered since Unwatch.
	c.unwatchLocked(h)

	if strings.HasPrefix(config.CronSpec, "@every ") {
		duration, err := time.ParseDuration(strings.TrimPrefix(config.CronSpec, "@every "))
		if err != nil {
			return fmt.Errorf("invalid duration in @every: %w", err)
		}
		if duration < time.Minute {
			ticker := time.NewTicker(duration)
			c.tickers[h] = ticker
			c.stopChans[h] = stopChan
			go func() {
				for {
					select {
					case <-ticker.C:
						updateFunc()
					case <-stopChan:
						ticker.Stop()
						return
					}
				}
			}()
			return nil
		}
	}

	id, err := c.cron.AddFunc(config.CronSpec, updateFunc)
	if err != nil {
		return fmt.Errorf("failed to schedule refreshes: %w", err)
	}
	c.cronIDs[h] = id
	c.stopChans[h] = stopChan
	c.cron.Start()
	return nil
}

// ScheduleStaleRefetch runs RefetchStale on a cron schedule.
func (c *Cache) ScheduleStaleRefetch(spec string) error {
	_, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := c.RefetchStale(ctx); err != nil {
			c.logger.Error().Err(err).Int("refreshed", n).Msg("error refetching stale queries")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stale refetch: %w", err)
	}
	c.cron.Start()
	return nil
}

// Unwatch stops the scheduled refreshes of key. The cached value stays.
func (c *Cache) Unwatch(key Key) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.unwatchLocked(key.Hash())
}

// unwatchLocked stops the schedule for hash h. c.watchMu must be held.
func (c *Cache) unwatchLocked(h string) {
	if stopChan, ok := c.stopChans[h]; ok {
		close(stopChan)
		delete(c.stopChans, h)
	}
	if ticker, ok := c.tickers[h]; ok {
		ticker.Stop()
		delete(c.tickers, h)
	}
	if id, ok := c.cronIDs[h]; ok {
		c.cron.Remove(id)
		delete(c.cronIDs, h)
	}
}

// Stop ends every watch and the scheduler. Cached values stay readable.
func (c *Cache) Stop() {
	c.watchMu.Lock()
	for h, stopChan := range c.stopChans {
		close(stopChan)
		delete(c.stopChans, h)
	}
	for h, ticker := range c.tickers {
		ticker.Stop()
		delete(c.tickers, h)
	}
	for h, id := range c.cronIDs {
		c.cron.Remove(id)
		delete(c.cronIDs, h)
	}
	c.watchMu.Unlock()

	<-c.cron.Stop().Done()
}
