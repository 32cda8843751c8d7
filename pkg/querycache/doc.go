// Package querycache caches the results of read calls under hierarchical keys
// and invalidates them declaratively after writes.
//
// Reads go through Query (or the typed Fetch), which serves fresh entries from
// memory, de-duplicates concurrent fetches of the same key and retries failed
// fetches. Writes go through Mutate with a Mutation that carries an Intent; once
// the write settles the cache's single mutation hook receives the outcome, and
// the default hook marks every entry under the intent's prefix stale when the
// write succeeded.
//
//	cache := querycache.New(querycache.WithStaleTime(time.Minute))
//	defer cache.Stop()
//
//	users := querycache.NewDomain("users")
//	list, err := querycache.Fetch(ctx, cache, users.List(filter), loadUsers)
//
//	created, err := querycache.Mutate(ctx, cache, querycache.Mutation[Payload, User]{
//		Name:   "users.create",
//		Fn:     createUser,
//		Intent: querycache.InvalidatePrefix(users.All()),
//	}, payload)
package querycache
