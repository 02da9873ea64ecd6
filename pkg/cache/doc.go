// Package cache stores the latest rendered snapshot of a registry in Redis.
//
// Only the most recent snapshot per key is kept; entries expire after their
// TTL and are never accumulated into a history. Each entry carries an ETag
// derived from its content so HTTP readers can answer conditional requests.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Registry: "default", Scope: cache.ScopePrefix, Name: "app.http"}
//	entry := cache.NewEntry(snap, time.Minute)
//
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// nothing published yet
//	}
//
// # Conditional Reads
//
//	// Answers 304 when If-None-Match carries the entry's ETag
//	cache.WriteEntry(w, r, entry)
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - measured_cache_hits_total{layer="redis"} - Cache hits
//   - measured_cache_misses_total - Cache misses
//   - measured_cache_size_bytes{layer="redis"} - Bytes written or read
//   - measured_cache_not_modified_total - 304 responses served
//   - measured_cache_errors_total{operation} - Cache operation errors
package cache
