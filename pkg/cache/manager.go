package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrConflict indicates concurrent writers kept changing a key during Publish
	ErrConflict = errors.New("concurrent snapshot update")
)

// Manager stores snapshot entries in Redis.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Outcome reports what Publish did with an entry.
type Outcome string

const (
	// Stored means the entry replaced whatever was stored under the key.
	Stored Outcome = "stored"

	// Refreshed means the stored entry had the same ETag and only its expiry moved.
	Refreshed Outcome = "refreshed"
)

// maxPublishAttempts bounds optimistic retries when another writer races on a key.
const maxPublishAttempts = 3

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// Entries that are already expired are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Publish stores entry as the latest snapshot under key. When the stored
// entry carries the same ETag it is kept as is and only its expiry is moved
// to entry.Expires. The read and the write run in one WATCH transaction.
func (m *Manager) Publish(ctx context.Context, key Key, entry *Entry) (Outcome, error) {
	if entry == nil {
		return "", fmt.Errorf("cache entry cannot be nil")
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return "", fmt.Errorf("%w: already expired", ErrInvalidEntry)
	}

	cacheKey := key.String()
	var outcome Outcome

	txf := func(tx *redis.Tx) error {
		stored := entry
		outcome = Stored

		data, err := tx.Get(ctx, cacheKey).Bytes()
		switch {
		case err == nil:
			if existing, err := decodeEntry(data); err == nil && existing.ETag == entry.ETag {
				existing.Expires = entry.Expires
				stored = existing
				outcome = Refreshed
			}
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("redis get: %w", err)
		}

		data, err = json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal cache entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey, data, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxPublishAttempts; attempt++ {
		err := m.redis.Watch(ctx, txf, cacheKey)
		if err == nil {
			CachePublishes.WithLabelValues(string(outcome)).Inc()
			return outcome, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			CacheErrors.WithLabelValues("publish").Inc()
			return "", err
		}
	}

	CacheErrors.WithLabelValues("publish").Inc()
	return "", fmt.Errorf("publish %s: %w", cacheKey, ErrConflict)
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys lists the stored keys of registry.
func (m *Manager) Keys(ctx context.Context, registry string) ([]string, error) {
	var keys []string
	iter := m.redis.Scan(ctx, 0, Pattern(registry), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// decodeEntry unmarshals a stored entry. Numbers stay json.Number so int64
// counts survive exactly.
func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}
