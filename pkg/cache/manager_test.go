package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

// setupTestRedis connects to a local Redis and skips when none is running.
// tests/integration covers the same paths against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	key := Key{Registry: "test", Scope: ScopePrefix, Name: "svc"}
	entry := NewEntry(snapshot.Snapshot{
		"svc.requests": metric.Document{"count": int64(5)},
		"svc.latency":  metric.Document{"durationRate": "milliseconds"},
	}, 5*time.Minute)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
	if got := retrieved.Snapshot["svc.requests"]["count"]; got != json.Number("5") {
		t.Errorf("count = %#v, want json.Number(5)", got)
	}
	if got := retrieved.Snapshot["svc.latency"]["durationRate"]; got != "milliseconds" {
		t.Errorf("durationRate = %v", got)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), Key{Registry: "absent"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_ExpiredEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Registry: "test"}

	entry := &Entry{Snapshot: snapshot.Snapshot{}, Expires: time.Now().Add(-time.Hour)}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Registry: "test"}

	if err := manager.Set(ctx, key, NewEntry(snapshot.Snapshot{}, 5*time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("Get after Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Publish(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()
	key := Key{Registry: "test", Scope: ScopeMeasured, Name: "svc"}

	snap := snapshot.Snapshot{"requests": metric.Document{"count": int64(1)}}
	first := NewEntry(snap, time.Minute)
	first.CapturedAt = first.CapturedAt.Add(-time.Hour)

	outcome, err := manager.Publish(ctx, key, first)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if outcome != Stored {
		t.Errorf("first Publish = %s, want %s", outcome, Stored)
	}

	// Same snapshot: the stored entry is kept and only its expiry moves
	again := NewEntry(snap, 10*time.Minute)
	outcome, err = manager.Publish(ctx, key, again)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if outcome != Refreshed {
		t.Errorf("unchanged Publish = %s, want %s", outcome, Refreshed)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Publish failed: %v", err)
	}
	if !retrieved.CapturedAt.Equal(first.CapturedAt) {
		t.Errorf("CapturedAt = %v, want the first capture %v", retrieved.CapturedAt, first.CapturedAt)
	}
	if diff := retrieved.Expires.Sub(again.Expires); diff < -time.Second || diff > time.Second {
		t.Errorf("Expires = %v, want %v", retrieved.Expires, again.Expires)
	}

	// Changed snapshot: replaced
	changed := NewEntry(snapshot.Snapshot{"requests": metric.Document{"count": int64(2)}}, time.Minute)
	outcome, err = manager.Publish(ctx, key, changed)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if outcome != Stored {
		t.Errorf("changed Publish = %s, want %s", outcome, Stored)
	}
	retrieved, err = manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Publish failed: %v", err)
	}
	if retrieved.ETag != changed.ETag {
		t.Errorf("ETag = %s, want %s", retrieved.ETag, changed.ETag)
	}
}

func TestManager_Publish_Rejected(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if _, err := manager.Publish(ctx, Key{Registry: "test"}, nil); err == nil {
		t.Error("Publish with nil entry should return error")
	}

	expired := &Entry{Snapshot: snapshot.Snapshot{}, Expires: time.Now().Add(-time.Second)}
	if _, err := manager.Publish(ctx, Key{Registry: "test"}, expired); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Publish with expired entry = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_Get_CorruptEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := Key{Registry: "test"}

	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}

	// Publish overwrites what it cannot decode
	outcome, err := manager.Publish(ctx, key, NewEntry(snapshot.Snapshot{}, time.Minute))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if outcome != Stored {
		t.Errorf("Publish over corrupt entry = %s, want %s", outcome, Stored)
	}
}

func TestManager_Keys(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	for _, key := range []Key{
		{Registry: "test", Scope: ScopeAll},
		{Registry: "test", Scope: ScopePrefix, Name: "svc"},
		{Registry: "other", Scope: ScopeAll},
	} {
		if err := manager.Set(ctx, key, NewEntry(snapshot.Snapshot{}, time.Minute)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := manager.Keys(ctx, "test")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 keys", keys)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	if err := manager.Set(context.Background(), Key{}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
