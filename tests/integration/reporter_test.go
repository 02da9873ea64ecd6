package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/measured-metrics/pkg/cache"
	"github.com/Sternrassler/measured-metrics/pkg/httpmetrics"
	"github.com/Sternrassler/measured-metrics/pkg/match"
	"github.com/Sternrassler/measured-metrics/pkg/measured"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
	"github.com/Sternrassler/measured-metrics/pkg/reporter"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

// TestReportToRedis tests the complete flow: measured object → snapshot → reporter → Redis → read back.
func TestReportToRedis(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	reg := registry.New("integration-report")
	t.Cleanup(func() { reg.Shutdown() })

	worker := measured.NewBase(reg, "app.worker")
	worker.Counter("jobs").Add(7)
	worker.Gauge(metric.FuncOf(func() string { return "idle" }), "state")

	manager := cache.NewManager(redisClient)
	key := cache.Key{Registry: reg.Name(), Scope: cache.ScopeMeasured, Name: worker.BaseName()}

	svc := snapshot.New(reg)
	rep := reporter.New(
		reporter.Config{Name: "integration"},
		reporter.ForMeasured(svc, worker),
		reporter.NewRedisSink(manager, reporter.DefaultRedisSinkConfig(key), zerolog.Nop()),
	)

	published, err := rep.Report(ctx)
	require.NoError(t, err)
	require.Len(t, published, 2)

	entry, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, cache.ComputeETag(published), entry.ETag)
	assert.Equal(t, json.Number("7"), entry.Snapshot["jobs"]["count"])
	assert.Equal(t, "idle", entry.Snapshot["state"]["value"])

	keys, err := manager.Keys(ctx, reg.Name())
	require.NoError(t, err)
	assert.Equal(t, []string{key.String()}, keys)
}

// TestUnchangedSnapshotExtendsTTL tests that republishing the same snapshot only refreshes expiry.
func TestUnchangedSnapshotExtendsTTL(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	reg := registry.New("integration-ttl")
	t.Cleanup(func() { reg.Shutdown() })

	counter, err := reg.Counter("app.cache.hits")
	require.NoError(t, err)
	counter.Add(3)

	manager := cache.NewManager(redisClient)
	key := cache.Key{Registry: reg.Name(), Scope: cache.ScopePrefix, Name: "app.cache"}

	cfg := reporter.DefaultRedisSinkConfig(key)
	cfg.TTL = 5 * time.Second
	rep := reporter.New(
		reporter.Config{Name: "integration-ttl"},
		reporter.ForPrefix(snapshot.New(reg), "app.cache"),
		reporter.NewRedisSink(manager, cfg, zerolog.Nop()),
	)

	_, err = rep.Report(ctx)
	require.NoError(t, err)
	first, err := manager.Get(ctx, key)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	_, err = rep.Report(ctx)
	require.NoError(t, err)
	second, err := manager.Get(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, first.ETag, second.ETag)
	assert.True(t, second.Expires.After(first.Expires), "expiry should move forward")
	assert.Equal(t, first.CapturedAt.Unix(), second.CapturedAt.Unix(), "entry should not be rewritten")

	counter.Inc()
	_, err = rep.Report(ctx)
	require.NoError(t, err)
	third, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, first.ETag, third.ETag)
	assert.Equal(t, json.Number("4"), third.Snapshot["app.cache.hits"]["count"])
}

// TestServerMetricsReported tests that middleware-recorded metrics reach Redis.
func TestServerMetricsReported(t *testing.T) {
	redisClient := setupRedis(t)
	ctx := context.Background()

	reg := registry.New("integration-http")
	t.Cleanup(func() { reg.Shutdown() })

	sm, err := httpmetrics.New(reg, "app", "127.0.0.1:8080", []match.Rule{{Type: match.Exact, Value: "/orders", Alias: "orders"}})
	require.NoError(t, err)

	handler := sm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	manager := cache.NewManager(redisClient)
	key := cache.Key{Registry: reg.Name(), Scope: cache.ScopeMeasured, Name: sm.BaseName()}
	rep := reporter.New(
		reporter.Config{Name: "integration-http"},
		reporter.ForMeasured(snapshot.New(reg), sm),
		reporter.NewRedisSink(manager, reporter.DefaultRedisSinkConfig(key), zerolog.Nop()),
	)

	_, err = rep.Report(ctx)
	require.NoError(t, err)

	entry, err := manager.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, json.Number("4"), entry.Snapshot["requests"]["count"])
	assert.Equal(t, json.Number("4"), entry.Snapshot["get-requests.orders"]["count"])
	assert.Equal(t, json.Number("4"), entry.Snapshot["responses-2xx"]["count"])
	assert.Equal(t, json.Number("0"), entry.Snapshot["open-requests"]["count"])
}
