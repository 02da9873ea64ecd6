package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/measured-metrics/pkg/cache"
	"github.com/Sternrassler/measured-metrics/pkg/httpmetrics"
	"github.com/Sternrassler/measured-metrics/pkg/logging"
	"github.com/Sternrassler/measured-metrics/pkg/metric"
	"github.com/Sternrassler/measured-metrics/pkg/metrics"
	"github.com/Sternrassler/measured-metrics/pkg/options"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
	"github.com/Sternrassler/measured-metrics/pkg/reporter"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:   logging.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty:  getEnvBool("LOG_PRETTY", false),
		Output:  os.Stderr,
		Service: "metrics-server",
	})

	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "")
	schedule := getEnv("REPORT_SCHEDULE", reporter.DefaultSchedule)

	base := options.DefaultOptions()
	base.Enabled = getEnvBool("METRICS_ENABLED", true)
	base.ConfigPath = getEnv("METRICS_CONFIG_PATH", "")
	base.JMXEnabled = getEnvBool("METRICS_JMX_ENABLED", true)
	base.JMXDomain = getEnv("METRICS_JMX_DOMAIN", options.DefaultJMXDomain)
	base.RegistryName = getEnv("METRICS_REGISTRY", options.DefaultRegistryName)
	base.BaseName = getEnv("METRICS_BASE_NAME", options.DefaultBaseName)

	opts, err := options.Load(base)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid metrics options")
	}

	reg, err := registry.Open(opts)
	if err != nil && !errors.Is(err, registry.ErrDisabled) {
		logger.Fatal().Err(err).Msg("Failed to open registry")
	}
	if reg == nil {
		logger.Warn().Msg("Metrics disabled, serving empty snapshots")
	}

	svc := snapshot.New(reg, snapshot.WithGaugeTimeout(opts.EffectiveGaugeTimeout()))
	if _, err := metrics.Expose(opts, svc, metrics.Registry); err != nil {
		logger.Fatal().Err(err).Msg("Failed to expose registry")
	}

	addr := ":" + port
	serverMetrics, err := httpmetrics.New(reg, opts.EffectiveBaseName(), addr, opts.MonitoredHTTPServerURIs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid monitored URIs")
	}
	registerRuntimeGauges(reg, opts.EffectiveBaseName())

	a := &app{
		registry: reg,
		svc:      svc,
		server:   serverMetrics,
		cacheKey: cache.Key{Registry: opts.EffectiveRegistryName(), Scope: cache.ScopeAll},
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewLogger("metrics-server"),
	}

	var sinks []reporter.Sink
	if getEnvBool("REPORT_LOG", false) {
		sinks = append(sinks, reporter.NewLogSink(logging.NewLogger("report"), zerolog.InfoLevel))
	}
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis", redisURL).Msg("Connected to Redis")

		a.cache = cache.NewManager(redisClient)
		sinks = append(sinks, reporter.NewRedisSink(a.cache, reporter.DefaultRedisSinkConfig(a.cacheKey), logging.NewLogger("redis-sink")))
	}

	var rep *reporter.Reporter
	if reg != nil && len(sinks) > 0 {
		rep = reporter.New(reporter.Config{Name: opts.EffectiveRegistryName(), Schedule: schedule}, reporter.ForRegistry(svc), sinks...)
		if err := rep.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start reporter")
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Str("registry", opts.EffectiveRegistryName()).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	if rep != nil {
		if err := rep.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Reporter shutdown incomplete")
		}
	}
	if reg != nil {
		serverMetrics.Close()
		reg.Shutdown()
	}
}

// registerRuntimeGauges publishes process gauges under <root>.process.
func registerRuntimeGauges(reg *registry.Registry, root string) {
	if reg == nil {
		return
	}
	started := time.Now()
	name := metric.Name(root, "process")

	_, _ = reg.Gauge(metric.Name(name, "uptime-seconds"), metric.FuncOf(func() float64 {
		return time.Since(started).Seconds()
	}))
	_, _ = reg.Gauge(metric.Name(name, "hostname"), func() (any, error) {
		return os.Hostname()
	})
	_, _ = reg.Gauge(metric.Name(name, "pid"), metric.FuncOf(os.Getpid))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
