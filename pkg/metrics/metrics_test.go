package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mtestutil "github.com/Sternrassler/measured-metrics/internal/testutil"
	"github.com/Sternrassler/measured-metrics/pkg/options"
	"github.com/Sternrassler/measured-metrics/pkg/registry"
	"github.com/Sternrassler/measured-metrics/pkg/snapshot"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"svc.requests", "svc_requests"},
		{"app.http.servers.0.0.0.0:8080.get-requests", "app_http_servers_0_0_0_0_8080_get_requests"},
		{"responses-2xx", "responses_2xx"},
		{"..a..b..", "a_b"},
		{"9lives", "_9lives"},
		{"get-requests./users/.*", "get_requests_users"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestCollector_Collect(t *testing.T) {
	reg := registry.New("test")
	c, _ := reg.Counter("svc.requests")
	c.Add(5)
	_, _ = reg.Gauge("svc.connections", mtestutil.ConstGauge(3))
	_, _ = reg.Gauge("svc.status", mtestutil.ConstGauge("up"))
	_, _ = reg.Gauge("svc.broken", mtestutil.FailingGauge())
	m, _ := reg.Meter("svc.hits")
	m.Mark(7)
	h, _ := reg.Histogram("svc.sizes")
	h.Update(10)
	h.Update(20)
	tm, _ := reg.Timer("svc.latency")
	tm.Update(500 * time.Millisecond)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(NewCollector(snapshot.New(reg), "measured"))

	families := gather(t, promReg)

	require.Contains(t, families, "measured_svc_requests")
	assert.Equal(t, 5.0, families["measured_svc_requests"].GetMetric()[0].GetGauge().GetValue())

	require.Contains(t, families, "measured_svc_connections")
	assert.Equal(t, 3.0, families["measured_svc_connections"].GetMetric()[0].GetGauge().GetValue())
	assert.NotContains(t, families, "measured_svc_status", "non-numeric gauges are skipped")
	assert.NotContains(t, families, "measured_svc_broken")

	require.Contains(t, families, "measured_svc_hits_total")
	assert.Equal(t, 7.0, families["measured_svc_hits_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Contains(t, families, "measured_svc_hits_rate_1m")
	assert.Contains(t, families, "measured_svc_hits_rate_15m")

	require.Contains(t, families, "measured_svc_sizes")
	sizes := families["measured_svc_sizes"].GetMetric()[0].GetSummary()
	assert.Equal(t, uint64(2), sizes.GetSampleCount())
	assert.Len(t, sizes.GetQuantile(), len(quantiles))

	require.Contains(t, families, "measured_svc_latency_seconds")
	latency := families["measured_svc_latency_seconds"].GetMetric()[0].GetSummary()
	assert.Equal(t, uint64(1), latency.GetSampleCount())
	assert.InDelta(t, 0.5, latency.GetSampleSum(), 1e-9)
}

func TestCollector_DuplicateNames(t *testing.T) {
	reg := registry.New("test")
	_, _ = reg.Counter("a.b")
	_, _ = reg.Counter("a_b")
	_, _ = reg.Meter("x")
	_, _ = reg.Counter("x.total")

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(NewCollector(snapshot.New(reg), "ns"))

	count, err := testutil.GatherAndCount(promReg)
	require.NoError(t, err, "collisions must not produce duplicate series")
	// a_b once, x_total + four x rates
	assert.Equal(t, 6, count)
}

func TestCollector_ClosedRegistry(t *testing.T) {
	reg := registry.New("test")
	_, _ = reg.Counter("a")
	reg.Shutdown()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(NewCollector(snapshot.New(reg), "ns"))

	count, err := testutil.GatherAndCount(promReg)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestExpose(t *testing.T) {
	reg := registry.New("test")
	c, _ := reg.Counter("svc.requests")
	c.Inc()
	svc := snapshot.New(reg)

	opts := options.DefaultOptions()
	promReg := prometheus.NewRegistry()

	collector, err := Expose(opts, svc, promReg)
	require.NoError(t, err)
	assert.Nil(t, collector, "nothing is exposed unless jmxEnabled")

	opts.JMXEnabled = true
	opts.JMXDomain = "shop.metrics"
	collector, err = Expose(opts, svc, promReg)
	require.NoError(t, err)
	require.NotNil(t, collector)

	families := gather(t, promReg)
	assert.Contains(t, families, "shop_metrics_svc_requests")
}

func TestExpose_Idempotent(t *testing.T) {
	reg := registry.New("test")
	c, _ := reg.Counter("svc.requests")
	c.Add(5)
	svc := snapshot.New(reg)

	opts := options.DefaultOptions()
	opts.JMXEnabled = true
	promReg := prometheus.NewRegistry()

	first, err := Expose(opts, svc, promReg)
	require.NoError(t, err)
	second, err := Expose(opts, svc, promReg)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = promReg.Gather()
	require.NoError(t, err, "a repeated Expose must not duplicate series")
	assert.Equal(t, float64(5), gather(t, promReg)["measured_svc_requests"].GetMetric()[0].GetGauge().GetValue())

	_, err = Expose(opts, snapshot.New(registry.New("other")), promReg)
	assert.ErrorIs(t, err, ErrAlreadyExposed)
}

func TestNewCollector_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewCollector should panic with nil service")
		}
	}()
	NewCollector(nil, "ns")
}
