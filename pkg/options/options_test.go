package options

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/measured-metrics/pkg/match"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, opts.Enabled)
	assert.Equal(t, DefaultRegistryName, opts.EffectiveRegistryName())
	assert.Equal(t, DefaultBaseName, opts.EffectiveBaseName())
	assert.Equal(t, DefaultGaugeTimeout, opts.EffectiveGaugeTimeout())
	assert.NoError(t, opts.Validate())
}

func TestEffectiveDefaults(t *testing.T) {
	var opts Options

	assert.Equal(t, DefaultRegistryName, opts.EffectiveRegistryName())
	assert.Equal(t, DefaultBaseName, opts.EffectiveBaseName())
	assert.Equal(t, DefaultJMXDomain, opts.EffectiveJMXDomain())
	assert.Equal(t, DefaultGaugeTimeout, opts.EffectiveGaugeTimeout())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "metrics.yaml", `
enabled: true
jmxEnabled: true
jmxDomain: shop
registryName: orders
gaugeTimeout: 250ms
monitoredHttpServerURIs:
  - value: /health
  - type: regex
    value: "/orders/[0-9]+"
    alias: order
`)

	base := DefaultOptions()
	base.ConfigPath = path
	base.BaseName = "shop"

	got, err := Load(base)
	require.NoError(t, err)

	want := Options{
		Enabled:      true,
		ConfigPath:   path,
		JMXEnabled:   true,
		JMXDomain:    "shop",
		RegistryName: "orders",
		BaseName:     "shop",
		GaugeTimeout: 250 * time.Millisecond,
		MonitoredHTTPServerURIs: []match.Rule{
			{Type: match.Exact, Value: "/health"},
			{Type: match.Regex, Value: "/orders/[0-9]+", Alias: "order"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, base.Enabled, "input options must not be modified")
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "metrics.json", `{"enabled": true, "registryName": "json"}`)

	got, err := Load(Options{ConfigPath: path})
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "json", got.RegistryName)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name       string
		opts       func(t *testing.T) Options
		wantRegexp bool
	}{
		{
			name: "missing_file",
			opts: func(t *testing.T) Options {
				return Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}
			},
		},
		{
			name: "malformed_file",
			opts: func(t *testing.T) Options {
				return Options{ConfigPath: writeFile(t, "bad.yaml", "enabled: [")}
			},
		},
		{
			name: "invalid_regex_in_file",
			opts: func(t *testing.T) Options {
				return Options{ConfigPath: writeFile(t, "regex.yaml", `
monitoredHttpServerURIs:
  - type: regex
    value: "("
`)}
			},
			wantRegexp: true,
		},
		{
			name: "negative_timeout",
			opts: func(t *testing.T) Options {
				return Options{GaugeTimeout: -time.Second}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidOptions))
			assert.Equal(t, tt.wantRegexp, errors.Is(err, match.ErrInvalidRegexRule))
		})
	}
}

func TestHTTPServerMatcher(t *testing.T) {
	opts := Options{MonitoredHTTPServerURIs: []match.Rule{{Type: match.Exact, Value: "/a"}}}

	m, err := opts.HTTPServerMatcher()
	require.NoError(t, err)
	assert.True(t, m.Matches("/a"))
	assert.False(t, m.Matches("/b"))
}
