// Package options holds the process-wide metrics configuration consumed once
// when a registry is bootstrapped.
package options

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/measured-metrics/pkg/match"
)

const (
	// DefaultRegistryName selects the default shared registry.
	DefaultRegistryName = "default"

	// DefaultBaseName is the root under which host metrics are registered.
	DefaultBaseName = "app"

	// DefaultJMXDomain is the Prometheus namespace used when JMXDomain is empty.
	DefaultJMXDomain = "measured"

	// DefaultGaugeTimeout bounds a single gauge evaluation during snapshots.
	DefaultGaugeTimeout = time.Second
)

// ErrInvalidOptions is returned when options fail validation or cannot be loaded.
var ErrInvalidOptions = errors.New("invalid metrics options")

// Options configures metrics for a process. Treat a validated value as
// immutable; Load returns a new value rather than mutating its input.
type Options struct {
	// Enabled turns metrics collection on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ConfigPath points to a YAML or JSON file whose fields override these options.
	ConfigPath string `yaml:"configPath,omitempty" json:"configPath,omitempty"`

	// JMXEnabled exposes the registry to the management surface, which in
	// this library is a Prometheus collector.
	JMXEnabled bool `yaml:"jmxEnabled" json:"jmxEnabled"`

	// JMXDomain is the namespace used for the exposed metrics.
	JMXDomain string `yaml:"jmxDomain,omitempty" json:"jmxDomain,omitempty"`

	// RegistryName selects the shared registry. Empty means DefaultRegistryName.
	RegistryName string `yaml:"registryName,omitempty" json:"registryName,omitempty"`

	// BaseName is the root namespace for metrics registered by the host.
	BaseName string `yaml:"baseName,omitempty" json:"baseName,omitempty"`

	// GaugeTimeout bounds each gauge evaluation while rendering a snapshot.
	GaugeTimeout time.Duration `yaml:"gaugeTimeout,omitempty" json:"gaugeTimeout,omitempty"`

	// MonitoredHTTPServerURIs selects request URIs that get their own timer.
	MonitoredHTTPServerURIs []match.Rule `yaml:"monitoredHttpServerURIs,omitempty" json:"monitoredHttpServerURIs,omitempty"`
}

// DefaultOptions returns options with metrics disabled.
func DefaultOptions() Options {
	return Options{
		Enabled:      false,
		RegistryName: DefaultRegistryName,
		BaseName:     DefaultBaseName,
		GaugeTimeout: DefaultGaugeTimeout,
	}
}

// Load applies the file at base.ConfigPath over base and validates the
// result. Fields absent from the file keep their value from base. Without a
// ConfigPath Load only validates.
func Load(base Options) (Options, error) {
	opts := base.clone()

	if base.ConfigPath != "" {
		data, err := os.ReadFile(base.ConfigPath)
		if err != nil {
			return Options{}, fmt.Errorf("%w: read config file: %w", ErrInvalidOptions, err)
		}
		// JSON is valid YAML, so one decoder serves both formats.
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return Options{}, fmt.Errorf("%w: parse config file %s: %w", ErrInvalidOptions, base.ConfigPath, err)
		}
		opts.ConfigPath = base.ConfigPath
	}
	opts.normalize()

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the options. Invalid REGEX rules are reported as both
// ErrInvalidOptions and match.ErrInvalidRegexRule.
func (o Options) Validate() error {
	if o.GaugeTimeout < 0 {
		return fmt.Errorf("%w: gaugeTimeout must not be negative, got %s", ErrInvalidOptions, o.GaugeTimeout)
	}
	if _, err := match.Compile(o.MonitoredHTTPServerURIs); err != nil {
		return fmt.Errorf("%w: monitoredHttpServerURIs: %w", ErrInvalidOptions, err)
	}
	return nil
}

// EffectiveRegistryName returns RegistryName or DefaultRegistryName.
func (o Options) EffectiveRegistryName() string {
	if o.RegistryName == "" {
		return DefaultRegistryName
	}
	return o.RegistryName
}

// EffectiveBaseName returns BaseName or DefaultBaseName.
func (o Options) EffectiveBaseName() string {
	if o.BaseName == "" {
		return DefaultBaseName
	}
	return o.BaseName
}

// EffectiveJMXDomain returns JMXDomain or DefaultJMXDomain.
func (o Options) EffectiveJMXDomain() string {
	if o.JMXDomain == "" {
		return DefaultJMXDomain
	}
	return o.JMXDomain
}

// EffectiveGaugeTimeout returns GaugeTimeout or DefaultGaugeTimeout.
func (o Options) EffectiveGaugeTimeout() time.Duration {
	if o.GaugeTimeout <= 0 {
		return DefaultGaugeTimeout
	}
	return o.GaugeTimeout
}

// HTTPServerMatcher compiles MonitoredHTTPServerURIs.
func (o Options) HTTPServerMatcher() (*match.Matcher, error) {
	return match.Compile(o.MonitoredHTTPServerURIs)
}

func (o Options) clone() Options {
	c := o
	if o.MonitoredHTTPServerURIs != nil {
		c.MonitoredHTTPServerURIs = append([]match.Rule(nil), o.MonitoredHTTPServerURIs...)
	}
	return c
}

// normalize fills in the default rule type.
func (o *Options) normalize() {
	for i := range o.MonitoredHTTPServerURIs {
		if o.MonitoredHTTPServerURIs[i].Type == "" {
			o.MonitoredHTTPServerURIs[i].Type = match.Exact
		}
	}
}
