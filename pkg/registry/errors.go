package registry

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/measured-metrics/pkg/metric"
)

// Common errors returned by the registry.
var (
	// ErrRegistryClosed is returned by every operation after Shutdown.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrKindMismatch is returned when a name is already registered with a different kind.
	ErrKindMismatch = errors.New("metric kind mismatch")

	// ErrInvalidName is returned for empty metric names.
	ErrInvalidName = errors.New("invalid metric name")

	// ErrNilMetric is returned by Register for a nil metric.
	ErrNilMetric = errors.New("nil metric")

	// ErrDisabled is returned by Open when metrics are disabled in the options.
	ErrDisabled = errors.New("metrics disabled")
)

// MetricError describes a failed operation on a named metric.
type MetricError struct {
	Name     string
	Kind     metric.Kind
	Existing metric.Kind

	// ExistingType is the Go type of the registered metric on a kind mismatch.
	ExistingType string

	Err error
}

// Error implements the error interface.
func (e *MetricError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("metric %q: %v: requested %s, registered as %s (%s)",
			e.Name, e.Err, e.Kind, e.Existing, e.ExistingType)
	}
	return fmt.Sprintf("metric %q: %v", e.Name, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MetricError) Unwrap() error {
	return e.Err
}
