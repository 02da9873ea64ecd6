package testutil

import (
	"errors"
	"time"
)

// ErrSupplier is returned by FailingGauge.
var ErrSupplier = errors.New("supplier failed")

// StubMeasured is a measured object with a fixed base name.
type StubMeasured string

// BaseName returns the stub's name.
func (s StubMeasured) BaseName() string { return string(s) }

// FailingGauge returns a gauge supplier that always fails.
func FailingGauge() func() (any, error) {
	return func() (any, error) {
		return nil, ErrSupplier
	}
}

// PanickingGauge returns a gauge supplier that panics.
func PanickingGauge() func() (any, error) {
	return func() (any, error) {
		panic("gauge exploded")
	}
}

// SlowGauge returns a gauge supplier that blocks for d before returning v.
func SlowGauge(d time.Duration, v any) func() (any, error) {
	return func() (any, error) {
		time.Sleep(d)
		return v, nil
	}
}

// BlockingGauge returns a gauge supplier that blocks until release is closed.
func BlockingGauge(release <-chan struct{}, v any) func() (any, error) {
	return func() (any, error) {
		<-release
		return v, nil
	}
}

// ConstGauge returns a gauge supplier with a fixed value.
func ConstGauge(v any) func() (any, error) {
	return func() (any, error) {
		return v, nil
	}
}
