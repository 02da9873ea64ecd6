package registry

import (
	"sort"
	"sync"

	"github.com/Sternrassler/measured-metrics/pkg/options"
)

// DefaultName is the name of the shared registry used when none is configured.
const DefaultName = "default"

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*Registry)
)

// Shared returns the process-wide registry called name, creating it on first
// use. An empty name selects DefaultName. Options only apply on creation.
// Shutting a shared registry down removes it from the shared set, so the next
// call creates a fresh one.
func Shared(name string, opts ...Option) *Registry {
	if name == "" {
		name = DefaultName
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if r, ok := shared[name]; ok {
		return r
	}
	r := New(name, opts...)
	r.onShutdown = func() { removeShared(name, r) }
	shared[name] = r
	return r
}

// RemoveShared shuts down and forgets the shared registry called name.
// It reports whether such a registry existed.
func RemoveShared(name string) bool {
	if name == "" {
		name = DefaultName
	}

	sharedMu.Lock()
	r, ok := shared[name]
	sharedMu.Unlock()

	if !ok {
		return false
	}
	r.Shutdown()
	return true
}

// SharedNames returns the sorted names of the live shared registries.
func SharedNames() []string {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	names := make([]string, 0, len(shared))
	for name := range shared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func removeShared(name string, r *Registry) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared[name] == r {
		delete(shared, name)
	}
}

// Open returns the shared registry selected by opts. It fails with
// ErrDisabled when opts.Enabled is false.
func Open(opts options.Options, regOpts ...Option) (*Registry, error) {
	if !opts.Enabled {
		return nil, ErrDisabled
	}
	return Shared(opts.EffectiveRegistryName(), regOpts...), nil
}
