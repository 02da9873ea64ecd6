package cache

import (
	"strings"
)

// KeyPrefix starts every key written by this package.
const KeyPrefix = "measured:snapshot"

// Scope tells which snapshot form a key holds.
type Scope string

const (
	// ScopeAll is a whole-registry snapshot.
	ScopeAll Scope = "all"

	// ScopePrefix is a snapshot of one name prefix, keyed by full names.
	ScopePrefix Scope = "prefix"

	// ScopeMeasured is a snapshot of one measured object, keyed by suffixes.
	ScopeMeasured Scope = "measured"
)

// Key identifies the latest snapshot of one registry scope.
type Key struct {
	// Registry is the registry name.
	Registry string

	// Scope is the snapshot form.
	Scope Scope

	// Name is the prefix or base name; empty for ScopeAll.
	Name string
}

// String generates a deterministic key string.
// Format: measured:snapshot:<registry>:<scope>[:<name>]
//
// Example:
//
//	measured:snapshot:default:prefix:app.http
func (k Key) String() string {
	parts := []string{KeyPrefix}

	registry := k.Registry
	if registry == "" {
		registry = "default"
	}
	parts = append(parts, registry)

	scope := k.Scope
	if scope == "" {
		scope = ScopeAll
	}
	parts = append(parts, string(scope))

	if scope != ScopeAll && k.Name != "" {
		parts = append(parts, k.Name)
	}

	return strings.Join(parts, ":")
}

// Pattern returns a SCAN pattern matching every key of registry.
func Pattern(registry string) string {
	if registry == "" {
		registry = "default"
	}
	return KeyPrefix + ":" + registry + ":*"
}
