// Package provider holds the base interface for pluggable backends and a
// registry that builds them lazily by name.
package provider

import "context"

// Provider is the base interface all backends implement.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend can take requests right now.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a provider. Configuration is captured by the closure.
type Factory[T Provider] func() (T, error)
