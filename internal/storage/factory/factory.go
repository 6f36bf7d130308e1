// Package factory creates storage providers based on configuration.
//
// Backends register themselves from an init function, so importing a
// backend package (usually as a blank import in the wiring code) is what
// makes it available here.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"unshub/internal/storage"
)

// BackendFactory is a function that opens a storage provider at path.
type BackendFactory func(ctx context.Context, path string) (storage.Provider, error)

// backendRegistry holds registered backend factories.
var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory under name. Later
// registrations for the same name win; registration happens from package
// init functions and is not safe for concurrent use.
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// New opens a storage provider of the given backend type. An empty backend
// selects sqlite.
func New(ctx context.Context, backend, path string) (storage.Provider, error) {
	if backend == "" {
		backend = "sqlite"
	}
	if factory, ok := backendRegistry[backend]; ok {
		return factory(ctx, path)
	}
	return nil, fmt.Errorf("unknown storage backend: %s (registered: %s)", backend, registeredNames())
}

func registeredNames() string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
