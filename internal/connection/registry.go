package connection

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"unshub/internal/api"
)

// Registry holds the connection descriptors available to this process,
// keyed by their connection type. It is populated once at bootstrap and
// read-only afterwards; plugin hot-reload is out of scope.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]api.ConnectionDescriptor
}

// NewRegistry creates an empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]api.ConnectionDescriptor),
	}
}

// Register adds a descriptor under its connection type. Nil descriptors,
// empty connection types and duplicate registrations are rejected.
func (r *Registry) Register(d api.ConnectionDescriptor) error {
	if d == nil {
		return fmt.Errorf("cannot register nil descriptor")
	}
	connectionType := d.Type()
	if connectionType == "" {
		return fmt.Errorf("descriptor has empty connection type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[connectionType]; exists {
		return fmt.Errorf("descriptor %q already registered", connectionType)
	}
	r.descriptors[connectionType] = d
	return nil
}

// Get returns the descriptor for the given connection type, or an error
// wrapping api.ErrUnknownConnectionType when none is registered.
func (r *Registry) Get(connectionType string) (api.ConnectionDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[connectionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrUnknownConnectionType, connectionType)
	}
	return d, nil
}

// Types returns the registered connection types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.descriptors))
	for t := range r.descriptors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultConfiguration builds a fresh ConnectionConfiguration for the given
// connection type, carrying the descriptor's encoded default options. The
// caller is expected to adjust name, inputs and outputs before persisting.
func (r *Registry) DefaultConfiguration(connectionType string) (api.ConnectionConfiguration, error) {
	d, err := r.Get(connectionType)
	if err != nil {
		return api.ConnectionConfiguration{}, err
	}

	raw, err := d.EncodeConfig(d.DefaultConfig())
	if err != nil {
		return api.ConnectionConfiguration{}, fmt.Errorf("failed to encode default options for %s: %w", connectionType, err)
	}

	now := time.Now().UTC()
	return api.ConnectionConfiguration{
		ID:               uuid.NewString(),
		Name:             fmt.Sprintf("New %s connection", d.DisplayName()),
		ConnectionType:   connectionType,
		ConnectionConfig: raw,
		IsEnabled:        true,
		CreatedAt:        now,
		ModifiedAt:       now,
	}, nil
}
