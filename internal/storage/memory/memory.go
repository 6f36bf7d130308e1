// Package memory implements the storage contracts with in-process maps.
//
// Nothing survives a restart. The backend exists for tests and for running
// the broker without a database file; it registers itself with the factory
// under the name "memory".
package memory

import (
	"context"
	"sync"

	"unshub/internal/api"
	"unshub/internal/storage"
	"unshub/internal/storage/factory"
)

func init() {
	factory.RegisterBackend("memory", func(ctx context.Context, path string) (storage.Provider, error) {
		return New(), nil
	})
}

// Provider holds every store and repository behind one RWMutex. Values are
// copied on the way in and out, so callers never share map-backed state.
type Provider struct {
	mu sync.RWMutex

	latest  map[string]api.DataPoint   // topic -> most recent datapoint
	history map[string][]api.DataPoint // topic -> datapoints in insert order
	archive map[string][]api.DataPoint // topic -> rows moved out of history

	connections map[string]api.ConnectionConfiguration
	hierarchies map[string]api.HierarchyConfiguration
	instances   map[string]api.NSTreeInstance
	namespaces  map[string]api.NamespaceConfiguration
	topics      map[string]api.TopicConfiguration // id -> configuration
	topicIDs    map[string]string                 // topic string -> id
}

// New returns an empty in-memory provider.
func New() *Provider {
	return &Provider{
		latest:      make(map[string]api.DataPoint),
		history:     make(map[string][]api.DataPoint),
		archive:     make(map[string][]api.DataPoint),
		connections: make(map[string]api.ConnectionConfiguration),
		hierarchies: make(map[string]api.HierarchyConfiguration),
		instances:   make(map[string]api.NSTreeInstance),
		namespaces:  make(map[string]api.NamespaceConfiguration),
		topics:      make(map[string]api.TopicConfiguration),
		topicIDs:    make(map[string]string),
	}
}

func (p *Provider) Realtime() storage.RealtimeStorage     { return &realtimeStore{p: p} }
func (p *Provider) Historical() storage.HistoricalStorage { return &historicalStore{p: p} }

func (p *Provider) ConnectionConfigurations() storage.ConnectionConfigurationRepository {
	return &connectionRepo{p: p}
}

func (p *Provider) HierarchyConfigurations() storage.HierarchyConfigurationRepository {
	return &hierarchyRepo{p: p}
}

func (p *Provider) NSTreeInstances() storage.NSTreeInstanceRepository {
	return &instanceRepo{p: p}
}

func (p *Provider) NamespaceConfigurations() storage.NamespaceConfigurationRepository {
	return &namespaceRepo{p: p}
}

func (p *Provider) TopicConfigurations() storage.TopicConfigurationRepository {
	return &topicRepo{p: p}
}

// Close is a no-op for the in-memory backend.
func (p *Provider) Close() error { return nil }
