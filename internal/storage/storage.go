// Package storage defines the repository and storage contracts the broker
// core consumes, plus the retryability classification for storage errors.
//
// Concrete implementations live in the memory and sqlite sub-packages and
// register themselves with the factory sub-package. Consumers depend on
// these interfaces rather than on a concrete provider so the backend can be
// selected by configuration (and swapped for doubles in tests).
package storage

import (
	"context"
	"time"

	"unshub/internal/api"
)

// RealtimeStorage keeps the most recent datapoint per topic. Writes for the
// same topic overwrite each other; reads return the latest value.
type RealtimeStorage interface {
	// Store upserts the datapoint as the latest value of its topic.
	Store(ctx context.Context, dp api.DataPoint) error

	// Latest returns the most recent datapoint for the topic, or ErrNotFound.
	Latest(ctx context.Context, topic string) (api.DataPoint, error)

	// Count returns the number of topics currently held.
	Count(ctx context.Context) (int64, error)
}

// HistoricalStorage is an append-only datapoint log ordered by timestamp.
type HistoricalStorage interface {
	// Store appends the datapoint.
	Store(ctx context.Context, dp api.DataPoint) error

	// Query returns the datapoints for the topic in [from, to], oldest first.
	Query(ctx context.Context, topic string, from, to time.Time) ([]api.DataPoint, error)
}

// BatchStorer is an optional capability of a datapoint store. The pipeline
// prefers it over per-item writes; implementations should make the batch
// atomic where the backend allows.
type BatchStorer interface {
	StoreBatch(ctx context.Context, dps []api.DataPoint) error
}

// Cleaner is an optional capability of realtime storage: drop data older
// than the cutoff. Returns the number of removed entries.
type Cleaner interface {
	CleanupOldData(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver is an optional capability of historical storage: move data older
// than the cutoff out of the hot table. Returns the number of archived rows.
type Archiver interface {
	Archive(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConnectionConfigurationRepository persists connection configurations.
// The descriptor-typed options document round-trips verbatim.
type ConnectionConfigurationRepository interface {
	// Save upserts the configuration by ID.
	Save(ctx context.Context, cfg api.ConnectionConfiguration) error

	// GetByID returns the configuration, or ErrNotFound.
	GetByID(ctx context.Context, id string) (api.ConnectionConfiguration, error)

	// GetAll returns every configuration; enabledOnly filters to IsEnabled.
	GetAll(ctx context.Context, enabledOnly bool) ([]api.ConnectionConfiguration, error)

	// GetAutoStart returns the enabled configurations with AutoStart set.
	GetAutoStart(ctx context.Context) ([]api.ConnectionConfiguration, error)

	// Delete removes the configuration. Deleting an unknown id returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// HierarchyConfigurationRepository persists hierarchy templates.
type HierarchyConfigurationRepository interface {
	// Save upserts the configuration by ID.
	Save(ctx context.Context, cfg api.HierarchyConfiguration) error

	// GetByID returns the configuration, or ErrNotFound.
	GetByID(ctx context.Context, id string) (api.HierarchyConfiguration, error)

	// GetAll returns every configuration.
	GetAll(ctx context.Context) ([]api.HierarchyConfiguration, error)

	// GetActive returns the single active configuration, or ErrNotFound.
	GetActive(ctx context.Context) (api.HierarchyConfiguration, error)

	// SetActive marks the given configuration active and every other one
	// inactive, atomically per call.
	SetActive(ctx context.Context, id string) error

	// Delete removes the configuration, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// EnsureDefault seeds the system-defined default template when the
	// repository is empty, and guarantees exactly one active configuration.
	// It is idempotent.
	EnsureDefault(ctx context.Context) error
}

// NSTreeInstanceRepository persists hierarchy-node instances placed in the
// user's tree.
type NSTreeInstanceRepository interface {
	// Save upserts the instance by ID.
	Save(ctx context.Context, inst api.NSTreeInstance) error

	// GetByID returns the instance, or ErrNotFound.
	GetByID(ctx context.Context, id string) (api.NSTreeInstance, error)

	// GetAll returns every instance.
	GetAll(ctx context.Context) ([]api.NSTreeInstance, error)

	// GetChildren returns the instances whose ParentInstanceID equals
	// parentID; an empty parentID selects the roots.
	GetChildren(ctx context.Context, parentID string) ([]api.NSTreeInstance, error)

	// Delete removes the instance, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// NamespaceConfigurationRepository persists user-defined namespaces.
type NamespaceConfigurationRepository interface {
	// Save upserts the namespace by ID.
	Save(ctx context.Context, cfg api.NamespaceConfiguration) error

	// GetByID returns the namespace, or ErrNotFound.
	GetByID(ctx context.Context, id string) (api.NamespaceConfiguration, error)

	// GetAll returns every namespace.
	GetAll(ctx context.Context) ([]api.NamespaceConfiguration, error)

	// GetChildren returns the namespaces whose ParentNamespaceID equals
	// parentID; an empty parentID selects namespaces anchored directly on a
	// hierarchy instance.
	GetChildren(ctx context.Context, parentID string) ([]api.NamespaceConfiguration, error)

	// Delete removes the namespace, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// TopicConfigurationRepository persists discovered topics. At most one
// configuration exists per topic string.
type TopicConfigurationRepository interface {
	// Save upserts the configuration by ID.
	Save(ctx context.Context, cfg api.TopicConfiguration) error

	// GetByID returns the configuration, or ErrNotFound.
	GetByID(ctx context.Context, id string) (api.TopicConfiguration, error)

	// GetByTopic returns the configuration for the raw topic string, or
	// ErrNotFound.
	GetByTopic(ctx context.Context, topic string) (api.TopicConfiguration, error)

	// GetAll returns every configuration.
	GetAll(ctx context.Context) ([]api.TopicConfiguration, error)

	// VerifiedTopics returns the topic strings with IsVerified set.
	VerifiedTopics(ctx context.Context) ([]string, error)

	// ListByNSPathPrefix returns the configurations whose NSPath equals the
	// prefix or starts with prefix+"/" (case-insensitive).
	ListByNSPathPrefix(ctx context.Context, prefix string) ([]api.TopicConfiguration, error)

	// Delete removes the configuration, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Provider bundles every store and repository of one backend.
type Provider interface {
	Realtime() RealtimeStorage
	Historical() HistoricalStorage
	ConnectionConfigurations() ConnectionConfigurationRepository
	HierarchyConfigurations() HierarchyConfigurationRepository
	NSTreeInstances() NSTreeInstanceRepository
	NamespaceConfigurations() NamespaceConfigurationRepository
	TopicConfigurations() TopicConfigurationRepository

	// Close releases the backend's resources.
	Close() error
}
