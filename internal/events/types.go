package events

import (
	"time"

	"unshub/internal/api"
)

// Auto-mapping failure reasons carried by TopicAutoMappingFailed.
const (
	// ReasonNoMatchingNamespace indicates no suffix of the topic matched a
	// namespace path in the current cache.
	ReasonNoMatchingNamespace = "NoMatchingNamespace"

	// ReasonStructureUnavailable indicates the namespace structure service
	// was not registered, so the cache is empty.
	ReasonStructureUnavailable = "StructureUnavailable"
)

// DataReceived is published by the connection manager for every datapoint a
// connection delivers through its data callback. The ingestion pipeline is
// the intended consumer.
type DataReceived struct {
	// ConnectionID identifies the connection that received the datapoint.
	ConnectionID string

	// DataPoint is the canonicalized sample (timestamp filled, ConnectionId
	// metadata injected, default quality applied).
	DataPoint api.DataPoint
}

// TopicDataUpdated is published by the ingestion pipeline when the latest
// value of a topic changes. Per flush the pipeline publishes at most a
// bounded number of these, folding the remainder into later flushes, so a
// burst on many topics cannot overload subscribers.
type TopicDataUpdated struct {
	// Topic is the raw source topic string.
	Topic string

	// DataPoint is the most recent sample for the topic within the batch.
	DataPoint api.DataPoint

	// Source names the component that published the update.
	Source string
}

// TopicAdded is published exactly once per process lifetime for every topic,
// after its TopicConfiguration row has been written. For any topic it is
// published before the first TopicDataUpdated delivered for that topic.
type TopicAdded struct {
	// Topic is the raw source topic string.
	Topic string

	// Path is the hierarchical path assigned so far (usually empty until the
	// auto-mapper resolves the topic).
	Path api.HierarchicalPath

	// Source names the connection or component that discovered the topic.
	Source string

	// CreatedAt is when the topic was first observed.
	CreatedAt time.Time
}

// BulkTopicsAdded is published in addition to the individual TopicAdded
// events when one discovery chunk carried more than one new topic. UI
// subscribers can use it to refresh once instead of per topic.
type BulkTopicsAdded struct {
	// Items lists the topics added in this chunk, in discovery order.
	Items []TopicAdded

	// Source names the component that published the batch.
	Source string
}

// NamespaceStructureChanged is published by the namespace structure service
// after a hierarchy instance or namespace has been persisted, modified or
// deleted. The auto-mapper refreshes its cache on every one of these.
type NamespaceStructureChanged struct {
	// ChangedNamespace is the display path of the changed node.
	ChangedNamespace string

	// ChangeType is Added, Modified or Deleted.
	ChangeType api.NamespaceChangeType

	// ChangedBy names the actor that made the change, when known.
	ChangedBy string
}

// TopicAutoMapped is published when the auto-mapper resolved a topic to a
// namespace path and persisted the mapping.
type TopicAutoMapped struct {
	// Topic is the raw source topic string.
	Topic string

	// MappedNamespace is the namespace path the topic was assigned to.
	MappedNamespace string
}

// TopicAutoMappingFailed is published when the auto-mapper could not resolve
// a topic against the current cache. The topic is remembered as pending and
// re-evaluated after the next cache refresh.
type TopicAutoMappingFailed struct {
	// Topic is the raw source topic string.
	Topic string

	// Reason is one of the Reason* constants.
	Reason string
}

// ConnectionStatusChanged is published by the connection manager whenever a
// connection reports a status transition.
type ConnectionStatusChanged struct {
	// ConnectionID identifies the connection.
	ConnectionID string

	// OldStatus is the status before the transition.
	OldStatus api.ConnectionStatus

	// NewStatus is the status after the transition.
	NewStatus api.ConnectionStatus
}
