package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// ConnectionStatus represents the lifecycle status of a data connection.
type ConnectionStatus string

const (
	ConnectionStatusUnknown      ConnectionStatus = "unknown"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusStopping     ConnectionStatus = "stopping"
	ConnectionStatusError        ConnectionStatus = "error"
)

// DataPoint is a single sample received from a source system.
// A DataPoint is immutable after it has been handed to the event bus.
type DataPoint struct {
	Topic     string            `json:"topic"`
	Value     interface{}       `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source,omitempty"`
	Quality   string            `json:"quality,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// QualityGood is the quality assigned to samples that arrive without one.
const QualityGood = "good"

// MetadataKeyConnectionID is the DataPoint metadata key carrying the id of
// the connection that received the sample.
const MetadataKeyConnectionID = "ConnectionId"

// PathLevel is one level/value pair of a HierarchicalPath,
// e.g. Level="Enterprise", Value="ACME".
type PathLevel struct {
	Level string `json:"level"`
	Value string `json:"value"`
}

// HierarchicalPath is an ordered mapping from hierarchy-level name to value.
// It is a value type: mutation always returns a copy.
type HierarchicalPath struct {
	Levels []PathLevel `json:"levels,omitempty"`
}

// IsEmpty reports whether the path has no levels set.
func (p HierarchicalPath) IsEmpty() bool {
	return len(p.Levels) == 0
}

// String renders the path as its level values joined by "/" in level order,
// preserving the original casing (e.g. "ACME/Dallas/Press/Line1").
func (p HierarchicalPath) String() string {
	values := make([]string, 0, len(p.Levels))
	for _, l := range p.Levels {
		values = append(values, l.Value)
	}
	return strings.Join(values, "/")
}

// Key returns the lowercased serialized path used for equality and lookups.
func (p HierarchicalPath) Key() string {
	return strings.ToLower(p.String())
}

// Value returns the value stored for the given level name, matched
// case-insensitively.
func (p HierarchicalPath) Value(level string) (string, bool) {
	for _, l := range p.Levels {
		if strings.EqualFold(l.Level, level) {
			return l.Value, true
		}
	}
	return "", false
}

// WithLevel returns a copy of the path with the given level set. An existing
// level of the same name (case-insensitive) is replaced in place; a new level
// is appended at the end, preserving level order.
func (p HierarchicalPath) WithLevel(level, value string) HierarchicalPath {
	levels := make([]PathLevel, len(p.Levels))
	copy(levels, p.Levels)
	for i, l := range levels {
		if strings.EqualFold(l.Level, level) {
			levels[i].Value = value
			return HierarchicalPath{Levels: levels}
		}
	}
	levels = append(levels, PathLevel{Level: level, Value: value})
	return HierarchicalPath{Levels: levels}
}

// Equals compares two paths by their lowercased serialized keys.
func (p HierarchicalPath) Equals(other HierarchicalPath) bool {
	return p.Key() == other.Key()
}

// TopicConfiguration is the system's record of a discovered source topic.
// At most one TopicConfiguration exists per Topic.
type TopicConfiguration struct {
	ID          string            `json:"id"`
	Topic       string            `json:"topic"`
	Path        HierarchicalPath  `json:"path,omitempty"`
	NSPath      string            `json:"nsPath,omitempty"` // empty means unassigned
	SourceType  string            `json:"sourceType,omitempty"`
	IsVerified  bool              `json:"isVerified"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	ModifiedAt  time.Time         `json:"modifiedAt"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HierarchyNode is one level of a user-definable hierarchy template
// (e.g. "WorkCenter"). Name is unique within a configuration; Order is
// unique within its parent.
type HierarchyNode struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Order               int      `json:"order"`
	IsRequired          bool     `json:"isRequired"`
	ParentNodeID        string   `json:"parentNodeId,omitempty"`
	AllowedChildNodeIDs []string `json:"allowedChildNodeIds,omitempty"`
	Description         string   `json:"description,omitempty"`
}

// HierarchyConfiguration is an ordered collection of HierarchyNodes.
// Exactly one configuration is active at any time; system-defined
// configurations are immutable.
type HierarchyConfiguration struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Nodes           []HierarchyNode `json:"nodes"`
	IsActive        bool            `json:"isActive"`
	IsSystemDefined bool            `json:"isSystemDefined"`
	CreatedAt       time.Time       `json:"createdAt"`
	ModifiedAt      time.Time       `json:"modifiedAt"`
}

// NSTreeInstance is an instance of a HierarchyNode placed in the user's tree
// (template = "WorkCenter", instance = "Line1"). Two sibling instances cannot
// share a name case-insensitively.
type NSTreeInstance struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	HierarchyNodeID  string    `json:"hierarchyNodeId"`
	ParentInstanceID string    `json:"parentInstanceId,omitempty"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	ModifiedAt       time.Time `json:"modifiedAt"`
}

// NamespaceConfiguration is a user-defined namespace folder beneath a
// hierarchy instance (e.g. "KPIs" under a WorkCenter). Name is unique
// (case-insensitive) within the same parent and the same hierarchical level.
type NamespaceConfiguration struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	ParentNamespaceID string            `json:"parentNamespaceId,omitempty"`
	HierarchicalPath  HierarchicalPath  `json:"hierarchicalPath,omitempty"`
	NSPath            string            `json:"nsPath,omitempty"` // full display path incl. namespace chain
	IsActive          bool              `json:"isActive"`
	CreatedBy         string            `json:"createdBy,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	ModifiedAt        time.Time         `json:"modifiedAt"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// InputConfig describes one input of a data connection (a subscription,
// a polled register block, a generated channel, ...).
type InputConfig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Topic     string            `json:"topic,omitempty"`
	IsEnabled bool              `json:"isEnabled"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// OutputConfig describes one output of a data connection.
type OutputConfig struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Topic     string            `json:"topic,omitempty"`
	IsEnabled bool              `json:"isEnabled"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// ConnectionConfiguration is the persisted configuration for one data
// connection. ConnectionConfig holds the descriptor-specific options as a
// JSON document discriminated by ConnectionType; descriptors decode and
// encode it at the boundary.
type ConnectionConfiguration struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ConnectionType   string            `json:"connectionType"`
	ConnectionConfig json.RawMessage   `json:"connectionConfig,omitempty"`
	Inputs           []InputConfig     `json:"inputs,omitempty"`
	Outputs          []OutputConfig    `json:"outputs,omitempty"`
	IsEnabled        bool              `json:"isEnabled"`
	AutoStart        bool              `json:"autoStart"`
	CreatedAt        time.Time         `json:"createdAt"`
	ModifiedAt       time.Time         `json:"modifiedAt"`
	Tags             []string          `json:"tags,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ConnectionSummary pairs a connection configuration with its live status.
type ConnectionSummary struct {
	Config ConnectionConfiguration `json:"config"`
	Status ConnectionStatus        `json:"status"`
}

// NamespaceNode is a namespace entry in the UNS tree, carrying nested
// namespaces keyed off ParentNamespaceID.
type NamespaceNode struct {
	Config   NamespaceConfiguration `json:"config"`
	Children []*NamespaceNode       `json:"children,omitempty"`
}

// NamespaceTreeNode is one hierarchy-instance node of the UNS tree returned
// by GetNamespaceStructure. Children are nested instances; Namespaces are
// the namespace folders anchored at this instance's path.
type NamespaceTreeNode struct {
	Instance   NSTreeInstance       `json:"instance"`
	Node       HierarchyNode        `json:"node"`
	Path       HierarchicalPath     `json:"path"`
	Children   []*NamespaceTreeNode `json:"children,omitempty"`
	Namespaces []*NamespaceNode     `json:"namespaces,omitempty"`
}

// NamespaceDeletionCheck is the result of a CanDeleteNamespace dry-run.
type NamespaceDeletionCheck struct {
	CanDelete       bool   `json:"canDelete"`
	ChildNamespaces int    `json:"childNamespaces"`
	MappedTopics    int    `json:"mappedTopics"`
	Warning         string `json:"warning,omitempty"`
}

// AutoMapperStats exposes the auto-mapper cache statistics. These are
// observability data, not part of the mapping contract.
type AutoMapperStats struct {
	CacheSize     int     `json:"cacheSize"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	HitRatio      float64 `json:"hitRatio"`
	Generation    uint64  `json:"generation"`
	PendingTopics int     `json:"pendingTopics"`
}

// PipelineStats exposes ingestion pipeline counters.
type PipelineStats struct {
	Ingested         int64 `json:"ingested"`
	Dropped          int64 `json:"dropped"`
	BatchesWritten   int64 `json:"batchesWritten"`
	BatchesRetried   int64 `json:"batchesRetried"`
	BatchesFailed    int64 `json:"batchesFailed"`
	TopicsDiscovered int64 `json:"topicsDiscovered"`
	QueueSize        int   `json:"queueSize"`
}

// NamespaceChangeType enumerates the change kinds carried by namespace
// structure change notifications.
type NamespaceChangeType string

const (
	NamespaceChangeAdded    NamespaceChangeType = "Added"
	NamespaceChangeModified NamespaceChangeType = "Modified"
	NamespaceChangeDeleted  NamespaceChangeType = "Deleted"
)

// ConnectionManagerHandler defines the connection lifecycle operations other
// components may call through the API layer.
type ConnectionManagerHandler interface {
	// CreateConnection builds and registers a live connection from cfg.
	// When saveToRepo is true the configuration is also upserted into the
	// repository. On any failure the partially constructed connection is
	// disposed and an error is returned.
	CreateConnection(ctx context.Context, cfg ConnectionConfiguration, saveToRepo bool) error

	// StartConnection starts the connection with the given id, creating it
	// from its persisted configuration first when necessary.
	StartConnection(ctx context.Context, id string) error

	// StopConnection stops the connection with the given id.
	StopConnection(ctx context.Context, id string) error

	// RemoveConnection unregisters, stops and disposes the connection and
	// deletes its persisted configuration.
	RemoveConnection(ctx context.Context, id string) error

	// SendData forwards a datapoint to one of the connection's outputs.
	SendData(ctx context.Context, id string, dp DataPoint, outputID string) error

	// UpdateConnection upserts the persisted configuration and replaces the
	// cached copy. Live reconfiguration requires a restart of the connection.
	UpdateConnection(ctx context.Context, cfg ConnectionConfiguration) error

	// GetStatus returns Unknown for an unknown id, Disconnected for a known
	// configuration without a live instance, and the live status otherwise.
	GetStatus(id string) ConnectionStatus

	// ListConnections returns every known configuration with its status.
	ListConnections() []ConnectionSummary

	// GetConnection returns a single connection summary.
	GetConnection(id string) (*ConnectionSummary, error)
}

// NamespaceStructureHandler defines the namespace structure operations other
// components may call through the API layer.
type NamespaceStructureHandler interface {
	// GetNamespaceStructure returns the UNS tree rooted at instances without
	// a parent.
	GetNamespaceStructure() ([]*NamespaceTreeNode, error)

	// GetAvailableHierarchyNodes returns the root nodes of the active
	// hierarchy configuration when parentNodeID is empty, otherwise the
	// allowed children of that node.
	GetAvailableHierarchyNodes(parentNodeID string) ([]HierarchyNode, error)

	// AddHierarchyInstance places a new instance of a hierarchy node in the
	// tree after validating sibling-name uniqueness.
	AddHierarchyInstance(ctx context.Context, hierarchyNodeID, name, parentInstanceID string) (*NSTreeInstance, error)

	// CreateNamespace creates a namespace folder at the given parent path
	// after validating the namespace uniqueness rules.
	CreateNamespace(ctx context.Context, parentPath HierarchicalPath, cfg NamespaceConfiguration) (*NamespaceConfiguration, error)

	// DeleteInstance removes a hierarchy instance that has no dependents.
	DeleteInstance(ctx context.Context, id string) error

	// CanDeleteNamespace reports what a DeleteNamespace call would touch.
	CanDeleteNamespace(ctx context.Context, id string) (*NamespaceDeletionCheck, error)

	// DeleteNamespace deletes the namespace and all descendant namespaces,
	// clearing the namespace assignment of every topic mapped below it.
	DeleteNamespace(ctx context.Context, id string) error

	// GetActiveHierarchyConfiguration returns the active hierarchy template.
	GetActiveHierarchyConfiguration() (*HierarchyConfiguration, error)

	// SaveHierarchyConfiguration validates and persists a hierarchy template.
	// System-defined configurations are immutable.
	SaveHierarchyConfiguration(ctx context.Context, cfg HierarchyConfiguration) error

	// SetActiveHierarchyConfiguration activates the given configuration and
	// deactivates every other one.
	SetActiveHierarchyConfiguration(ctx context.Context, id string) error
}

// AutoMapperHandler defines the topic auto-mapping operations other
// components may call through the API layer.
type AutoMapperHandler interface {
	// TryMapTopic resolves a raw topic against the current cache and returns
	// the longest matching namespace path, without side effects beyond the
	// hit/miss statistics.
	TryMapTopic(topic string) (string, bool)

	// ProcessTopic maps the topic and, on success, persists the mapping onto
	// its TopicConfiguration. Each topic is processed at most once per cache
	// generation.
	ProcessTopic(ctx context.Context, topic string) error

	// InitializeCache warms the cache from the namespace structure service.
	InitializeCache(ctx context.Context) error

	// RefreshCache rebuilds the cache and re-queues all pending topics.
	RefreshCache(ctx context.Context) error

	// Stats returns the current cache statistics.
	Stats() AutoMapperStats
}

// PipelineHandler exposes the ingestion pipeline to the API layer.
type PipelineHandler interface {
	// Enqueue offers a datapoint to the ingestion queue. It never blocks;
	// false means the queue was full and the datapoint was dropped.
	Enqueue(dp DataPoint) bool

	// Stats returns the current pipeline counters.
	Stats() PipelineStats
}
