package sqlite

const schema = `
-- Persisted connection configurations. connection_config carries the
-- descriptor-specific options document verbatim.
CREATE TABLE IF NOT EXISTS connection_configurations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    connection_type TEXT NOT NULL,
    connection_config TEXT NOT NULL DEFAULT '{}',
    inputs TEXT NOT NULL DEFAULT '[]',
    outputs TEXT NOT NULL DEFAULT '[]',
    is_enabled INTEGER NOT NULL DEFAULT 0,
    auto_start INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT '[]',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_connection_configurations_enabled ON connection_configurations(is_enabled);

-- Hierarchy templates. Nodes are stored as one JSON document per
-- configuration; templates are small and always read whole.
CREATE TABLE IF NOT EXISTS hierarchy_configurations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    nodes TEXT NOT NULL DEFAULT '[]',
    is_active INTEGER NOT NULL DEFAULT 0,
    is_system_defined INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0
);

-- Hierarchy node instances placed in the user's tree.
CREATE TABLE IF NOT EXISTS ns_tree_instances (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    hierarchy_node_id TEXT NOT NULL,
    parent_instance_id TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_ns_tree_instances_parent ON ns_tree_instances(parent_instance_id);

-- User-defined namespace folders.
CREATE TABLE IF NOT EXISTS namespace_configurations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent_namespace_id TEXT NOT NULL DEFAULT '',
    hierarchical_path TEXT NOT NULL DEFAULT '[]',
    ns_path TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_by TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_namespace_configurations_parent ON namespace_configurations(parent_namespace_id);

-- Discovered topics. At most one configuration per topic string.
CREATE TABLE IF NOT EXISTS topic_configurations (
    id TEXT PRIMARY KEY,
    topic TEXT NOT NULL UNIQUE,
    path TEXT NOT NULL DEFAULT '[]',
    ns_path TEXT NOT NULL DEFAULT '',
    source_type TEXT NOT NULL DEFAULT '',
    is_verified INTEGER NOT NULL DEFAULT 0,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT 0,
    modified_at INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_topic_configurations_ns_path ON topic_configurations(ns_path);
CREATE INDEX IF NOT EXISTS idx_topic_configurations_verified ON topic_configurations(is_verified);

-- Latest value per topic. Timestamps are nanoseconds since the Unix epoch.
CREATE TABLE IF NOT EXISTS realtime_store (
    topic TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT 'null',
    timestamp INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    quality TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_realtime_store_timestamp ON realtime_store(timestamp);

-- Append-only datapoint log.
CREATE TABLE IF NOT EXISTS historical_store (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT 'null',
    timestamp INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    quality TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_historical_store_topic_time ON historical_store(topic, timestamp);
CREATE INDEX IF NOT EXISTS idx_historical_store_timestamp ON historical_store(timestamp);

-- Rows moved out of historical_store by the archiver.
CREATE TABLE IF NOT EXISTS historical_archive (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT 'null',
    timestamp INTEGER NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    quality TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_historical_archive_topic_time ON historical_archive(topic, timestamp);
`
