package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"unshub/internal/api"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
)

func notFound(what, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, storage.ErrNotFound)
	}
	return err
}

func requireAffected(res sql.Result, what, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%s %q: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

type connectionRepo struct {
	db *sql.DB
}

const connectionColumns = `id, name, connection_type, connection_config, inputs, outputs,
	is_enabled, auto_start, created_at, modified_at, tags, metadata`

func (r *connectionRepo) Save(ctx context.Context, cfg api.ConnectionConfiguration) error {
	options := string(cfg.ConnectionConfig)
	if options == "" {
		options = "{}"
	}
	inputs, err := encodeJSON(cfg.Inputs)
	if err != nil {
		return err
	}
	outputs, err := encodeJSON(cfg.Outputs)
	if err != nil {
		return err
	}
	tags, err := encodeJSON(cfg.Tags)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(cfg.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO connection_configurations (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    connection_type = excluded.connection_type,
		    connection_config = excluded.connection_config,
		    inputs = excluded.inputs,
		    outputs = excluded.outputs,
		    is_enabled = excluded.is_enabled,
		    auto_start = excluded.auto_start,
		    modified_at = excluded.modified_at,
		    tags = excluded.tags,
		    metadata = excluded.metadata`,
		cfg.ID, cfg.Name, cfg.ConnectionType, options, inputs, outputs,
		cfg.IsEnabled, cfg.AutoStart, timeToNanos(cfg.CreatedAt), timeToNanos(cfg.ModifiedAt), tags, metadata)
	if err != nil {
		return fmt.Errorf("failed to save connection configuration: %w", err)
	}
	return nil
}

func scanConnection(scan func(...any) error) (api.ConnectionConfiguration, error) {
	var (
		cfg                         api.ConnectionConfiguration
		options, inputs, outputs    string
		tags, metadata              string
		createdNanos, modifiedNanos int64
	)
	err := scan(&cfg.ID, &cfg.Name, &cfg.ConnectionType, &options, &inputs, &outputs,
		&cfg.IsEnabled, &cfg.AutoStart, &createdNanos, &modifiedNanos, &tags, &metadata)
	if err != nil {
		return api.ConnectionConfiguration{}, err
	}
	cfg.ConnectionConfig = json.RawMessage(options)
	if err := decodeJSON(inputs, &cfg.Inputs); err != nil {
		return api.ConnectionConfiguration{}, err
	}
	if err := decodeJSON(outputs, &cfg.Outputs); err != nil {
		return api.ConnectionConfiguration{}, err
	}
	if err := decodeJSON(tags, &cfg.Tags); err != nil {
		return api.ConnectionConfiguration{}, err
	}
	if err := decodeJSON(metadata, &cfg.Metadata); err != nil {
		return api.ConnectionConfiguration{}, err
	}
	if len(cfg.Metadata) == 0 {
		cfg.Metadata = nil
	}
	cfg.CreatedAt = nanosToTime(createdNanos)
	cfg.ModifiedAt = nanosToTime(modifiedNanos)
	return cfg, nil
}

func (r *connectionRepo) GetByID(ctx context.Context, id string) (api.ConnectionConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connection_configurations WHERE id = ?`, id)
	cfg, err := scanConnection(row.Scan)
	if err != nil {
		return api.ConnectionConfiguration{}, notFound("connection configuration", id, err)
	}
	return cfg, nil
}

func (r *connectionRepo) queryConnections(ctx context.Context, query string, args ...any) ([]api.ConnectionConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connection configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.ConnectionConfiguration
	for rows.Next() {
		cfg, err := scanConnection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection configuration: %w", err)
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *connectionRepo) GetAll(ctx context.Context, enabledOnly bool) ([]api.ConnectionConfiguration, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_configurations ORDER BY id`
	if enabledOnly {
		query = `SELECT ` + connectionColumns + ` FROM connection_configurations WHERE is_enabled = 1 ORDER BY id`
	}
	return r.queryConnections(ctx, query)
}

func (r *connectionRepo) GetAutoStart(ctx context.Context) ([]api.ConnectionConfiguration, error) {
	return r.queryConnections(ctx,
		`SELECT `+connectionColumns+` FROM connection_configurations
		 WHERE is_enabled = 1 AND auto_start = 1 ORDER BY id`)
}

func (r *connectionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM connection_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection configuration: %w", err)
	}
	return requireAffected(res, "connection configuration", id)
}

type hierarchyRepo struct {
	db *sql.DB
}

const hierarchyColumns = `id, name, nodes, is_active, is_system_defined, created_at, modified_at`

func (r *hierarchyRepo) Save(ctx context.Context, cfg api.HierarchyConfiguration) error {
	nodes, err := encodeJSON(cfg.Nodes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO hierarchy_configurations (`+hierarchyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    nodes = excluded.nodes,
		    is_active = excluded.is_active,
		    is_system_defined = excluded.is_system_defined,
		    modified_at = excluded.modified_at`,
		cfg.ID, cfg.Name, nodes, cfg.IsActive, cfg.IsSystemDefined,
		timeToNanos(cfg.CreatedAt), timeToNanos(cfg.ModifiedAt))
	if err != nil {
		return fmt.Errorf("failed to save hierarchy configuration: %w", err)
	}
	return nil
}

func scanHierarchy(scan func(...any) error) (api.HierarchyConfiguration, error) {
	var (
		cfg                         api.HierarchyConfiguration
		nodes                       string
		createdNanos, modifiedNanos int64
	)
	err := scan(&cfg.ID, &cfg.Name, &nodes, &cfg.IsActive, &cfg.IsSystemDefined, &createdNanos, &modifiedNanos)
	if err != nil {
		return api.HierarchyConfiguration{}, err
	}
	if err := decodeJSON(nodes, &cfg.Nodes); err != nil {
		return api.HierarchyConfiguration{}, err
	}
	cfg.CreatedAt = nanosToTime(createdNanos)
	cfg.ModifiedAt = nanosToTime(modifiedNanos)
	return cfg, nil
}

func (r *hierarchyRepo) GetByID(ctx context.Context, id string) (api.HierarchyConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+hierarchyColumns+` FROM hierarchy_configurations WHERE id = ?`, id)
	cfg, err := scanHierarchy(row.Scan)
	if err != nil {
		return api.HierarchyConfiguration{}, notFound("hierarchy configuration", id, err)
	}
	return cfg, nil
}

func (r *hierarchyRepo) GetAll(ctx context.Context) ([]api.HierarchyConfiguration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+hierarchyColumns+` FROM hierarchy_configurations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hierarchy configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.HierarchyConfiguration
	for rows.Next() {
		cfg, err := scanHierarchy(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy configuration: %w", err)
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *hierarchyRepo) GetActive(ctx context.Context) (api.HierarchyConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+hierarchyColumns+` FROM hierarchy_configurations WHERE is_active = 1 LIMIT 1`)
	cfg, err := scanHierarchy(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return api.HierarchyConfiguration{}, fmt.Errorf("active hierarchy configuration: %w", storage.ErrNotFound)
	}
	if err != nil {
		return api.HierarchyConfiguration{}, err
	}
	return cfg, nil
}

func (r *hierarchyRepo) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE hierarchy_configurations SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to activate hierarchy configuration: %w", err)
	}
	if err := requireAffected(res, "hierarchy configuration", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE hierarchy_configurations SET is_active = 0 WHERE id <> ?`, id); err != nil {
		return fmt.Errorf("failed to deactivate hierarchy configurations: %w", err)
	}
	return tx.Commit()
}

func (r *hierarchyRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hierarchy_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hierarchy configuration: %w", err)
	}
	return requireAffected(res, "hierarchy configuration", id)
}

func (r *hierarchyRepo) EnsureDefault(ctx context.Context) error {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hierarchy_configurations`).Scan(&total); err != nil {
		return fmt.Errorf("failed to count hierarchy configurations: %w", err)
	}
	if total == 0 {
		return r.Save(ctx, hierarchy.DefaultConfiguration())
	}

	var active int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hierarchy_configurations WHERE is_active = 1`).Scan(&active); err != nil {
		return fmt.Errorf("failed to count active hierarchy configurations: %w", err)
	}
	if active > 0 {
		return nil
	}

	// No active configuration left behind, e.g. after a delete. Prefer the
	// system default, fall back to the lowest ID.
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM hierarchy_configurations WHERE id = ?`, hierarchy.DefaultConfigurationID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.QueryRowContext(ctx,
			`SELECT id FROM hierarchy_configurations ORDER BY id LIMIT 1`).Scan(&id)
	}
	if err != nil {
		return fmt.Errorf("failed to pick hierarchy configuration to activate: %w", err)
	}
	return r.SetActive(ctx, id)
}

type instanceRepo struct {
	db *sql.DB
}

const instanceColumns = `id, name, hierarchy_node_id, parent_instance_id, is_active, created_at, modified_at`

func (r *instanceRepo) Save(ctx context.Context, inst api.NSTreeInstance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ns_tree_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    hierarchy_node_id = excluded.hierarchy_node_id,
		    parent_instance_id = excluded.parent_instance_id,
		    is_active = excluded.is_active,
		    modified_at = excluded.modified_at`,
		inst.ID, inst.Name, inst.HierarchyNodeID, inst.ParentInstanceID, inst.IsActive,
		timeToNanos(inst.CreatedAt), timeToNanos(inst.ModifiedAt))
	if err != nil {
		return fmt.Errorf("failed to save hierarchy instance: %w", err)
	}
	return nil
}

func scanInstance(scan func(...any) error) (api.NSTreeInstance, error) {
	var (
		inst                        api.NSTreeInstance
		createdNanos, modifiedNanos int64
	)
	err := scan(&inst.ID, &inst.Name, &inst.HierarchyNodeID, &inst.ParentInstanceID,
		&inst.IsActive, &createdNanos, &modifiedNanos)
	if err != nil {
		return api.NSTreeInstance{}, err
	}
	inst.CreatedAt = nanosToTime(createdNanos)
	inst.ModifiedAt = nanosToTime(modifiedNanos)
	return inst, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (api.NSTreeInstance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM ns_tree_instances WHERE id = ?`, id)
	inst, err := scanInstance(row.Scan)
	if err != nil {
		return api.NSTreeInstance{}, notFound("hierarchy instance", id, err)
	}
	return inst, nil
}

func (r *instanceRepo) queryInstances(ctx context.Context, query string, args ...any) ([]api.NSTreeInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hierarchy instances: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.NSTreeInstance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hierarchy instance: %w", err)
		}
		results = append(results, inst)
	}
	return results, rows.Err()
}

func (r *instanceRepo) GetAll(ctx context.Context) ([]api.NSTreeInstance, error) {
	return r.queryInstances(ctx,
		`SELECT `+instanceColumns+` FROM ns_tree_instances ORDER BY name, id`)
}

func (r *instanceRepo) GetChildren(ctx context.Context, parentID string) ([]api.NSTreeInstance, error) {
	return r.queryInstances(ctx,
		`SELECT `+instanceColumns+` FROM ns_tree_instances WHERE parent_instance_id = ? ORDER BY name, id`,
		parentID)
}

func (r *instanceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ns_tree_instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hierarchy instance: %w", err)
	}
	return requireAffected(res, "hierarchy instance", id)
}

type namespaceRepo struct {
	db *sql.DB
}

const namespaceColumns = `id, name, parent_namespace_id, hierarchical_path, ns_path,
	is_active, created_by, created_at, modified_at, description, metadata`

func (r *namespaceRepo) Save(ctx context.Context, cfg api.NamespaceConfiguration) error {
	path, err := encodeJSON(cfg.HierarchicalPath.Levels)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(cfg.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO namespace_configurations (`+namespaceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    parent_namespace_id = excluded.parent_namespace_id,
		    hierarchical_path = excluded.hierarchical_path,
		    ns_path = excluded.ns_path,
		    is_active = excluded.is_active,
		    modified_at = excluded.modified_at,
		    description = excluded.description,
		    metadata = excluded.metadata`,
		cfg.ID, cfg.Name, cfg.ParentNamespaceID, path, cfg.NSPath,
		cfg.IsActive, cfg.CreatedBy, timeToNanos(cfg.CreatedAt), timeToNanos(cfg.ModifiedAt),
		cfg.Description, metadata)
	if err != nil {
		return fmt.Errorf("failed to save namespace: %w", err)
	}
	return nil
}

func scanNamespace(scan func(...any) error) (api.NamespaceConfiguration, error) {
	var (
		cfg                         api.NamespaceConfiguration
		path, metadata              string
		createdNanos, modifiedNanos int64
	)
	err := scan(&cfg.ID, &cfg.Name, &cfg.ParentNamespaceID, &path, &cfg.NSPath,
		&cfg.IsActive, &cfg.CreatedBy, &createdNanos, &modifiedNanos, &cfg.Description, &metadata)
	if err != nil {
		return api.NamespaceConfiguration{}, err
	}
	if err := decodeJSON(path, &cfg.HierarchicalPath.Levels); err != nil {
		return api.NamespaceConfiguration{}, err
	}
	if err := decodeJSON(metadata, &cfg.Metadata); err != nil {
		return api.NamespaceConfiguration{}, err
	}
	if len(cfg.Metadata) == 0 {
		cfg.Metadata = nil
	}
	cfg.CreatedAt = nanosToTime(createdNanos)
	cfg.ModifiedAt = nanosToTime(modifiedNanos)
	return cfg, nil
}

func (r *namespaceRepo) GetByID(ctx context.Context, id string) (api.NamespaceConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+namespaceColumns+` FROM namespace_configurations WHERE id = ?`, id)
	cfg, err := scanNamespace(row.Scan)
	if err != nil {
		return api.NamespaceConfiguration{}, notFound("namespace", id, err)
	}
	return cfg, nil
}

func (r *namespaceRepo) queryNamespaces(ctx context.Context, query string, args ...any) ([]api.NamespaceConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.NamespaceConfiguration
	for rows.Next() {
		cfg, err := scanNamespace(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *namespaceRepo) GetAll(ctx context.Context) ([]api.NamespaceConfiguration, error) {
	return r.queryNamespaces(ctx,
		`SELECT `+namespaceColumns+` FROM namespace_configurations ORDER BY name, id`)
}

func (r *namespaceRepo) GetChildren(ctx context.Context, parentID string) ([]api.NamespaceConfiguration, error) {
	return r.queryNamespaces(ctx,
		`SELECT `+namespaceColumns+` FROM namespace_configurations WHERE parent_namespace_id = ? ORDER BY name, id`,
		parentID)
}

func (r *namespaceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM namespace_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return requireAffected(res, "namespace", id)
}

type topicRepo struct {
	db *sql.DB
}

const topicColumns = `id, topic, path, ns_path, source_type, is_verified, is_active,
	created_at, modified_at, description, metadata`

func (r *topicRepo) Save(ctx context.Context, cfg api.TopicConfiguration) error {
	path, err := encodeJSON(cfg.Path.Levels)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(cfg.Metadata)
	if err != nil {
		return err
	}
	// The UNIQUE(topic) constraint still fires when a different id claims
	// the same topic string; only same-id upserts pass.
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO topic_configurations (`+topicColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    topic = excluded.topic,
		    path = excluded.path,
		    ns_path = excluded.ns_path,
		    source_type = excluded.source_type,
		    is_verified = excluded.is_verified,
		    is_active = excluded.is_active,
		    modified_at = excluded.modified_at,
		    description = excluded.description,
		    metadata = excluded.metadata`,
		cfg.ID, cfg.Topic, path, cfg.NSPath, cfg.SourceType, cfg.IsVerified, cfg.IsActive,
		timeToNanos(cfg.CreatedAt), timeToNanos(cfg.ModifiedAt), cfg.Description, metadata)
	if err != nil {
		return fmt.Errorf("failed to save topic configuration: %w", err)
	}
	return nil
}

func scanTopic(scan func(...any) error) (api.TopicConfiguration, error) {
	var (
		cfg                         api.TopicConfiguration
		path, metadata              string
		createdNanos, modifiedNanos int64
	)
	err := scan(&cfg.ID, &cfg.Topic, &path, &cfg.NSPath, &cfg.SourceType, &cfg.IsVerified,
		&cfg.IsActive, &createdNanos, &modifiedNanos, &cfg.Description, &metadata)
	if err != nil {
		return api.TopicConfiguration{}, err
	}
	if err := decodeJSON(path, &cfg.Path.Levels); err != nil {
		return api.TopicConfiguration{}, err
	}
	if err := decodeJSON(metadata, &cfg.Metadata); err != nil {
		return api.TopicConfiguration{}, err
	}
	if len(cfg.Metadata) == 0 {
		cfg.Metadata = nil
	}
	cfg.CreatedAt = nanosToTime(createdNanos)
	cfg.ModifiedAt = nanosToTime(modifiedNanos)
	return cfg, nil
}

func (r *topicRepo) GetByID(ctx context.Context, id string) (api.TopicConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topic_configurations WHERE id = ?`, id)
	cfg, err := scanTopic(row.Scan)
	if err != nil {
		return api.TopicConfiguration{}, notFound("topic configuration", id, err)
	}
	return cfg, nil
}

func (r *topicRepo) GetByTopic(ctx context.Context, topic string) (api.TopicConfiguration, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topic_configurations WHERE topic = ?`, topic)
	cfg, err := scanTopic(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return api.TopicConfiguration{}, fmt.Errorf("configuration for topic %q: %w", topic, storage.ErrNotFound)
	}
	if err != nil {
		return api.TopicConfiguration{}, err
	}
	return cfg, nil
}

func (r *topicRepo) queryTopics(ctx context.Context, query string, args ...any) ([]api.TopicConfiguration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topic configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []api.TopicConfiguration
	for rows.Next() {
		cfg, err := scanTopic(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic configuration: %w", err)
		}
		results = append(results, cfg)
	}
	return results, rows.Err()
}

func (r *topicRepo) GetAll(ctx context.Context) ([]api.TopicConfiguration, error) {
	return r.queryTopics(ctx,
		`SELECT `+topicColumns+` FROM topic_configurations ORDER BY topic`)
}

func (r *topicRepo) VerifiedTopics(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT topic FROM topic_configurations WHERE is_verified = 1 ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified topics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (r *topicRepo) ListByNSPathPrefix(ctx context.Context, prefix string) ([]api.TopicConfiguration, error) {
	return r.queryTopics(ctx,
		`SELECT `+topicColumns+` FROM topic_configurations
		 WHERE lower(ns_path) = lower(?) OR lower(ns_path) LIKE lower(?) || '/%'
		 ORDER BY topic`, prefix, prefix)
}

func (r *topicRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM topic_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete topic configuration: %w", err)
	}
	return requireAffected(res, "topic configuration", id)
}
