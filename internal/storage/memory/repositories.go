package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"unshub/internal/api"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
)

type connectionRepo struct {
	p *Provider
}

func (r *connectionRepo) Save(_ context.Context, cfg api.ConnectionConfiguration) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.connections[cfg.ID] = cfg
	return nil
}

func (r *connectionRepo) GetByID(_ context.Context, id string) (api.ConnectionConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cfg, ok := r.p.connections[id]
	if !ok {
		return api.ConnectionConfiguration{}, fmt.Errorf("connection configuration %q: %w", id, storage.ErrNotFound)
	}
	return cfg, nil
}

func (r *connectionRepo) GetAll(_ context.Context, enabledOnly bool) ([]api.ConnectionConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make([]api.ConnectionConfiguration, 0, len(r.p.connections))
	for _, cfg := range r.p.connections {
		if enabledOnly && !cfg.IsEnabled {
			continue
		}
		results = append(results, cfg)
	}
	sortConnections(results)
	return results, nil
}

func (r *connectionRepo) GetAutoStart(_ context.Context) ([]api.ConnectionConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var results []api.ConnectionConfiguration
	for _, cfg := range r.p.connections {
		if cfg.IsEnabled && cfg.AutoStart {
			results = append(results, cfg)
		}
	}
	sortConnections(results)
	return results, nil
}

func (r *connectionRepo) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.connections[id]; !ok {
		return fmt.Errorf("connection configuration %q: %w", id, storage.ErrNotFound)
	}
	delete(r.p.connections, id)
	return nil
}

func sortConnections(cfgs []api.ConnectionConfiguration) {
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].ID < cfgs[j].ID })
}

type hierarchyRepo struct {
	p *Provider
}

func (r *hierarchyRepo) Save(_ context.Context, cfg api.HierarchyConfiguration) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.hierarchies[cfg.ID] = cfg
	return nil
}

func (r *hierarchyRepo) GetByID(_ context.Context, id string) (api.HierarchyConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cfg, ok := r.p.hierarchies[id]
	if !ok {
		return api.HierarchyConfiguration{}, fmt.Errorf("hierarchy configuration %q: %w", id, storage.ErrNotFound)
	}
	return cfg, nil
}

func (r *hierarchyRepo) GetAll(_ context.Context) ([]api.HierarchyConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make([]api.HierarchyConfiguration, 0, len(r.p.hierarchies))
	for _, cfg := range r.p.hierarchies {
		results = append(results, cfg)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (r *hierarchyRepo) GetActive(_ context.Context) (api.HierarchyConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	for _, cfg := range r.p.hierarchies {
		if cfg.IsActive {
			return cfg, nil
		}
	}
	return api.HierarchyConfiguration{}, fmt.Errorf("active hierarchy configuration: %w", storage.ErrNotFound)
}

func (r *hierarchyRepo) SetActive(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.hierarchies[id]; !ok {
		return fmt.Errorf("hierarchy configuration %q: %w", id, storage.ErrNotFound)
	}
	for key, cfg := range r.p.hierarchies {
		cfg.IsActive = key == id
		r.p.hierarchies[key] = cfg
	}
	return nil
}

func (r *hierarchyRepo) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.hierarchies[id]; !ok {
		return fmt.Errorf("hierarchy configuration %q: %w", id, storage.ErrNotFound)
	}
	delete(r.p.hierarchies, id)
	return nil
}

func (r *hierarchyRepo) EnsureDefault(_ context.Context) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if len(r.p.hierarchies) == 0 {
		cfg := hierarchy.DefaultConfiguration()
		r.p.hierarchies[cfg.ID] = cfg
		return nil
	}

	for _, cfg := range r.p.hierarchies {
		if cfg.IsActive {
			return nil
		}
	}

	// No active configuration left behind, e.g. after a delete. Prefer the
	// system default, fall back to the lowest ID.
	activate := ""
	if _, ok := r.p.hierarchies[hierarchy.DefaultConfigurationID]; ok {
		activate = hierarchy.DefaultConfigurationID
	} else {
		for id := range r.p.hierarchies {
			if activate == "" || id < activate {
				activate = id
			}
		}
	}
	cfg := r.p.hierarchies[activate]
	cfg.IsActive = true
	r.p.hierarchies[activate] = cfg
	return nil
}

type instanceRepo struct {
	p *Provider
}

func (r *instanceRepo) Save(_ context.Context, inst api.NSTreeInstance) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.instances[inst.ID] = inst
	return nil
}

func (r *instanceRepo) GetByID(_ context.Context, id string) (api.NSTreeInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	inst, ok := r.p.instances[id]
	if !ok {
		return api.NSTreeInstance{}, fmt.Errorf("hierarchy instance %q: %w", id, storage.ErrNotFound)
	}
	return inst, nil
}

func (r *instanceRepo) GetAll(_ context.Context) ([]api.NSTreeInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make([]api.NSTreeInstance, 0, len(r.p.instances))
	for _, inst := range r.p.instances {
		results = append(results, inst)
	}
	sortInstances(results)
	return results, nil
}

func (r *instanceRepo) GetChildren(_ context.Context, parentID string) ([]api.NSTreeInstance, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var results []api.NSTreeInstance
	for _, inst := range r.p.instances {
		if inst.ParentInstanceID == parentID {
			results = append(results, inst)
		}
	}
	sortInstances(results)
	return results, nil
}

func (r *instanceRepo) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.instances[id]; !ok {
		return fmt.Errorf("hierarchy instance %q: %w", id, storage.ErrNotFound)
	}
	delete(r.p.instances, id)
	return nil
}

func sortInstances(insts []api.NSTreeInstance) {
	sort.Slice(insts, func(i, j int) bool {
		if insts[i].Name != insts[j].Name {
			return insts[i].Name < insts[j].Name
		}
		return insts[i].ID < insts[j].ID
	})
}

type namespaceRepo struct {
	p *Provider
}

func (r *namespaceRepo) Save(_ context.Context, cfg api.NamespaceConfiguration) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.namespaces[cfg.ID] = cfg
	return nil
}

func (r *namespaceRepo) GetByID(_ context.Context, id string) (api.NamespaceConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cfg, ok := r.p.namespaces[id]
	if !ok {
		return api.NamespaceConfiguration{}, fmt.Errorf("namespace %q: %w", id, storage.ErrNotFound)
	}
	return cfg, nil
}

func (r *namespaceRepo) GetAll(_ context.Context) ([]api.NamespaceConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make([]api.NamespaceConfiguration, 0, len(r.p.namespaces))
	for _, cfg := range r.p.namespaces {
		results = append(results, cfg)
	}
	sortNamespaces(results)
	return results, nil
}

func (r *namespaceRepo) GetChildren(_ context.Context, parentID string) ([]api.NamespaceConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var results []api.NamespaceConfiguration
	for _, cfg := range r.p.namespaces {
		if cfg.ParentNamespaceID == parentID {
			results = append(results, cfg)
		}
	}
	sortNamespaces(results)
	return results, nil
}

func (r *namespaceRepo) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if _, ok := r.p.namespaces[id]; !ok {
		return fmt.Errorf("namespace %q: %w", id, storage.ErrNotFound)
	}
	delete(r.p.namespaces, id)
	return nil
}

func sortNamespaces(cfgs []api.NamespaceConfiguration) {
	sort.Slice(cfgs, func(i, j int) bool {
		if cfgs[i].Name != cfgs[j].Name {
			return cfgs[i].Name < cfgs[j].Name
		}
		return cfgs[i].ID < cfgs[j].ID
	})
}

type topicRepo struct {
	p *Provider
}

func (r *topicRepo) Save(_ context.Context, cfg api.TopicConfiguration) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if ownerID, ok := r.p.topicIDs[cfg.Topic]; ok && ownerID != cfg.ID {
		return fmt.Errorf("topic %q already configured as %q", cfg.Topic, ownerID)
	}
	if prev, ok := r.p.topics[cfg.ID]; ok && prev.Topic != cfg.Topic {
		delete(r.p.topicIDs, prev.Topic)
	}
	r.p.topics[cfg.ID] = cfg
	r.p.topicIDs[cfg.Topic] = cfg.ID
	return nil
}

func (r *topicRepo) GetByID(_ context.Context, id string) (api.TopicConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	cfg, ok := r.p.topics[id]
	if !ok {
		return api.TopicConfiguration{}, fmt.Errorf("topic configuration %q: %w", id, storage.ErrNotFound)
	}
	return cfg, nil
}

func (r *topicRepo) GetByTopic(_ context.Context, topic string) (api.TopicConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	id, ok := r.p.topicIDs[topic]
	if !ok {
		return api.TopicConfiguration{}, fmt.Errorf("configuration for topic %q: %w", topic, storage.ErrNotFound)
	}
	return r.p.topics[id], nil
}

func (r *topicRepo) GetAll(_ context.Context) ([]api.TopicConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make([]api.TopicConfiguration, 0, len(r.p.topics))
	for _, cfg := range r.p.topics {
		results = append(results, cfg)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Topic < results[j].Topic })
	return results, nil
}

func (r *topicRepo) VerifiedTopics(_ context.Context) ([]string, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var topics []string
	for _, cfg := range r.p.topics {
		if cfg.IsVerified {
			topics = append(topics, cfg.Topic)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

func (r *topicRepo) ListByNSPathPrefix(_ context.Context, prefix string) ([]api.TopicConfiguration, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	want := strings.ToLower(prefix)
	var results []api.TopicConfiguration
	for _, cfg := range r.p.topics {
		ns := strings.ToLower(cfg.NSPath)
		if ns == want || strings.HasPrefix(ns, want+"/") {
			results = append(results, cfg)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Topic < results[j].Topic })
	return results, nil
}

func (r *topicRepo) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	cfg, ok := r.p.topics[id]
	if !ok {
		return fmt.Errorf("topic configuration %q: %w", id, storage.ErrNotFound)
	}
	delete(r.p.topics, id)
	delete(r.p.topicIDs, cfg.Topic)
	return nil
}
