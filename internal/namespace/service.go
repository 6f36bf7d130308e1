package namespace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"unshub/internal/api"
	"unshub/internal/events"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
)

// changedBy names this component in the structure change events it publishes.
const changedBy = "namespace-service"

// Service implements api.NamespaceStructureHandler on top of the hierarchy,
// instance, namespace and topic repositories. It holds no state of its own;
// every read reflects the repositories at call time.
type Service struct {
	hierarchies storage.HierarchyConfigurationRepository
	instances   storage.NSTreeInstanceRepository
	namespaces  storage.NamespaceConfigurationRepository
	topics      storage.TopicConfigurationRepository
	bus         *events.Bus
}

// New creates the namespace structure service.
func New(
	hierarchies storage.HierarchyConfigurationRepository,
	instances storage.NSTreeInstanceRepository,
	namespaces storage.NamespaceConfigurationRepository,
	topics storage.TopicConfigurationRepository,
	bus *events.Bus,
) *Service {
	return &Service{
		hierarchies: hierarchies,
		instances:   instances,
		namespaces:  namespaces,
		topics:      topics,
		bus:         bus,
	}
}

// GetNamespaceStructure builds the UNS tree rooted at parentless instances.
// Each node carries its instance, the hierarchy node it instantiates, the
// accumulated path, nested child instances, and the namespace folders whose
// path key equals the node's path key.
func (s *Service) GetNamespaceStructure() ([]*api.NamespaceTreeNode, error) {
	ctx := context.Background()

	active, err := s.hierarchies.GetActive(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load the active hierarchy configuration: %w", err)
	}

	instances, err := s.instances.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load hierarchy instances: %w", err)
	}
	namespaces, err := s.namespaces.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load namespaces: %w", err)
	}

	childInstances := make(map[string][]api.NSTreeInstance)
	for _, inst := range instances {
		childInstances[inst.ParentInstanceID] = append(childInstances[inst.ParentInstanceID], inst)
	}
	for _, siblings := range childInstances {
		sortInstances(siblings)
	}

	childNamespaces := make(map[string][]api.NamespaceConfiguration)
	for _, ns := range namespaces {
		childNamespaces[ns.ParentNamespaceID] = append(childNamespaces[ns.ParentNamespaceID], ns)
	}
	for _, siblings := range childNamespaces {
		sortNamespaces(siblings)
	}

	var build func(inst api.NSTreeInstance, parentPath api.HierarchicalPath) *api.NamespaceTreeNode
	build = func(inst api.NSTreeInstance, parentPath api.HierarchicalPath) *api.NamespaceTreeNode {
		node, _ := hierarchy.NodeByID(active, inst.HierarchyNodeID)
		path := parentPath.WithLevel(levelName(node), inst.Name)

		treeNode := &api.NamespaceTreeNode{
			Instance: inst,
			Node:     node,
			Path:     path,
		}
		for _, ns := range childNamespaces[""] {
			if ns.HierarchicalPath.Key() == path.Key() {
				treeNode.Namespaces = append(treeNode.Namespaces, buildNamespaceNode(ns, childNamespaces))
			}
		}
		for _, child := range childInstances[inst.ID] {
			treeNode.Children = append(treeNode.Children, build(child, path))
		}
		return treeNode
	}

	var roots []*api.NamespaceTreeNode
	for _, inst := range childInstances[""] {
		roots = append(roots, build(inst, api.HierarchicalPath{}))
	}
	return roots, nil
}

func buildNamespaceNode(cfg api.NamespaceConfiguration, children map[string][]api.NamespaceConfiguration) *api.NamespaceNode {
	node := &api.NamespaceNode{Config: cfg}
	for _, child := range children[cfg.ID] {
		node.Children = append(node.Children, buildNamespaceNode(child, children))
	}
	return node
}

// levelName returns the path level a node's instances are placed at. A zero
// node means the instance references a node missing from the active
// configuration; its instances still show up, under an unknown level.
func levelName(node api.HierarchyNode) string {
	if node.Name != "" {
		return node.Name
	}
	return "Unknown"
}

// pathForInstance walks the parent chain up to the root and assembles the
// instance's hierarchical path.
func (s *Service) pathForInstance(ctx context.Context, inst api.NSTreeInstance) (api.HierarchicalPath, error) {
	active, err := s.hierarchies.GetActive(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return api.HierarchicalPath{}, fmt.Errorf("failed to load the active hierarchy configuration: %w", err)
	}

	var chain []api.NSTreeInstance
	visited := map[string]bool{}
	current := inst
	for {
		if visited[current.ID] {
			return api.HierarchicalPath{}, fmt.Errorf("hierarchy instance %s is part of a parent cycle", inst.ID)
		}
		visited[current.ID] = true
		chain = append(chain, current)
		if current.ParentInstanceID == "" {
			break
		}
		parent, err := s.instances.GetByID(ctx, current.ParentInstanceID)
		if err != nil {
			return api.HierarchicalPath{}, fmt.Errorf("failed to resolve parent of instance %s: %w", current.ID, err)
		}
		current = parent
	}

	var path api.HierarchicalPath
	for i := len(chain) - 1; i >= 0; i-- {
		node, _ := hierarchy.NodeByID(active, chain[i].HierarchyNodeID)
		path = path.WithLevel(levelName(node), chain[i].Name)
	}
	return path, nil
}

func sortInstances(instances []api.NSTreeInstance) {
	sort.Slice(instances, func(i, j int) bool {
		a, b := strings.ToLower(instances[i].Name), strings.ToLower(instances[j].Name)
		if a != b {
			return a < b
		}
		return instances[i].ID < instances[j].ID
	})
}

func sortNamespaces(namespaces []api.NamespaceConfiguration) {
	sort.Slice(namespaces, func(i, j int) bool {
		a, b := strings.ToLower(namespaces[i].Name), strings.ToLower(namespaces[j].Name)
		if a != b {
			return a < b
		}
		return namespaces[i].ID < namespaces[j].ID
	})
}

func (s *Service) publishChange(path string, change api.NamespaceChangeType) {
	s.bus.Publish(events.NamespaceStructureChanged{
		ChangedNamespace: path,
		ChangeType:       change,
		ChangedBy:        changedBy,
	})
}
