package namespace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"unshub/internal/api"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// GetAvailableHierarchyNodes returns the root nodes of the active hierarchy
// configuration, or the allowed children of parentNodeID when given.
func (s *Service) GetAvailableHierarchyNodes(parentNodeID string) ([]api.HierarchyNode, error) {
	active, err := s.hierarchies.GetActive(context.Background())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewHierarchyConfigurationNotFoundError("active")
		}
		return nil, fmt.Errorf("failed to load the active hierarchy configuration: %w", err)
	}
	if parentNodeID == "" {
		return hierarchy.RootNodes(active), nil
	}
	if _, ok := hierarchy.NodeByID(active, parentNodeID); !ok {
		return nil, api.NewHierarchyNodeNotFoundError(parentNodeID)
	}
	return hierarchy.AllowedChildren(active, parentNodeID), nil
}

// AddHierarchyInstance places a new instance of a hierarchy node in the
// tree. The node must exist in the active configuration and be placeable
// under the parent (a root node at the top, an allowed child elsewhere).
// Sibling names are unique case-insensitively.
func (s *Service) AddHierarchyInstance(ctx context.Context, hierarchyNodeID, name, parentInstanceID string) (*api.NSTreeInstance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, api.NewValidationError("hierarchy instance", "name must not be empty")
	}

	active, err := s.hierarchies.GetActive(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewHierarchyConfigurationNotFoundError("active")
		}
		return nil, fmt.Errorf("failed to load the active hierarchy configuration: %w", err)
	}
	node, ok := hierarchy.NodeByID(active, hierarchyNodeID)
	if !ok {
		return nil, api.NewHierarchyNodeNotFoundError(hierarchyNodeID)
	}

	scope := "the tree root"
	if parentInstanceID == "" {
		if node.ParentNodeID != "" {
			return nil, api.NewValidationError(
				fmt.Sprintf("hierarchy instance %q", name),
				fmt.Sprintf("node %q cannot be placed at the tree root", node.Name))
		}
	} else {
		parent, err := s.instances.GetByID(ctx, parentInstanceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, api.NewHierarchyInstanceNotFoundError(parentInstanceID)
			}
			return nil, fmt.Errorf("failed to load parent instance %s: %w", parentInstanceID, err)
		}
		parentNode, ok := hierarchy.NodeByID(active, parent.HierarchyNodeID)
		if !ok || !allowsChild(parentNode, hierarchyNodeID) {
			return nil, api.NewValidationError(
				fmt.Sprintf("hierarchy instance %q", name),
				fmt.Sprintf("node %q is not an allowed child of %q", node.Name, parent.Name))
		}
		parentPath, err := s.pathForInstance(ctx, parent)
		if err != nil {
			return nil, err
		}
		scope = parentPath.String()
	}

	siblings, err := s.instances.GetChildren(ctx, parentInstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling instances: %w", err)
	}
	for _, sibling := range siblings {
		if strings.EqualFold(sibling.Name, name) {
			return nil, api.NewDuplicateHierarchyInstanceError(name, scope)
		}
	}

	now := time.Now().UTC()
	inst := api.NSTreeInstance{
		ID:               uuid.NewString(),
		Name:             name,
		HierarchyNodeID:  hierarchyNodeID,
		ParentInstanceID: parentInstanceID,
		IsActive:         true,
		CreatedAt:        now,
		ModifiedAt:       now,
	}
	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to persist hierarchy instance %q: %w", name, err)
	}

	path, err := s.pathForInstance(ctx, inst)
	if err != nil {
		// The instance is persisted; only the event path is degraded.
		path = api.HierarchicalPath{}.WithLevel(levelName(node), name)
	}
	s.publishChange(path.String(), api.NamespaceChangeAdded)
	logging.Info("NamespaceService", "Hierarchy instance added, Name=%s Path=%s", name, path.String())
	return &inst, nil
}

// DeleteInstance removes a hierarchy instance. It is refused while child
// instances, anchored namespaces, or topics mapped below it depend on it.
func (s *Service) DeleteInstance(ctx context.Context, id string) error {
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return api.NewHierarchyInstanceNotFoundError(id)
		}
		return fmt.Errorf("failed to load hierarchy instance %s: %w", id, err)
	}

	children, err := s.instances.GetChildren(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load child instances of %s: %w", id, err)
	}
	if len(children) > 0 {
		return fmt.Errorf("hierarchy instance %q still has %d child instances", inst.Name, len(children))
	}

	path, err := s.pathForInstance(ctx, inst)
	if err != nil {
		return err
	}

	anchored, err := s.namespacesAnchoredAt(ctx, path)
	if err != nil {
		return err
	}
	if anchored > 0 {
		return fmt.Errorf("hierarchy instance %q still anchors %d namespaces", inst.Name, anchored)
	}

	mapped, err := s.topics.ListByNSPathPrefix(ctx, path.String())
	if err != nil {
		return fmt.Errorf("failed to count topics mapped below %s: %w", path.String(), err)
	}
	if len(mapped) > 0 {
		return fmt.Errorf("hierarchy instance %q still has %d topics mapped below it", inst.Name, len(mapped))
	}

	if err := s.instances.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete hierarchy instance %s: %w", id, err)
	}
	s.publishChange(path.String(), api.NamespaceChangeDeleted)
	logging.Info("NamespaceService", "Hierarchy instance deleted, Name=%s Path=%s", inst.Name, path.String())
	return nil
}

func (s *Service) namespacesAnchoredAt(ctx context.Context, path api.HierarchicalPath) (int, error) {
	all, err := s.namespaces.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load namespaces: %w", err)
	}
	count := 0
	for _, ns := range all {
		if ns.HierarchicalPath.Key() == path.Key() {
			count++
		}
	}
	return count, nil
}

func allowsChild(parent api.HierarchyNode, childNodeID string) bool {
	for _, id := range parent.AllowedChildNodeIDs {
		if id == childNodeID {
			return true
		}
	}
	return false
}
