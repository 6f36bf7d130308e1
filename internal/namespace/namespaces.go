package namespace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"unshub/internal/api"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// CreateNamespace attaches a functional namespace at parentPath, either
// anchored directly to a hierarchy instance or nested under the namespace
// named by cfg.ParentNamespaceID. Two namespaces may carry the same name as
// long as they hang off different parents.
func (s *Service) CreateNamespace(ctx context.Context, parentPath api.HierarchicalPath, cfg api.NamespaceConfiguration) (*api.NamespaceConfiguration, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, api.NewValidationError("namespace", "name must not be empty")
	}
	if parentPath.IsEmpty() {
		return nil, api.NewValidationError(
			fmt.Sprintf("namespace %q", cfg.Name),
			"a namespace must be anchored to a hierarchical path")
	}

	parentNSPath := parentPath.String()
	var siblings []api.NamespaceConfiguration
	if cfg.ParentNamespaceID != "" {
		parent, err := s.namespaces.GetByID(ctx, cfg.ParentNamespaceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, api.NewNamespaceNotFoundError(cfg.ParentNamespaceID)
			}
			return nil, fmt.Errorf("failed to load parent namespace %s: %w", cfg.ParentNamespaceID, err)
		}
		if !parent.HierarchicalPath.Equals(parentPath) {
			return nil, api.NewValidationError(
				fmt.Sprintf("namespace %q", cfg.Name),
				fmt.Sprintf("parent namespace %q is anchored at %q, not %q",
					parent.Name, parent.HierarchicalPath.String(), parentPath.String()))
		}
		if parent.NSPath != "" {
			parentNSPath = parent.NSPath
		}
		siblings, err = s.namespaces.GetChildren(ctx, cfg.ParentNamespaceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load child namespaces of %s: %w", cfg.ParentNamespaceID, err)
		}
	} else {
		all, err := s.namespaces.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load namespaces: %w", err)
		}
		for _, ns := range all {
			if ns.ParentNamespaceID == "" && ns.HierarchicalPath.Key() == parentPath.Key() {
				siblings = append(siblings, ns)
			}
		}
	}

	scope := parentNSPath
	for _, sibling := range siblings {
		if strings.EqualFold(sibling.Name, cfg.Name) {
			return nil, api.NewDuplicateNamespaceError(cfg.Name, scope)
		}
	}
	if dup, err := s.duplicateExists(ctx, cfg, parentPath); err != nil {
		return nil, err
	} else if dup {
		return nil, api.NewDuplicateNamespaceError(cfg.Name, scope)
	}

	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.HierarchicalPath = parentPath
	cfg.NSPath = parentNSPath + "/" + cfg.Name
	cfg.IsActive = true
	cfg.CreatedAt = now
	cfg.ModifiedAt = now

	if err := s.namespaces.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to persist namespace %q: %w", cfg.Name, err)
	}
	s.publishChange(cfg.NSPath, api.NamespaceChangeAdded)
	logging.Info("NamespaceService", "Namespace created, Name=%s NSPath=%s", cfg.Name, cfg.NSPath)
	return &cfg, nil
}

// duplicateExists reports whether a namespace with the same name, the same
// parent namespace, and the same anchor path at every single level already
// exists. Paths that merely collapse to the same display string (differing
// level names) do not count as duplicates.
func (s *Service) duplicateExists(ctx context.Context, cfg api.NamespaceConfiguration, parentPath api.HierarchicalPath) (bool, error) {
	all, err := s.namespaces.GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load namespaces: %w", err)
	}
	for _, ns := range all {
		if !strings.EqualFold(ns.Name, cfg.Name) || ns.ParentNamespaceID != cfg.ParentNamespaceID {
			continue
		}
		if pathsEqualEveryLevel(ns.HierarchicalPath, parentPath) {
			return true, nil
		}
	}
	return false, nil
}

func pathsEqualEveryLevel(a, b api.HierarchicalPath) bool {
	if len(a.Levels) != len(b.Levels) {
		return false
	}
	for i := range a.Levels {
		if !strings.EqualFold(a.Levels[i].Level, b.Levels[i].Level) ||
			!strings.EqualFold(a.Levels[i].Value, b.Levels[i].Value) {
			return false
		}
	}
	return true
}

// CanDeleteNamespace reports what a DeleteNamespace call would touch: the
// number of descendant namespaces and the number of topics whose mapping
// would be cleared.
func (s *Service) CanDeleteNamespace(ctx context.Context, id string) (*api.NamespaceDeletionCheck, error) {
	target, err := s.namespaces.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNamespaceNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to load namespace %s: %w", id, err)
	}

	descendants, err := s.descendantNamespaces(ctx, id)
	if err != nil {
		return nil, err
	}

	mapped := 0
	if target.NSPath != "" {
		rows, err := s.topics.ListByNSPathPrefix(ctx, target.NSPath)
		if err != nil {
			return nil, fmt.Errorf("failed to count topics mapped below %s: %w", target.NSPath, err)
		}
		mapped = len(rows)
	}

	check := &api.NamespaceDeletionCheck{
		CanDelete:       true,
		ChildNamespaces: len(descendants),
		MappedTopics:    mapped,
	}
	if len(descendants) > 0 || mapped > 0 {
		check.Warning = fmt.Sprintf(
			"deleting %q removes %d descendant namespaces and unmaps %d topics",
			target.Name, len(descendants), mapped)
	}
	return check, nil
}

// DeleteNamespace removes a namespace and its entire subtree. Topics mapped
// to the target or any descendant lose their mapping but keep their data;
// the auto-mapper may re-map them after the structure change event.
func (s *Service) DeleteNamespace(ctx context.Context, id string) error {
	target, err := s.namespaces.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return api.NewNamespaceNotFoundError(id)
		}
		return fmt.Errorf("failed to load namespace %s: %w", id, err)
	}

	descendants, err := s.descendantNamespaces(ctx, id)
	if err != nil {
		return err
	}

	// Every descendant NSPath extends the target's, so one prefix scan
	// covers the whole subtree. An empty NSPath would match every topic
	// in the store and is skipped.
	if target.NSPath != "" {
		rows, err := s.topics.ListByNSPathPrefix(ctx, target.NSPath)
		if err != nil {
			return fmt.Errorf("failed to list topics mapped below %s: %w", target.NSPath, err)
		}
		now := time.Now().UTC()
		for _, row := range rows {
			row.NSPath = ""
			row.Path = api.HierarchicalPath{}
			row.ModifiedAt = now
			if err := s.topics.Save(ctx, row); err != nil {
				return fmt.Errorf("failed to unmap topic %s: %w", row.Topic, err)
			}
		}
		if len(rows) > 0 {
			logging.Info("NamespaceService", "Unmapped topics under deleted namespace, NSPath=%s Topics=%d", target.NSPath, len(rows))
		}
	}

	// Children go before parents so a failure partway leaves no orphaned
	// subtree roots.
	for i := len(descendants) - 1; i >= 0; i-- {
		if err := s.namespaces.Delete(ctx, descendants[i].ID); err != nil {
			return fmt.Errorf("failed to delete namespace %s: %w", descendants[i].ID, err)
		}
	}
	if err := s.namespaces.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", id, err)
	}

	s.publishChange(target.NSPath, api.NamespaceChangeDeleted)
	logging.Info("NamespaceService", "Namespace deleted, Name=%s NSPath=%s Descendants=%d", target.Name, target.NSPath, len(descendants))
	return nil
}

// descendantNamespaces collects the subtree below id in parent-before-child
// order, not including id itself.
func (s *Service) descendantNamespaces(ctx context.Context, id string) ([]api.NamespaceConfiguration, error) {
	var out []api.NamespaceConfiguration
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := s.namespaces.GetChildren(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to load child namespaces of %s: %w", current, err)
		}
		for _, child := range children {
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}
