package namespace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unshub/internal/api"
	"unshub/internal/hierarchy"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// GetActiveHierarchyConfiguration returns the hierarchy template the tree
// is currently built against.
func (s *Service) GetActiveHierarchyConfiguration() (*api.HierarchyConfiguration, error) {
	cfg, err := s.hierarchies.GetActive(context.Background())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewHierarchyConfigurationNotFoundError("active")
		}
		return nil, fmt.Errorf("failed to load the active hierarchy configuration: %w", err)
	}
	return &cfg, nil
}

// SaveHierarchyConfiguration validates and upserts a hierarchy template.
// System-defined templates cannot be changed, and nodes that existing tree
// instances are built on cannot be removed.
func (s *Service) SaveHierarchyConfiguration(ctx context.Context, cfg api.HierarchyConfiguration) error {
	if err := hierarchy.Validate(cfg); err != nil {
		return err
	}

	var previous *api.HierarchyConfiguration
	if cfg.ID != "" {
		existing, err := s.hierarchies.GetByID(ctx, cfg.ID)
		switch {
		case err == nil:
			if existing.IsSystemDefined {
				return api.NewValidationError(
					fmt.Sprintf("hierarchy configuration %q", existing.Name),
					"system-defined hierarchy configurations are immutable")
			}
			previous = &existing
		case errors.Is(err, storage.ErrNotFound):
			// New configuration with a caller-chosen ID.
		default:
			return fmt.Errorf("failed to load hierarchy configuration %s: %w", cfg.ID, err)
		}
	}

	if previous != nil {
		if err := s.checkRemovedNodes(ctx, *previous, cfg); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if previous != nil {
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = previous.CreatedAt
		}
		// Editing the active configuration keeps it active. Deactivation
		// only happens by activating another configuration.
		if previous.IsActive {
			cfg.IsActive = true
		}
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.ModifiedAt = now

	if err := s.hierarchies.Save(ctx, cfg); err != nil {
		return fmt.Errorf("failed to persist hierarchy configuration %q: %w", cfg.Name, err)
	}
	if cfg.IsActive {
		if err := s.hierarchies.SetActive(ctx, cfg.ID); err != nil {
			return fmt.Errorf("failed to activate hierarchy configuration %s: %w", cfg.ID, err)
		}
		// A changed active template can alter level names on every path.
		s.publishChange("", api.NamespaceChangeModified)
	}
	logging.Info("NamespaceService", "Hierarchy configuration saved, Name=%s Active=%t", cfg.Name, cfg.IsActive)
	return nil
}

// checkRemovedNodes refuses a template update that drops nodes which tree
// instances still reference.
func (s *Service) checkRemovedNodes(ctx context.Context, old, next api.HierarchyConfiguration) error {
	kept := make(map[string]struct{}, len(next.Nodes))
	for _, node := range next.Nodes {
		kept[node.ID] = struct{}{}
	}
	var removed []string
	for _, node := range old.Nodes {
		if _, ok := kept[node.ID]; !ok {
			removed = append(removed, node.ID)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	instances, err := s.instances.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load hierarchy instances: %w", err)
	}
	removedSet := make(map[string]struct{}, len(removed))
	for _, id := range removed {
		removedSet[id] = struct{}{}
	}
	for _, inst := range instances {
		if _, gone := removedSet[inst.HierarchyNodeID]; gone {
			return api.NewValidationError(
				fmt.Sprintf("hierarchy configuration %q", next.Name),
				fmt.Sprintf("node %q cannot be removed while instance %q is built on it",
					inst.HierarchyNodeID, inst.Name))
		}
	}
	return nil
}

// SetActiveHierarchyConfiguration switches the tree to a different template.
func (s *Service) SetActiveHierarchyConfiguration(ctx context.Context, id string) error {
	if err := s.hierarchies.SetActive(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return api.NewHierarchyConfigurationNotFoundError(id)
		}
		return fmt.Errorf("failed to activate hierarchy configuration %s: %w", id, err)
	}
	s.publishChange("", api.NamespaceChangeModified)
	logging.Info("NamespaceService", "Active hierarchy configuration switched, ID=%s", id)
	return nil
}
