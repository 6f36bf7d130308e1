package namespace

import (
	"context"

	"unshub/internal/api"
)

// Adapter exposes the namespace Service through the api service locator.
type Adapter struct {
	service *Service
}

// NewAdapter creates an adapter for the given namespace service.
func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

// Register registers the adapter as the namespace structure handler.
func (a *Adapter) Register() {
	api.RegisterNamespaceStructure(a)
}

func (a *Adapter) GetNamespaceStructure() ([]*api.NamespaceTreeNode, error) {
	return a.service.GetNamespaceStructure()
}

func (a *Adapter) GetAvailableHierarchyNodes(parentNodeID string) ([]api.HierarchyNode, error) {
	return a.service.GetAvailableHierarchyNodes(parentNodeID)
}

func (a *Adapter) AddHierarchyInstance(ctx context.Context, hierarchyNodeID, name, parentInstanceID string) (*api.NSTreeInstance, error) {
	return a.service.AddHierarchyInstance(ctx, hierarchyNodeID, name, parentInstanceID)
}

func (a *Adapter) CreateNamespace(ctx context.Context, parentPath api.HierarchicalPath, cfg api.NamespaceConfiguration) (*api.NamespaceConfiguration, error) {
	return a.service.CreateNamespace(ctx, parentPath, cfg)
}

func (a *Adapter) DeleteInstance(ctx context.Context, id string) error {
	return a.service.DeleteInstance(ctx, id)
}

func (a *Adapter) CanDeleteNamespace(ctx context.Context, id string) (*api.NamespaceDeletionCheck, error) {
	return a.service.CanDeleteNamespace(ctx, id)
}

func (a *Adapter) DeleteNamespace(ctx context.Context, id string) error {
	return a.service.DeleteNamespace(ctx, id)
}

func (a *Adapter) GetActiveHierarchyConfiguration() (*api.HierarchyConfiguration, error) {
	return a.service.GetActiveHierarchyConfiguration()
}

func (a *Adapter) SaveHierarchyConfiguration(ctx context.Context, cfg api.HierarchyConfiguration) error {
	return a.service.SaveHierarchyConfiguration(ctx, cfg)
}

func (a *Adapter) SetActiveHierarchyConfiguration(ctx context.Context, id string) error {
	return a.service.SetActiveHierarchyConfiguration(ctx, id)
}
