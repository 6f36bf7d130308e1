package connection

import (
	"context"

	"unshub/internal/api"
)

// Adapter exposes the Manager through the api service locator.
type Adapter struct {
	manager *Manager
}

// NewAdapter creates an adapter for the given manager.
func NewAdapter(manager *Manager) *Adapter {
	return &Adapter{manager: manager}
}

// Register registers the adapter as the connection manager handler.
func (a *Adapter) Register() {
	api.RegisterConnectionManager(a)
}

func (a *Adapter) CreateConnection(ctx context.Context, cfg api.ConnectionConfiguration, saveToRepo bool) error {
	return a.manager.CreateConnection(ctx, cfg, saveToRepo)
}

func (a *Adapter) StartConnection(ctx context.Context, id string) error {
	return a.manager.StartConnection(ctx, id)
}

func (a *Adapter) StopConnection(ctx context.Context, id string) error {
	return a.manager.StopConnection(ctx, id)
}

func (a *Adapter) RemoveConnection(ctx context.Context, id string) error {
	return a.manager.RemoveConnection(ctx, id)
}

func (a *Adapter) SendData(ctx context.Context, id string, dp api.DataPoint, outputID string) error {
	return a.manager.SendData(ctx, id, dp, outputID)
}

func (a *Adapter) UpdateConnection(ctx context.Context, cfg api.ConnectionConfiguration) error {
	return a.manager.UpdateConnection(ctx, cfg)
}

func (a *Adapter) GetStatus(id string) api.ConnectionStatus {
	return a.manager.GetStatus(id)
}

func (a *Adapter) ListConnections() []api.ConnectionSummary {
	return a.manager.ListConnections()
}

func (a *Adapter) GetConnection(id string) (*api.ConnectionSummary, error) {
	return a.manager.GetConnection(id)
}
