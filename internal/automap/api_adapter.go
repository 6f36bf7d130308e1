package automap

import (
	"context"

	"unshub/internal/api"
)

// Adapter exposes the AutoMapper through the api service locator.
type Adapter struct {
	mapper *AutoMapper
}

// NewAdapter creates an adapter for the given auto-mapper.
func NewAdapter(mapper *AutoMapper) *Adapter {
	return &Adapter{mapper: mapper}
}

// Register registers the adapter as the auto-mapper handler.
func (a *Adapter) Register() {
	api.RegisterAutoMapper(a)
}

func (a *Adapter) TryMapTopic(topic string) (string, bool) {
	return a.mapper.TryMapTopic(topic)
}

func (a *Adapter) ProcessTopic(ctx context.Context, topic string) error {
	return a.mapper.ProcessTopic(ctx, topic)
}

func (a *Adapter) InitializeCache(ctx context.Context) error {
	return a.mapper.InitializeCache(ctx)
}

func (a *Adapter) RefreshCache(ctx context.Context) error {
	return a.mapper.RefreshCache(ctx)
}

func (a *Adapter) Stats() api.AutoMapperStats {
	return a.mapper.Stats()
}
