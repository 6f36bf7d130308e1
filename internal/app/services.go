package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"unshub/internal/api"
	"unshub/internal/automap"
	"unshub/internal/config"
	"unshub/internal/connection"
	"unshub/internal/connection/simulator"
	"unshub/internal/events"
	"unshub/internal/namespace"
	"unshub/internal/pipeline"
	"unshub/internal/services"
	"unshub/internal/storage"
	"unshub/internal/storage/factory"
	"unshub/pkg/logging"

	// Storage backends register themselves with the factory.
	_ "unshub/internal/storage/memory"
	_ "unshub/internal/storage/sqlite"
)

// Services holds the wired broker components for the run phase.
type Services struct {
	// Registry starts and stops the long-running services in order.
	Registry *services.Registry

	// Provider is the storage provider backing every repository.
	Provider storage.Provider

	// Bus is the in-process event bus the components communicate over.
	Bus *events.Bus

	// Audit logs every bus event; detached at shutdown.
	Audit *events.AuditLogger
}

// InitializeServices opens the storage provider and wires every broker
// component. Adapters register with the api service locator as they are
// built, so by the time a service starts, everything it resolves through
// the locator is already in place.
func InitializeServices(ctx context.Context, brokerCfg config.Config) (*Services, error) {
	provider, err := factory.New(ctx, brokerCfg.Storage.Provider, brokerCfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", brokerCfg.Storage.Provider, err)
	}

	if err := provider.HierarchyConfigurations().EnsureDefault(ctx); err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to seed the default hierarchy configuration: %w", err)
	}
	if err := seedConnections(ctx, provider.ConnectionConfigurations(), brokerCfg.Connections); err != nil {
		_ = provider.Close()
		return nil, err
	}

	bus := events.NewBus()
	audit := events.NewAuditLogger(bus)

	fail := func(err error) (*Services, error) {
		audit.Detach()
		_ = bus.Close(ctx)
		_ = provider.Close()
		return nil, err
	}

	// Connection types are registered once here; the registry is static
	// afterwards.
	connRegistry := connection.NewRegistry()
	if err := connRegistry.Register(simulator.NewDescriptor()); err != nil {
		return fail(fmt.Errorf("failed to register the simulator connection type: %w", err))
	}

	nsService := namespace.New(
		provider.HierarchyConfigurations(),
		provider.NSTreeInstances(),
		provider.NamespaceConfigurations(),
		provider.TopicConfigurations(),
		bus,
	)
	namespace.NewAdapter(nsService).Register()

	pipe := pipeline.New(provider.Realtime(), provider.Historical(), provider.TopicConfigurations(), bus, brokerCfg.Pipeline)
	pipeline.NewAdapter(pipe).Register()

	mapper := automap.New(provider.TopicConfigurations(), bus, brokerCfg.AutoMapper)
	automap.NewAdapter(mapper).Register()

	manager := connection.NewManager(connRegistry, provider.ConnectionConfigurations(), bus, brokerCfg.Manager)
	connection.NewAdapter(manager).Register()

	// Bus consumers before the producer: when the manager brings its
	// connections up, the pipeline and auto-mapper subscriptions are
	// already live.
	registry := services.NewRegistry()
	for _, svc := range []services.Service{pipe, mapper, manager} {
		if err := registry.Register(svc); err != nil {
			return fail(err)
		}
	}

	return &Services{
		Registry: registry,
		Provider: provider,
		Bus:      bus,
		Audit:    audit,
	}, nil
}

// seedConnections upserts the connection configurations declared in the
// config file. Seeds are keyed by ID (or a slug of the name when no ID is
// given), so repeated boots update the same rows instead of duplicating
// them, and CreatedAt survives the update.
func seedConnections(ctx context.Context, repo storage.ConnectionConfigurationRepository, seeds []config.SeedConnection) error {
	for _, seed := range seeds {
		cfg, err := seedToConfiguration(seed)
		if err != nil {
			return err
		}

		existing, err := repo.GetByID(ctx, cfg.ID)
		switch {
		case err == nil:
			cfg.CreatedAt = existing.CreatedAt
		case errors.Is(err, storage.ErrNotFound):
		default:
			return fmt.Errorf("failed to look up seed connection %s: %w", cfg.ID, err)
		}

		if err := repo.Save(ctx, cfg); err != nil {
			return fmt.Errorf("failed to persist seed connection %s: %w", cfg.ID, err)
		}
		logging.Info("App", "Seed connection upserted, ConnectionId=%s Name=%s Type=%s", cfg.ID, cfg.Name, cfg.ConnectionType)
	}
	return nil
}

func seedToConfiguration(seed config.SeedConnection) (api.ConnectionConfiguration, error) {
	if strings.TrimSpace(seed.Name) == "" {
		return api.ConnectionConfiguration{}, fmt.Errorf("seed connection without a name")
	}
	if seed.ConnectionType == "" {
		return api.ConnectionConfiguration{}, fmt.Errorf("seed connection %q without a connection type", seed.Name)
	}

	id := seed.ID
	if id == "" {
		id = "seed-" + slugify(seed.Name)
	}

	var raw json.RawMessage
	if len(seed.Config) > 0 {
		data, err := json.Marshal(seed.Config)
		if err != nil {
			return api.ConnectionConfiguration{}, fmt.Errorf("seed connection %s carries an unencodable config: %w", id, err)
		}
		raw = data
	}

	now := time.Now().UTC()
	cfg := api.ConnectionConfiguration{
		ID:               id,
		Name:             seed.Name,
		ConnectionType:   seed.ConnectionType,
		ConnectionConfig: raw,
		IsEnabled:        seed.IsEnabled,
		AutoStart:        seed.AutoStart,
		CreatedAt:        now,
		ModifiedAt:       now,
		Tags:             seed.Tags,
	}
	for _, in := range seed.Inputs {
		cfg.Inputs = append(cfg.Inputs, api.InputConfig{
			ID:        in.ID,
			Name:      in.Name,
			Topic:     in.Topic,
			IsEnabled: in.IsEnabled,
			Settings:  in.Settings,
		})
	}
	for _, out := range seed.Outputs {
		cfg.Outputs = append(cfg.Outputs, api.OutputConfig{
			ID:        out.ID,
			Name:      out.Name,
			Topic:     out.Topic,
			IsEnabled: out.IsEnabled,
			Settings:  out.Settings,
		})
	}
	return cfg, nil
}

func slugify(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}
