package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"unshub/internal/api"
	"unshub/internal/config"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/pkg/logging"
)

// Manager reconciles persisted connection configurations with live
// DataConnection instances. It implements api.ConnectionManagerHandler and
// services.Service.
type Manager struct {
	registry *Registry
	repo     storage.ConnectionConfigurationRepository
	bus      *events.Bus
	cfg      config.ManagerConfig

	// mu guards connections and configs. Plugin and repository I/O always
	// runs outside it; during create the id is reserved with a nil entry so
	// check-then-act stays safe without holding the lock across I/O.
	mu          sync.Mutex
	connections map[string]api.DataConnection
	configs     map[string]api.ConnectionConfiguration

	// healthStop/healthDone are touched only from Start and Stop, which the
	// lifecycle registry never runs concurrently.
	healthStop chan struct{}
	healthDone chan struct{}
}

// NewManager creates a connection manager. Zero timeouts and intervals fall
// back to the documented defaults.
func NewManager(registry *Registry, repo storage.ConnectionConfigurationRepository, bus *events.Bus, cfg config.ManagerConfig) *Manager {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = config.Duration(30 * time.Second)
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = config.Duration(30 * time.Second)
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = config.Duration(10 * time.Second)
	}
	return &Manager{
		registry:    registry,
		repo:        repo,
		bus:         bus,
		cfg:         cfg,
		connections: make(map[string]api.DataConnection),
		configs:     make(map[string]api.ConnectionConfiguration),
	}
}

// Name implements services.Service.
func (m *Manager) Name() string {
	return "connection-manager"
}

// Start loads all persisted configurations into the cache, creates and
// starts the enabled auto-start subset and launches the health loop.
// A connection that fails to start is logged and skipped; it never blocks
// the rest of the fleet.
func (m *Manager) Start(ctx context.Context) error {
	configs, err := m.repo.GetAll(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load connection configurations: %w", err)
	}

	m.mu.Lock()
	for _, cfg := range configs {
		m.configs[cfg.ID] = cfg
	}
	m.mu.Unlock()
	logging.Info("ConnectionManager", "Loaded %d connection configurations", len(configs))

	m.autoStart(ctx, configs)

	m.healthStop = make(chan struct{})
	m.healthDone = make(chan struct{})
	go m.healthLoop()

	return nil
}

// Stop halts the health loop and stops and disposes every live connection
// concurrently, each bounded by the configured stop timeout.
func (m *Manager) Stop(ctx context.Context) error {
	if m.healthStop != nil {
		close(m.healthStop)
		<-m.healthDone
		m.healthStop = nil
	}

	m.mu.Lock()
	live := make(map[string]api.DataConnection, len(m.connections))
	for id, conn := range m.connections {
		if conn != nil {
			live[id] = conn
		}
	}
	m.connections = make(map[string]api.DataConnection)
	m.mu.Unlock()

	var g errgroup.Group
	for id, conn := range live {
		g.Go(func() error {
			stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout.Duration())
			defer cancel()
			if err := conn.Stop(stopCtx); err != nil {
				logging.Error("ConnectionManager", err, "Failed to stop connection %s during shutdown", id)
			}
			conn.OnDataReceived(nil)
			conn.OnStatusChanged(nil)
			if err := conn.Close(); err != nil {
				logging.Warn("ConnectionManager", "Error closing connection %s during shutdown: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	logging.Info("ConnectionManager", "Stopped %d connections", len(live))
	return nil
}

// autoStart creates and starts every enabled auto-start connection
// concurrently. Errors are logged per connection and never returned: one
// broken configuration must not keep the others down.
func (m *Manager) autoStart(ctx context.Context, configs []api.ConnectionConfiguration) {
	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		if !cfg.IsEnabled || !cfg.AutoStart {
			continue
		}
		g.Go(func() error {
			if err := m.CreateConnection(gctx, cfg, false); err != nil {
				logging.Error("ConnectionManager", err, "Failed to auto-create connection %s", cfg.ID)
				return nil
			}
			if err := m.StartConnection(gctx, cfg.ID); err != nil {
				logging.Error("ConnectionManager", err, "Failed to auto-start connection %s", cfg.ID)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// CreateConnection builds a live connection from cfg and registers it under
// cfg.ID. When saveToRepo is set the configuration is also upserted. On any
// failure the partially constructed connection is disposed and nothing is
// registered.
func (m *Manager) CreateConnection(ctx context.Context, cfg api.ConnectionConfiguration, saveToRepo bool) error {
	if cfg.ID == "" {
		return api.NewValidationError(fmt.Sprintf("connection %q", cfg.Name), "id must not be empty")
	}

	desc, err := m.registry.Get(cfg.ConnectionType)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.connections[cfg.ID]; exists {
		m.mu.Unlock()
		return &api.DuplicateError{ResourceType: "connection", ResourceName: cfg.ID}
	}
	m.connections[cfg.ID] = nil
	m.mu.Unlock()

	conn, err := m.buildConnection(ctx, desc, cfg)
	if err != nil {
		m.mu.Lock()
		delete(m.connections, cfg.ID)
		m.mu.Unlock()
		return err
	}

	if saveToRepo {
		if err := m.repo.Save(ctx, cfg); err != nil {
			m.mu.Lock()
			delete(m.connections, cfg.ID)
			m.mu.Unlock()
			m.dispose(conn, cfg.ID)
			return fmt.Errorf("failed to persist connection %s: %w", cfg.ID, err)
		}
	}

	m.mu.Lock()
	m.connections[cfg.ID] = conn
	m.configs[cfg.ID] = cfg
	m.mu.Unlock()

	logging.Info("ConnectionManager", "Created connection %s (%s)", cfg.ID, cfg.ConnectionType)
	return nil
}

// buildConnection runs the descriptor-side construction chain: decode the
// options document, construct, validate, register callbacks, initialize and
// apply the enabled inputs and outputs. Callbacks are registered before
// Initialize so no early transition is lost.
func (m *Manager) buildConnection(ctx context.Context, desc api.ConnectionDescriptor, cfg api.ConnectionConfiguration) (api.DataConnection, error) {
	options, err := desc.DecodeConfig(cfg.ConnectionConfig)
	if err != nil {
		return nil, api.NewValidationError(fmt.Sprintf("connection %s", cfg.ID),
			fmt.Sprintf("options document does not decode: %v", err))
	}

	conn, err := desc.NewConnection(cfg.ID, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to construct connection %s: %w", cfg.ID, err)
	}

	if err := conn.Validate(options); err != nil {
		m.dispose(conn, cfg.ID)
		return nil, api.NewValidationError(fmt.Sprintf("connection %s", cfg.ID), err.Error())
	}

	connID, connName := cfg.ID, cfg.Name
	conn.OnDataReceived(func(dp api.DataPoint) {
		m.handleData(connID, connName, dp)
	})
	conn.OnStatusChanged(func(oldStatus, newStatus api.ConnectionStatus) {
		m.handleStatusChange(connID, oldStatus, newStatus)
	})

	if err := conn.Initialize(ctx, options); err != nil {
		m.dispose(conn, cfg.ID)
		return nil, fmt.Errorf("failed to initialize connection %s: %w", cfg.ID, err)
	}

	for _, input := range cfg.Inputs {
		if !input.IsEnabled {
			continue
		}
		if err := conn.ConfigureInput(ctx, input); err != nil {
			m.dispose(conn, cfg.ID)
			return nil, fmt.Errorf("failed to configure input %s of connection %s: %w", input.ID, cfg.ID, err)
		}
	}
	for _, output := range cfg.Outputs {
		if !output.IsEnabled {
			continue
		}
		if err := conn.ConfigureOutput(ctx, output); err != nil {
			m.dispose(conn, cfg.ID)
			return nil, fmt.Errorf("failed to configure output %s of connection %s: %w", output.ID, cfg.ID, err)
		}
	}

	return conn, nil
}

// StartConnection starts the connection with the given id, creating it from
// its persisted configuration first when necessary (without re-saving).
func (m *Manager) StartConnection(ctx context.Context, id string) error {
	m.mu.Lock()
	conn := m.connections[id]
	cfg, hasConfig := m.configs[id]
	m.mu.Unlock()

	if conn == nil {
		if !hasConfig {
			stored, err := m.repo.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return api.NewConnectionNotFoundError(id)
				}
				return fmt.Errorf("failed to load connection %s: %w", id, err)
			}
			cfg = stored
		}
		if err := m.CreateConnection(ctx, cfg, false); err != nil {
			return err
		}
		m.mu.Lock()
		conn = m.connections[id]
		m.mu.Unlock()
		if conn == nil {
			return api.NewConnectionNotFoundError(id)
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, m.cfg.StartTimeout.Duration())
	defer cancel()
	if err := conn.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start connection %s: %w", id, err)
	}
	logging.Info("ConnectionManager", "Started connection %s", id)
	return nil
}

// StopConnection stops the connection with the given id. Stopping a known
// but not running connection is a no-op.
func (m *Manager) StopConnection(ctx context.Context, id string) error {
	m.mu.Lock()
	conn, registered := m.connections[id]
	_, hasConfig := m.configs[id]
	m.mu.Unlock()

	if conn == nil {
		if registered || hasConfig {
			return nil
		}
		return api.NewConnectionNotFoundError(id)
	}

	stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout.Duration())
	defer cancel()
	if err := conn.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop connection %s: %w", id, err)
	}
	logging.Info("ConnectionManager", "Stopped connection %s", id)
	return nil
}

// RemoveConnection unregisters the connection, unsubscribes its callbacks,
// stops and disposes it and deletes the persisted configuration. Removal is
// silent: no status events are published for the teardown transitions.
func (m *Manager) RemoveConnection(ctx context.Context, id string) error {
	m.mu.Lock()
	conn, registered := m.connections[id]
	_, hasConfig := m.configs[id]
	delete(m.connections, id)
	delete(m.configs, id)
	m.mu.Unlock()

	if !registered && !hasConfig {
		return api.NewConnectionNotFoundError(id)
	}

	if conn != nil {
		conn.OnDataReceived(nil)
		conn.OnStatusChanged(nil)
		stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout.Duration())
		if err := conn.Stop(stopCtx); err != nil {
			logging.Warn("ConnectionManager", "Error stopping connection %s during removal: %v", id, err)
		}
		cancel()
		if err := conn.Close(); err != nil {
			logging.Warn("ConnectionManager", "Error closing connection %s during removal: %v", id, err)
		}
	}

	if err := m.repo.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete connection %s: %w", id, err)
	}
	logging.Info("ConnectionManager", "Removed connection %s", id)
	return nil
}

// SendData forwards a datapoint to one of the connection's outputs, or to
// all of them when outputID is empty.
func (m *Manager) SendData(ctx context.Context, id string, dp api.DataPoint, outputID string) error {
	m.mu.Lock()
	conn := m.connections[id]
	m.mu.Unlock()

	if conn == nil {
		return api.NewConnectionNotFoundError(id)
	}
	if err := conn.SendData(ctx, dp, outputID); err != nil {
		return fmt.Errorf("failed to send data through connection %s: %w", id, err)
	}
	return nil
}

// UpdateConnection upserts the persisted configuration and replaces the
// cached copy. A running connection keeps its old options until it is
// restarted; live reconfiguration is not attempted.
func (m *Manager) UpdateConnection(ctx context.Context, cfg api.ConnectionConfiguration) error {
	if cfg.ID == "" {
		return api.NewValidationError(fmt.Sprintf("connection %q", cfg.Name), "id must not be empty")
	}
	desc, err := m.registry.Get(cfg.ConnectionType)
	if err != nil {
		return err
	}
	if _, err := desc.DecodeConfig(cfg.ConnectionConfig); err != nil {
		return api.NewValidationError(fmt.Sprintf("connection %s", cfg.ID),
			fmt.Sprintf("options document does not decode: %v", err))
	}

	cfg.ModifiedAt = time.Now().UTC()
	if err := m.repo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("failed to persist connection %s: %w", cfg.ID, err)
	}

	m.mu.Lock()
	m.configs[cfg.ID] = cfg
	running := m.connections[cfg.ID] != nil
	m.mu.Unlock()

	if running {
		logging.Info("ConnectionManager", "Updated configuration of running connection %s; restart it to apply", cfg.ID)
	}
	return nil
}

// GetStatus returns Unknown for an unknown id, Disconnected for a known
// configuration without a live instance, Connecting while a create is in
// flight, and the live status otherwise.
func (m *Manager) GetStatus(id string) api.ConnectionStatus {
	m.mu.Lock()
	conn, registered := m.connections[id]
	_, hasConfig := m.configs[id]
	m.mu.Unlock()

	switch {
	case conn != nil:
		return conn.Status()
	case registered:
		return api.ConnectionStatusConnecting
	case hasConfig:
		return api.ConnectionStatusDisconnected
	default:
		return api.ConnectionStatusUnknown
	}
}

// ListConnections returns every known configuration with its status, sorted
// by id.
func (m *Manager) ListConnections() []api.ConnectionSummary {
	m.mu.Lock()
	configs := make([]api.ConnectionConfiguration, 0, len(m.configs))
	for _, cfg := range m.configs {
		configs = append(configs, cfg)
	}
	live := make(map[string]api.DataConnection, len(m.connections))
	for id, conn := range m.connections {
		if conn != nil {
			live[id] = conn
		}
	}
	m.mu.Unlock()

	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })

	summaries := make([]api.ConnectionSummary, 0, len(configs))
	for _, cfg := range configs {
		status := api.ConnectionStatusDisconnected
		if conn, ok := live[cfg.ID]; ok {
			status = conn.Status()
		}
		summaries = append(summaries, api.ConnectionSummary{Config: cfg, Status: status})
	}
	return summaries
}

// GetConnection returns the summary for a single connection.
func (m *Manager) GetConnection(id string) (*api.ConnectionSummary, error) {
	m.mu.Lock()
	cfg, ok := m.configs[id]
	conn := m.connections[id]
	m.mu.Unlock()

	if !ok {
		return nil, api.NewConnectionNotFoundError(id)
	}
	status := api.ConnectionStatusDisconnected
	if conn != nil {
		status = conn.Status()
	}
	return &api.ConnectionSummary{Config: cfg, Status: status}, nil
}

// handleData canonicalizes a received sample and republishes it as a single
// DataReceived event. Topic discovery and TopicDataUpdated fan-out happen in
// the ingestion pipeline. Runs on the connection's callback goroutine.
func (m *Manager) handleData(id, name string, dp api.DataPoint) {
	if dp.Topic == "" {
		logging.Warn("ConnectionManager", "Dropping datapoint without topic from connection %s", id)
		return
	}
	if dp.Timestamp.IsZero() {
		dp.Timestamp = time.Now().UTC()
	}
	if dp.Source == "" {
		dp.Source = name
	}
	if dp.Quality == "" {
		dp.Quality = api.QualityGood
	}

	// The metadata map may still be referenced by the plugin; copy before
	// injecting the connection id.
	metadata := make(map[string]string, len(dp.Metadata)+1)
	for k, v := range dp.Metadata {
		metadata[k] = v
	}
	metadata[api.MetadataKeyConnectionID] = id
	dp.Metadata = metadata

	m.bus.Publish(events.DataReceived{ConnectionID: id, DataPoint: dp})
}

// handleStatusChange republishes a connection status transition on the bus.
func (m *Manager) handleStatusChange(id string, oldStatus, newStatus api.ConnectionStatus) {
	logging.Debug("ConnectionManager", "Connection %s status %s -> %s", id, oldStatus, newStatus)
	m.bus.Publish(events.ConnectionStatusChanged{
		ConnectionID: id,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
	})
}

// dispose unsubscribes and closes a partially constructed or removed
// connection. Close errors are logged, not returned.
func (m *Manager) dispose(conn api.DataConnection, id string) {
	conn.OnDataReceived(nil)
	conn.OnStatusChanged(nil)
	if err := conn.Close(); err != nil {
		logging.Warn("ConnectionManager", "Error closing connection %s: %v", id, err)
	}
}

// healthLoop periodically logs connections sitting in Error or Disconnected.
// It is the hook point for a future auto-restart policy; today it only
// observes.
func (m *Manager) healthLoop() {
	defer close(m.healthDone)
	ticker := time.NewTicker(m.cfg.HealthInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.reportHealth()
		case <-m.healthStop:
			return
		}
	}
}

func (m *Manager) reportHealth() {
	m.mu.Lock()
	live := make(map[string]api.DataConnection, len(m.connections))
	for id, conn := range m.connections {
		if conn != nil {
			live[id] = conn
		}
	}
	m.mu.Unlock()

	for id, conn := range live {
		switch status := conn.Status(); status {
		case api.ConnectionStatusError, api.ConnectionStatusDisconnected:
			logging.Warn("ConnectionManager", "Connection %s is unhealthy, Status=%s", id, status)
		}
	}
}
