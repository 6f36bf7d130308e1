package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"unshub/internal/config"
	"unshub/internal/telemetry"
	"unshub/pkg/logging"
)

const (
	// serviceStopTimeout bounds each service's Stop during shutdown. It
	// exceeds the default pipeline drain timeout and connection stop
	// timeout, so a well-behaved service is never abandoned mid-drain.
	serviceStopTimeout = 30 * time.Second

	// releaseTimeout bounds the bus close and the telemetry flush.
	releaseTimeout = 5 * time.Second
)

// Application is the bootstrapped broker: configuration loaded, services
// wired, ready to run.
type Application struct {
	config            *Config
	brokerCfg         config.Config
	services          *Services
	telemetryShutdown telemetry.ShutdownFunc
}

// NewApplication performs the bootstrap phase: logging, configuration,
// telemetry, storage, and service wiring. It returns an application ready
// for Run, or an error when any critical step fails.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stdout)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPathOrPanic()
	}
	brokerCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("App", err, "Failed to load configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	ctx := context.Background()

	// Telemetry installs the global meter provider and must come before
	// the components create their instruments.
	telemetryShutdown, err := telemetry.Init(ctx, brokerCfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	svcs, err := InitializeServices(ctx, brokerCfg)
	if err != nil {
		logging.Error("App", err, "Failed to initialize services")
		flushCtx, cancel := context.WithTimeout(ctx, releaseTimeout)
		_ = telemetryShutdown(flushCtx)
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:            cfg,
		brokerCfg:         brokerCfg,
		services:          svcs,
		telemetryShutdown: telemetryShutdown,
	}, nil
}

// Run executes the broker. Services start in registration order, the call
// blocks until ctx is canceled, then everything stops in reverse order
// under bounded timeouts.
func (a *Application) Run(ctx context.Context) error {
	if err := a.services.Registry.StartAll(ctx); err != nil {
		// StartAll already rolled back the started prefix.
		return errors.Join(err, a.release())
	}
	logging.Info("App", "unshub broker running, Version=%s Storage=%s", a.config.Version, a.brokerCfg.Storage.Provider)

	<-ctx.Done()
	logging.Info("App", "Shutdown requested")

	// The run context is already canceled; shutdown gets a fresh one.
	var errs []error
	if err := a.services.Registry.StopAll(context.Background(), serviceStopTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	logging.Info("App", "Shutdown complete")
	return nil
}

// release lets go of everything below the services: the audit
// subscriptions, the event bus, the storage provider, and the telemetry
// pipeline, in that order.
func (a *Application) release() error {
	var errs []error

	a.services.Audit.Detach()

	busCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	if err := a.services.Bus.Close(busCtx); err != nil {
		errs = append(errs, fmt.Errorf("event bus close: %w", err))
	}
	cancel()

	if err := a.services.Provider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	if err := a.telemetryShutdown(flushCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	cancel()

	return errors.Join(errs...)
}
