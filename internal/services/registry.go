package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"unshub/pkg/logging"
)

// Registry holds services in registration order. Order is significant:
// StartAll starts in order, StopAll stops in reverse, so consumers of the
// event bus register before producers.
type Registry struct {
	mu       sync.Mutex
	services []Service
	names    map[string]struct{}
}

// NewRegistry creates an empty service registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Register adds a service to the registry.
func (r *Registry) Register(service Service) error {
	if service == nil {
		return fmt.Errorf("cannot register nil service")
	}

	name := service.Name()
	if name == "" {
		return fmt.Errorf("service has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.names[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.names[name] = struct{}{}
	r.services = append(r.services, service)
	return nil
}

// Services returns the registered services in registration order.
func (r *Registry) Services() []Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	services := make([]Service, len(r.services))
	copy(services, r.services)
	return services
}

// StartAll starts every registered service in registration order. On the
// first failure the already-started services are stopped again in reverse
// order and the failure is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	services := r.Services()
	for i, service := range services {
		logging.Debug("Services", "Starting service %s", service.Name())
		if err := service.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := services[j].Stop(ctx); stopErr != nil {
					logging.Error("Services", stopErr, "Failed to stop service %s during rollback", services[j].Name())
				}
			}
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
		logging.Info("Services", "Started service %s", service.Name())
	}
	return nil
}

// StopAll stops every registered service in reverse registration order.
// Each stop gets its own timeout; a service that neither returns nor honors
// its context is abandoned with an error rather than wedging the shutdown.
// All failures are collected and returned joined.
func (r *Registry) StopAll(ctx context.Context, perServiceTimeout time.Duration) error {
	services := r.Services()
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		if err := stopWithTimeout(ctx, service, perServiceTimeout); err != nil {
			logging.Error("Services", err, "Failed to stop service %s", service.Name())
			errs = append(errs, err)
			continue
		}
		logging.Info("Services", "Stopped service %s", service.Name())
	}
	return errors.Join(errs...)
}

func stopWithTimeout(ctx context.Context, service Service, timeout time.Duration) error {
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- service.Stop(stopCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to stop service %s: %w", service.Name(), err)
		}
		return nil
	case <-stopCtx.Done():
		return fmt.Errorf("stop of service %s abandoned: %w", service.Name(), stopCtx.Err())
	}
}
