// Package services provides the minimal lifecycle layer the broker runs on:
// a Service interface and an ordered registry that starts services in
// registration order and stops them in reverse.
package services

import "context"

// Service is the core interface every long-running broker component
// implements.
type Service interface {
	// Name returns the unique service name used in registry errors and logs.
	Name() string

	// Start brings the service up. It must return once the service is
	// running; long-running work belongs in goroutines owned by the service.
	Start(ctx context.Context) error

	// Stop shuts the service down, honoring ctx for its deadline.
	Stop(ctx context.Context) error
}
