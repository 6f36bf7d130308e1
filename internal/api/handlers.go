package api

import (
	"sync"

	"unshub/pkg/logging"
)

// Handler registry variables store the registered implementations.
// These variables are protected by handlerMutex for thread-safe access.
var (
	connectionManagerHandler  ConnectionManagerHandler
	namespaceStructureHandler NamespaceStructureHandler
	autoMapperHandler         AutoMapperHandler
	pipelineHandler           PipelineHandler

	// handlerMutex protects all handler registry operations for thread-safe registration and access.
	handlerMutex sync.RWMutex
)

// RegisterConnectionManager registers the connection manager handler implementation.
// This handler provides data connection lifecycle management: creating, starting,
// stopping, removing and reconfiguring connections from persisted configuration.
//
// The registration is thread-safe and should be called during system initialization.
// Only one connection manager handler can be registered at a time; subsequent
// registrations will replace the previous handler.
//
// Args:
//   - h: ConnectionManagerHandler implementation that manages connection lifecycle
//
// Thread-safe: Yes, protected by handlerMutex.
//
// Example:
//
//	adapter := connection.NewAdapter(manager)
//	adapter.Register()
func RegisterConnectionManager(h ConnectionManagerHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	logging.Debug("API", "Registering connection manager handler: %v", h != nil)
	connectionManagerHandler = h
}

// GetConnectionManager returns the registered connection manager handler.
//
// Returns nil if no handler has been registered yet. Callers should always
// check for nil before using the returned handler.
//
// Returns:
//   - ConnectionManagerHandler: The registered handler, or nil if not registered
//
// Thread-safe: Yes, protected by handlerMutex read lock.
//
// Example:
//
//	manager := api.GetConnectionManager()
//	if manager == nil {
//	    return api.ErrConnectionManagerNotRegistered
//	}
//	err := manager.StartConnection(ctx, "conn-1")
func GetConnectionManager() ConnectionManagerHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return connectionManagerHandler
}

// RegisterNamespaceStructure registers the namespace structure handler implementation.
// This handler owns the authoritative model of hierarchy instances and user
// namespaces, including the tree view consumed by the auto-mapper.
//
// The registration is thread-safe and should be called during system initialization.
// Only one namespace structure handler can be registered at a time; subsequent
// registrations will replace the previous handler.
//
// Args:
//   - h: NamespaceStructureHandler implementation that manages the UNS tree
//
// Thread-safe: Yes, protected by handlerMutex.
//
// Example:
//
//	adapter := namespace.NewAdapter(service)
//	adapter.Register()
func RegisterNamespaceStructure(h NamespaceStructureHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	logging.Debug("API", "Registering namespace structure handler: %v", h != nil)
	namespaceStructureHandler = h
}

// GetNamespaceStructure returns the registered namespace structure handler.
//
// Returns nil if no handler has been registered yet. Callers should always
// check for nil before using the returned handler; the auto-mapper treats an
// absent handler as an empty namespace tree.
//
// Returns:
//   - NamespaceStructureHandler: The registered handler, or nil if not registered
//
// Thread-safe: Yes, protected by handlerMutex read lock.
func GetNamespaceStructure() NamespaceStructureHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return namespaceStructureHandler
}

// RegisterAutoMapper registers the auto-mapper handler implementation.
// This handler resolves raw topic strings to namespace paths using the cached
// view of the namespace tree.
//
// The registration is thread-safe and should be called during system initialization.
// Only one auto-mapper handler can be registered at a time; subsequent
// registrations will replace the previous handler.
//
// Args:
//   - h: AutoMapperHandler implementation that manages topic resolution
//
// Thread-safe: Yes, protected by handlerMutex.
func RegisterAutoMapper(h AutoMapperHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	logging.Debug("API", "Registering auto-mapper handler: %v", h != nil)
	autoMapperHandler = h
}

// GetAutoMapper returns the registered auto-mapper handler.
//
// Returns nil if no handler has been registered yet. Callers should always
// check for nil before using the returned handler.
//
// Returns:
//   - AutoMapperHandler: The registered handler, or nil if not registered
//
// Thread-safe: Yes, protected by handlerMutex read lock.
func GetAutoMapper() AutoMapperHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return autoMapperHandler
}

// RegisterPipeline registers the ingestion pipeline handler implementation.
// This handler accepts datapoints for batched storage and exposes the
// pipeline counters.
//
// The registration is thread-safe and should be called during system initialization.
// Only one pipeline handler can be registered at a time; subsequent
// registrations will replace the previous handler.
//
// Args:
//   - h: PipelineHandler implementation that manages datapoint ingestion
//
// Thread-safe: Yes, protected by handlerMutex.
func RegisterPipeline(h PipelineHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	logging.Debug("API", "Registering pipeline handler: %v", h != nil)
	pipelineHandler = h
}

// GetPipeline returns the registered ingestion pipeline handler.
//
// Returns nil if no handler has been registered yet. Callers should always
// check for nil before using the returned handler.
//
// Returns:
//   - PipelineHandler: The registered handler, or nil if not registered
//
// Thread-safe: Yes, protected by handlerMutex read lock.
func GetPipeline() PipelineHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return pipelineHandler
}

// ResetHandlers clears every registered handler. Intended for tests that
// need a clean service locator between cases.
func ResetHandlers() {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	connectionManagerHandler = nil
	namespaceStructureHandler = nil
	autoMapperHandler = nil
	pipelineHandler = nil
}
