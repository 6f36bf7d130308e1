// Package api provides the central API layer for unshub's Service Locator Pattern.
//
// This package serves as the single point of communication between all unshub
// packages, preventing direct inter-package dependencies and enabling clean
// architectural separation. All service functionality is accessed through
// handler interfaces registered with this central API layer.
//
// # Service Locator Pattern
//
// The API package implements the core Service Locator Pattern that is
// **mandatory** for all inter-package communication in unshub:
//
//  1. **Handler Interfaces** - Define contracts for each service capability
//     (ConnectionManagerHandler, NamespaceStructureHandler, AutoMapperHandler,
//     PipelineHandler)
//
//  2. **Handler Registry** - Central registry for handler implementations
//     with thread-safe registration and access
//
//  3. **Adapter Pattern** - Service packages provide adapters that implement
//     handler interfaces and register with the API layer
//
// This architecture ensures:
// - **Zero circular dependencies** (API doesn't import internal packages)
// - **Clean separation of concerns** between packages
// - **Enhanced testability** through handler mocking
// - **Runtime flexibility** in handler registration
//
// Absence is a first-class state: Get* functions return nil for unregistered
// handlers and callers degrade gracefully. The auto-mapper, for example,
// treats a missing namespace structure handler as an empty namespace tree
// instead of failing.
//
// # Handler Interfaces
//
//   - **ConnectionManagerHandler**: Data connection lifecycle (create, start,
//     stop, remove, send, status)
//   - **NamespaceStructureHandler**: Hierarchy instances, namespaces and the
//     UNS tree view
//   - **AutoMapperHandler**: Topic-to-namespace resolution and cache control
//   - **PipelineHandler**: Datapoint ingestion and pipeline counters
//
// # Shared Types
//
// Beyond the handler contracts, this package holds the domain entities that
// cross package boundaries (DataPoint, ConnectionConfiguration,
// TopicConfiguration, HierarchicalPath, hierarchy and namespace records) and
// the connection plugin contracts (DataConnection, ConnectionDescriptor).
// Keeping them here keeps the dependency graph acyclic: every internal
// package may import api, and api imports none of them.
//
// # Error Handling
//
// The package defines typed errors shared across handlers:
//   - NotFoundError with IsNotFound and per-resource constructors
//   - DuplicateError with IsDuplicate for uniqueness violations
//   - ValidationError with IsValidation for rejected configurations
//   - Sentinel errors for unregistered handlers and unknown connection types
package api
