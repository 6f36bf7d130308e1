// Package connection manages the lifecycle of data connections, the
// protocol plugins that feed datapoints into the broker.
//
// # Registry
//
// Every connection type contributes an api.ConnectionDescriptor to the
// Registry once at bootstrap; the registry is static afterwards. A
// descriptor owns the translation between the persisted JSON options
// document and its typed configuration (DecodeConfig/EncodeConfig) and
// constructs unconfigured live connections (NewConnection). Nothing in this
// package inspects plugin configuration beyond handing the document to the
// descriptor.
//
// # Manager
//
// The Manager reconciles persisted api.ConnectionConfiguration rows with
// live api.DataConnection instances. A single mutex guards the live-instance
// map and the configuration cache; every map inspection or modification
// happens under it, while all plugin and repository I/O runs outside it.
// Connection callbacks are never invoked while the mutex is held.
//
// On a connection's data callback the manager canonicalizes the sample
// (timestamp, source, quality, ConnectionId metadata) and publishes a single
// events.DataReceived; topic discovery and TopicDataUpdated fan-out are the
// ingestion pipeline's job. Status transitions are forwarded as
// events.ConnectionStatusChanged.
//
// As a services.Service the manager loads all persisted configurations on
// Start, creates and starts the enabled auto-start subset concurrently, and
// runs a periodic health loop that logs connections sitting in Error or
// Disconnected. The health loop is the hook point for a future auto-restart
// policy; today it only observes.
package connection
