// Package app bootstraps and runs the unshub broker.
//
// The application follows a two-phase pattern:
//
//  1. NewApplication loads the configuration, initializes logging and
//     telemetry, opens the storage provider, and wires every component in
//     dependency order, each api adapter registering itself before anything
//     that calls it exists.
//  2. Run starts the registered services in order, blocks until the context
//     is canceled, and stops everything in reverse under bounded timeouts.
//
// Registration order is significant. The ingestion pipeline and the
// auto-mapper consume bus events that the connection manager's connections
// produce, so consumers register (and start) first and the producer starts
// last. Shutdown walks the same list in reverse: producers stop first, the
// pipeline drains what is already queued.
package app
