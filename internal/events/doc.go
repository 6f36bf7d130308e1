// Package events provides the in-process typed event bus that decouples the
// broker's components from each other and from UI subscribers.
//
// # Design
//
// Events are plain structs routed by their concrete Go type. Components
// publish with Bus.Publish and register handlers with the generic
// Subscribe[E] function; no string topic names and no serialization are
// involved.
//
// The bus trades memory for isolation: every subscription owns an unbounded
// FIFO queue drained by a dedicated dispatcher goroutine. Publish only
// appends to queues and therefore never blocks the caller, one slow
// subscriber never stalls another, and per-subscription delivery order
// always matches publish order. A sustained backlog is surfaced through
// warning logs rather than by dropping events.
//
// Handler failures are contained: a panicking handler is recovered and
// logged by its dispatcher, and the publisher never observes a subscriber
// error. Events are not persisted; everything in flight is lost on restart.
//
// # Event taxonomy
//
// The broker uses a closed set of event types, defined in types.go:
//
//   - DataReceived - connection manager -> ingestion pipeline
//   - TopicDataUpdated, TopicAdded, BulkTopicsAdded - pipeline -> UI/subscribers
//   - NamespaceStructureChanged - namespace service -> auto-mapper and UI
//   - TopicAutoMapped, TopicAutoMappingFailed - auto-mapper -> UI
//   - ConnectionStatusChanged - connection manager -> UI
//
// Ordering between different subscribers is not guaranteed; per topic, the
// pipeline guarantees that TopicAdded is published before the first
// TopicDataUpdated for that topic.
package events
