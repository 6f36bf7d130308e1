package api

import (
	"context"
)

// DataReceivedCallback is invoked by a connection for every datapoint it
// receives from its source. Connections fire callbacks on their own
// execution context; the core never blocks inside them.
type DataReceivedCallback func(dp DataPoint)

// StatusChangedCallback is invoked by a connection whenever its status
// transitions.
type StatusChangedCallback func(oldStatus, newStatus ConnectionStatus)

// DataConnection is the capability surface every connection plugin
// implements. Variants are protocol-specific (MQTT client, Socket.IO client,
// simulator, ...) but share this contract. Lifecycle callbacks are plain
// function values registered up front, not inherited behavior.
type DataConnection interface {
	// Validate checks a decoded, descriptor-typed configuration before any
	// resources are allocated. A non-nil error means the configuration is
	// invalid and the connection must not be initialized.
	Validate(cfg interface{}) error

	// Initialize prepares the connection with its typed configuration.
	// It is called exactly once, before any ConfigureInput/ConfigureOutput,
	// Start or SendData call.
	Initialize(ctx context.Context, cfg interface{}) error

	// ConfigureInput applies one input specification.
	ConfigureInput(ctx context.Context, input InputConfig) error

	// ConfigureOutput applies one output specification.
	ConfigureOutput(ctx context.Context, output OutputConfig) error

	// Start begins receiving data. Status transitions are reported through
	// the status callback.
	Start(ctx context.Context) error

	// Stop stops receiving data. Stop is idempotent.
	Stop(ctx context.Context) error

	// SendData forwards a datapoint to the output with the given id, or to
	// every configured output when outputID is empty.
	SendData(ctx context.Context, dp DataPoint, outputID string) error

	// Status returns the connection's current status.
	Status() ConnectionStatus

	// OnDataReceived registers the callback fired for every received
	// datapoint. Passing nil unregisters the callback.
	OnDataReceived(cb DataReceivedCallback)

	// OnStatusChanged registers the callback fired on status transitions.
	// Passing nil unregisters the callback.
	OnStatusChanged(cb StatusChangedCallback)

	// Close releases all resources. A closed connection cannot be reused.
	Close() error
}

// ConnectionDescriptor describes one connection type to the registry. Each
// plugin contributes a descriptor at process start; the registry is static
// thereafter. Descriptors own the translation between the persisted JSON
// options document and their typed configuration, so no reflection is
// involved at the manager boundary.
type ConnectionDescriptor interface {
	// Type returns the unique connection-type key (e.g. "simulator").
	Type() string

	// DisplayName returns a human-readable name for UIs and logs.
	DisplayName() string

	// Description returns a short description of the connection type.
	Description() string

	// DefaultConfig returns a fresh typed options value populated with the
	// descriptor's defaults.
	DefaultConfig() interface{}

	// DecodeConfig converts the persisted JSON options document into the
	// descriptor's typed configuration. An empty document decodes to
	// DefaultConfig.
	DecodeConfig(raw []byte) (interface{}, error)

	// EncodeConfig converts a typed configuration back into the JSON options
	// document that is persisted verbatim.
	EncodeConfig(cfg interface{}) ([]byte, error)

	// NewConnection constructs an unconfigured live connection. The caller
	// drives Validate/Initialize/Configure/Start afterwards.
	NewConnection(id, name string) (DataConnection, error)
}
