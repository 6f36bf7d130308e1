// Package logging provides a structured logging system for unshub with unified
// log handling and flexible output formatting.
//
// This package implements a logging system built on Go's standard slog package,
// providing consistent logging behavior with structured output and level filtering.
//
// # Architecture
//
// The logging system is built around these core concepts:
//
// ## Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// ## Structured Logging
// All log entries include:
//   - Timestamp with nanosecond precision
//   - Log level (Debug, Info, Warn, Error)
//   - Subsystem identifier for categorization
//   - Message content with optional formatting
//   - Optional error information
//
// # Usage Examples
//
// ## Initialization
//
//	import "unshub/pkg/logging"
//
//	// Initialize with Info level logging to stdout
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	// Log messages
//	logging.Info("Bootstrap", "Broker starting up")
//	logging.Debug("Config", "Loaded configuration from %s", configPath)
//	logging.Warn("Pipeline", "QueueSize=%d approaching capacity", size)
//	logging.Error("Storage", err, "Failed to open storage provider")
//
// ## Custom Output Writer
//
//	// CLI mode with custom writer
//	logFile, _ := os.OpenFile("broker.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
//	logging.InitForCLI(logging.LevelDebug, logFile)
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - **Bootstrap**: Application initialization and startup
//   - **Config**: Configuration loading and validation
//   - **EventBus**: In-process event publication and dispatch
//   - **ConnectionManager**: Data connection lifecycle management
//   - **ConnectionRegistry**: Connection descriptor registration
//   - **Pipeline**: Datapoint ingestion, batching and storage
//   - **AutoMapper**: Topic to namespace resolution
//   - **NamespaceService**: Hierarchy instance and namespace management
//   - **Storage**: Storage provider operations
//   - **API**: API layer operations and handler management
//
// Messages carry stable keys (ConnectionId, Topic, BatchSize, QueueSize,
// CacheSize, Status) as Key=value tokens so downstream log tooling can match
// on them.
//
// # Integration with slog
//
// The logging system integrates with Go's standard slog package:
//   - Uses slog.Handler implementations for output formatting
//   - Converts custom LogLevel to slog.Level for compatibility
//   - Provides fallback to global slog logger when needed
//
// # Performance Characteristics
//
//   - Direct write to output with minimal overhead
//   - Level filtering at handler level for efficiency
//   - No memory allocation for filtered-out messages
//
// # Thread Safety
//
// The logging system is fully thread-safe:
//   - Safe concurrent logging from multiple goroutines
//   - Protected access to shared logging state
//   - No data races in configuration
package logging
