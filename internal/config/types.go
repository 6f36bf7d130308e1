package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so intervals can be written in YAML as Go
// duration strings ("500ms", "30s", "6h").
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String makes Duration satisfy the fmt.Stringer interface.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML parses a duration string such as "30s" or "6h".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the top-level configuration structure for unshub.
type Config struct {
	Logging     LoggingConfig    `yaml:"logging"`
	Storage     StorageConfig    `yaml:"storage"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Manager     ManagerConfig    `yaml:"manager"`
	AutoMapper  AutoMapperConfig `yaml:"automapper"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Connections []SeedConnection `yaml:"connections,omitempty"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug|info|warn|error (default: info)
}

// StorageConfig selects and configures the storage provider.
type StorageConfig struct {
	Provider string `yaml:"provider,omitempty"` // sqlite|memory (default: sqlite)
	Path     string `yaml:"path,omitempty"`     // database file for sqlite (default: unshub.db in the config directory)
}

// PipelineConfig tunes the ingestion pipeline.
type PipelineConfig struct {
	QueueCapacity           int      `yaml:"queueCapacity,omitempty"`           // dataQueue capacity; writes beyond it are dropped (default: 100000)
	BatchSize               int      `yaml:"batchSize,omitempty"`               // max datapoints per storage batch (default: 500)
	FlushInterval           Duration `yaml:"flushInterval,omitempty"`           // max wait before a partial batch is flushed (default: 500ms)
	PublishLimit            int      `yaml:"publishLimit,omitempty"`            // max TopicDataUpdated events per flush (default: 50)
	VerifiedRefreshInterval Duration `yaml:"verifiedRefreshInterval,omitempty"` // verified-topics snapshot refresh (default: 5m)
	CleanupInterval         Duration `yaml:"cleanupInterval,omitempty"`         // retention maintenance interval (default: 6h)
	RealtimeRetention       Duration `yaml:"realtimeRetention,omitempty"`       // realtime data older than this is dropped (default: 24h)
	HistoricalRetention     Duration `yaml:"historicalRetention,omitempty"`     // historical data older than this is archived (default: 720h)
	MaxRetries              int      `yaml:"maxRetries,omitempty"`              // storage batch retry attempts for retryable errors (default: 3)
	RetryBaseDelay          Duration `yaml:"retryBaseDelay,omitempty"`          // initial retry backoff delay (default: 100ms)
	DrainTimeout            Duration `yaml:"drainTimeout,omitempty"`            // bound on queue draining at shutdown (default: 10s)
}

// ManagerConfig tunes the connection manager.
type ManagerConfig struct {
	HealthInterval Duration `yaml:"healthInterval,omitempty"` // health loop interval (default: 30s)
	StartTimeout   Duration `yaml:"startTimeout,omitempty"`   // bound on a single connection start (default: 30s)
	StopTimeout    Duration `yaml:"stopTimeout,omitempty"`    // bound on a single connection stop (default: 10s)
}

// AutoMapperConfig tunes the auto-mapper.
type AutoMapperConfig struct {
	PendingLimit int `yaml:"pendingLimit,omitempty"` // bounded pending-topics set, LRU eviction on overflow (default: 4096)
}

// TelemetryConfig controls the OpenTelemetry metrics export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`  // metrics are no-op unless enabled (default: false)
	Exporter string `yaml:"exporter,omitempty"` // stdout|otlp (default: stdout)
	Endpoint string `yaml:"endpoint,omitempty"` // OTLP HTTP endpoint, used when exporter is otlp
}

// SeedConnection is a connection configuration declared in the config file.
// Seeds are upserted into the repository at bootstrap, so a fresh broker
// starts with a working connection set. Config carries the descriptor-typed
// options as free-form YAML; it is re-encoded to the persisted JSON document
// keyed on ConnectionType.
type SeedConnection struct {
	ID             string                 `yaml:"id,omitempty"`
	Name           string                 `yaml:"name"`
	ConnectionType string                 `yaml:"connectionType"`
	Config         map[string]interface{} `yaml:"config,omitempty"`
	Inputs         []SeedIO               `yaml:"inputs,omitempty"`
	Outputs        []SeedIO               `yaml:"outputs,omitempty"`
	IsEnabled      bool                   `yaml:"isEnabled"`
	AutoStart      bool                   `yaml:"autoStart"`
	Tags           []string               `yaml:"tags,omitempty"`
}

// SeedIO is one input or output spec of a seed connection.
type SeedIO struct {
	ID        string            `yaml:"id,omitempty"`
	Name      string            `yaml:"name"`
	Topic     string            `yaml:"topic,omitempty"`
	IsEnabled bool              `yaml:"isEnabled"`
	Settings  map[string]string `yaml:"settings,omitempty"`
}

// DefaultConfig returns the configuration used when no config file exists.
// Every tunable named in the documentation has its default here.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Provider: "sqlite",
			// Path defaults to unshub.db inside the config directory; the
			// loader fills it in because only the loader knows that directory.
		},
		Pipeline: PipelineConfig{
			QueueCapacity:           100000,
			BatchSize:               500,
			FlushInterval:           Duration(500 * time.Millisecond),
			PublishLimit:            50,
			VerifiedRefreshInterval: Duration(5 * time.Minute),
			CleanupInterval:         Duration(6 * time.Hour),
			RealtimeRetention:       Duration(24 * time.Hour),
			HistoricalRetention:     Duration(720 * time.Hour),
			MaxRetries:              3,
			RetryBaseDelay:          Duration(100 * time.Millisecond),
			DrainTimeout:            Duration(10 * time.Second),
		},
		Manager: ManagerConfig{
			HealthInterval: Duration(30 * time.Second),
			StartTimeout:   Duration(30 * time.Second),
			StopTimeout:    Duration(10 * time.Second),
		},
		AutoMapper: AutoMapperConfig{
			PendingLimit: 4096,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}
