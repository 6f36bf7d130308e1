// Package simulator provides the built-in simulator connection type: an
// in-process data source emitting a bounded random walk per topic. It proves
// the connection plugin surface end to end and drives the broker in demos
// and tests without external infrastructure.
package simulator

import (
	"encoding/json"
	"fmt"
	"time"

	"unshub/internal/api"
)

// ConnectionType is the registry key of the simulator descriptor.
const ConnectionType = "simulator"

// Duration is a time.Duration that travels through the options document as
// a Go duration string ("500ms", "2s").
type Duration time.Duration

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON parses a duration string such as "500ms".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the simulator's typed options document.
type Config struct {
	// Interval between emitted samples. Every topic emits once per tick.
	Interval Duration `json:"interval"`

	// Topics is the base set of topics to emit on. Enabled inputs extend it.
	// At least one base topic is required.
	Topics []string `json:"topics"`

	// TopicPrefix is prepended to every topic, separated by "/", when set.
	TopicPrefix string `json:"topicPrefix,omitempty"`

	// MinValue and MaxValue bound the random walk.
	MinValue float64 `json:"minValue"`
	MaxValue float64 `json:"maxValue"`

	// Quality stamped on every emitted sample.
	Quality string `json:"quality,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Interval: Duration(time.Second),
		Topics:   []string{"simulated/temperature", "simulated/pressure"},
		MinValue: 0,
		MaxValue: 100,
		Quality:  api.QualityGood,
	}
}

func toConfig(cfg interface{}) (*Config, error) {
	typed, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("options are %T, want *simulator.Config", cfg)
	}
	return typed, nil
}

// Descriptor describes the simulator connection type to the registry.
type Descriptor struct{}

var _ api.ConnectionDescriptor = (*Descriptor)(nil)

// NewDescriptor creates the simulator descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{}
}

func (d *Descriptor) Type() string {
	return ConnectionType
}

func (d *Descriptor) DisplayName() string {
	return "Simulator"
}

func (d *Descriptor) Description() string {
	return "Emits a bounded random walk per topic at a fixed interval."
}

// DefaultConfig returns a fresh options value with the simulator defaults.
func (d *Descriptor) DefaultConfig() interface{} {
	cfg := defaultConfig()
	return &cfg
}

// DecodeConfig parses the options document over the defaults, so fields the
// document omits keep their default values. An empty document decodes to
// DefaultConfig.
func (d *Descriptor) DecodeConfig(raw []byte) (interface{}, error) {
	cfg := defaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("simulator options do not parse: %w", err)
		}
	}
	return &cfg, nil
}

// EncodeConfig renders typed options back into the persisted JSON document.
func (d *Descriptor) EncodeConfig(cfg interface{}) ([]byte, error) {
	typed, err := toConfig(cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typed)
}

// NewConnection constructs an unconfigured simulator.
func (d *Descriptor) NewConnection(id, name string) (api.DataConnection, error) {
	if id == "" {
		return nil, fmt.Errorf("simulator connection needs an id")
	}
	return newSimulator(id, name), nil
}
