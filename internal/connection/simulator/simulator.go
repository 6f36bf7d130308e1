package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"unshub/internal/api"
	"unshub/pkg/logging"
)

// walkStepFraction is the largest per-tick move of the random walk,
// expressed as a fraction of the configured value range.
const walkStepFraction = 0.05

var _ api.DataConnection = (*Simulator)(nil)

// Simulator is the live connection behind the simulator descriptor. All
// state is guarded by one mutex; callbacks are invoked outside it.
type Simulator struct {
	id   string
	name string

	mu          sync.Mutex
	cfg         Config
	topics      []string // effective topic set: base topics plus enabled inputs, prefix applied
	outputs     map[string]api.OutputConfig
	values      map[string]float64 // last emitted value per topic
	status      api.ConnectionStatus
	dataCB      api.DataReceivedCallback
	statusCB    api.StatusChangedCallback
	initialized bool
	closed      bool
	stop        chan struct{}
	done        chan struct{}
}

func newSimulator(id, name string) *Simulator {
	return &Simulator{
		id:      id,
		name:    name,
		outputs: make(map[string]api.OutputConfig),
		values:  make(map[string]float64),
		status:  api.ConnectionStatusDisconnected,
	}
}

// Validate checks the typed options before any resources are allocated.
func (s *Simulator) Validate(cfg interface{}) error {
	typed, err := toConfig(cfg)
	if err != nil {
		return err
	}
	var problems []string
	if typed.Interval <= 0 {
		problems = append(problems, "interval must be positive")
	}
	if len(typed.Topics) == 0 {
		problems = append(problems, "at least one topic is required")
	}
	if typed.MinValue > typed.MaxValue {
		problems = append(problems, "minValue must not exceed maxValue")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Initialize adopts the typed options and builds the base topic set.
func (s *Simulator) Initialize(ctx context.Context, cfg interface{}) error {
	typed, err := toConfig(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("simulator %s is closed", s.id)
	}
	if s.initialized {
		return fmt.Errorf("simulator %s is already initialized", s.id)
	}
	s.cfg = *typed
	s.topics = s.topics[:0]
	for _, topic := range typed.Topics {
		s.topics = append(s.topics, s.qualify(topic))
	}
	s.initialized = true
	return nil
}

// ConfigureInput adds the input's topic to the emission set.
func (s *Simulator) ConfigureInput(ctx context.Context, input api.InputConfig) error {
	if input.Topic == "" {
		return fmt.Errorf("input %s has no topic", input.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return fmt.Errorf("simulator %s is not initialized", s.id)
	}
	topic := s.qualify(input.Topic)
	for _, existing := range s.topics {
		if existing == topic {
			return nil
		}
	}
	s.topics = append(s.topics, topic)
	return nil
}

// ConfigureOutput registers the output as a log sink for SendData.
func (s *Simulator) ConfigureOutput(ctx context.Context, output api.OutputConfig) error {
	if output.ID == "" {
		return fmt.Errorf("output of simulator %s has no id", s.id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return fmt.Errorf("simulator %s is not initialized", s.id)
	}
	s.outputs[output.ID] = output
	return nil
}

// Start launches the emission loop. Starting an already running simulator is
// a no-op.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("simulator %s is closed", s.id)
	}
	if !s.initialized {
		s.mu.Unlock()
		return fmt.Errorf("simulator %s is not initialized", s.id)
	}
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	if len(s.topics) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("simulator %s has no topics to emit on", s.id)
	}
	interval := time.Duration(s.cfg.Interval)
	if interval <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("simulator %s has a non-positive interval", s.id)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	s.setStatus(api.ConnectionStatusConnecting)
	go s.run(interval, stop, done)
	return nil
}

// Stop halts the emission loop. Stop is idempotent.
func (s *Simulator) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return nil
	}

	s.setStatus(api.ConnectionStatusStopping)
	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("simulator %s stop: %w", s.id, ctx.Err())
	}
	s.setStatus(api.ConnectionStatusDisconnected)
	return nil
}

// SendData logs the datapoint on the addressed output, or on every output
// when outputID is empty. The simulator has no downstream system to talk to.
func (s *Simulator) SendData(ctx context.Context, dp api.DataPoint, outputID string) error {
	s.mu.Lock()
	var sinks []api.OutputConfig
	if outputID != "" {
		output, ok := s.outputs[outputID]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("unknown output %s on simulator %s", outputID, s.id)
		}
		sinks = append(sinks, output)
	} else {
		for _, output := range s.outputs {
			sinks = append(sinks, output)
		}
	}
	s.mu.Unlock()

	for _, output := range sinks {
		logging.Info("Simulator", "Output %s of %s received Topic=%s Value=%v", output.Name, s.name, dp.Topic, dp.Value)
	}
	return nil
}

// Status returns the simulator's current status.
func (s *Simulator) Status() api.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// OnDataReceived registers the data callback; nil unregisters it.
func (s *Simulator) OnDataReceived(cb api.DataReceivedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataCB = cb
}

// OnStatusChanged registers the status callback; nil unregisters it.
func (s *Simulator) OnStatusChanged(cb api.StatusChangedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCB = cb
}

// Close stops the simulator if running and releases it for good.
func (s *Simulator) Close() error {
	_ = s.Stop(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.dataCB = nil
	s.statusCB = nil
	return nil
}

func (s *Simulator) run(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	s.setStatus(api.ConnectionStatusConnected)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.emit()
		case <-stop:
			return
		}
	}
}

// emit advances the random walk for every topic and fires the data callback
// once per topic, outside the mutex.
func (s *Simulator) emit() {
	s.mu.Lock()
	cb := s.dataCB
	if cb == nil {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	span := s.cfg.MaxValue - s.cfg.MinValue
	samples := make([]api.DataPoint, 0, len(s.topics))
	for _, topic := range s.topics {
		value, ok := s.values[topic]
		if !ok {
			value = s.cfg.MinValue + rand.Float64()*span
		}
		value += (rand.Float64()*2 - 1) * span * walkStepFraction
		if value < s.cfg.MinValue {
			value = s.cfg.MinValue
		}
		if value > s.cfg.MaxValue {
			value = s.cfg.MaxValue
		}
		s.values[topic] = value
		samples = append(samples, api.DataPoint{
			Topic:     topic,
			Value:     value,
			Timestamp: now,
			Source:    s.name,
			Quality:   s.cfg.Quality,
		})
	}
	s.mu.Unlock()

	for _, dp := range samples {
		cb(dp)
	}
}

// qualify applies the configured topic prefix. Callers hold s.mu.
func (s *Simulator) qualify(topic string) string {
	if s.cfg.TopicPrefix == "" {
		return topic
	}
	return s.cfg.TopicPrefix + "/" + topic
}

// setStatus records a transition and fires the status callback outside the
// mutex. Same-status transitions are suppressed.
func (s *Simulator) setStatus(status api.ConnectionStatus) {
	s.mu.Lock()
	old := s.status
	if old == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	cb := s.statusCB
	s.mu.Unlock()

	if cb != nil {
		cb(old, status)
	}
}
