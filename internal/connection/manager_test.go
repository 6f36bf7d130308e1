package connection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unshub/internal/api"
	"unshub/internal/config"
	"unshub/internal/events"
	"unshub/internal/storage"
	"unshub/internal/storage/memory"
)

// fakeOptions is the typed options document of the fake descriptor.
type fakeOptions struct {
	Setting string `json:"setting"`
}

// fakeDescriptor is a ConnectionDescriptor double whose connections record
// every call and whose failures are injectable per test.
type fakeDescriptor struct {
	connType string
	newErr   error

	// failure injection applied to every connection the descriptor creates
	validateErr error
	initErr     error
	startErr    error
	startBlock  chan struct{} // when set, Start blocks until closed or ctx expires

	mu      sync.Mutex
	created map[string]*fakeConnection
}

func newFakeDescriptor(connType string) *fakeDescriptor {
	return &fakeDescriptor{
		connType: connType,
		created:  make(map[string]*fakeConnection),
	}
}

func (d *fakeDescriptor) Type() string        { return d.connType }
func (d *fakeDescriptor) DisplayName() string { return "Fake " + d.connType }
func (d *fakeDescriptor) Description() string { return "fake descriptor for tests" }

func (d *fakeDescriptor) DefaultConfig() interface{} {
	return &fakeOptions{Setting: "default"}
}

func (d *fakeDescriptor) DecodeConfig(raw []byte) (interface{}, error) {
	options := &fakeOptions{Setting: "default"}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func (d *fakeDescriptor) EncodeConfig(cfg interface{}) ([]byte, error) {
	return json.Marshal(cfg)
}

func (d *fakeDescriptor) NewConnection(id, name string) (api.DataConnection, error) {
	if d.newErr != nil {
		return nil, d.newErr
	}
	conn := &fakeConnection{
		status:      api.ConnectionStatusDisconnected,
		validateErr: d.validateErr,
		initErr:     d.initErr,
		startErr:    d.startErr,
		startBlock:  d.startBlock,
	}
	d.mu.Lock()
	d.created[id] = conn
	d.mu.Unlock()
	return conn, nil
}

// connection returns the fake connection created for id, or nil.
func (d *fakeDescriptor) connection(id string) *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[id]
}

type sentData struct {
	dp       api.DataPoint
	outputID string
}

type fakeConnection struct {
	validateErr error
	initErr     error
	startErr    error
	startBlock  chan struct{}

	mu          sync.Mutex
	status      api.ConnectionStatus
	initialized bool
	started     bool
	stopped     bool
	closed      bool
	inputs      []api.InputConfig
	outputs     []api.OutputConfig
	sent        []sentData
	dataCB      api.DataReceivedCallback
	statusCB    api.StatusChangedCallback
}

func (c *fakeConnection) Validate(cfg interface{}) error {
	return c.validateErr
}

func (c *fakeConnection) Initialize(ctx context.Context, cfg interface{}) error {
	if c.initErr != nil {
		return c.initErr
	}
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) ConfigureInput(ctx context.Context, input api.InputConfig) error {
	c.mu.Lock()
	c.inputs = append(c.inputs, input)
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) ConfigureOutput(ctx context.Context, output api.OutputConfig) error {
	c.mu.Lock()
	c.outputs = append(c.outputs, output)
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) Start(ctx context.Context) error {
	if c.startBlock != nil {
		select {
		case <-c.startBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.startErr != nil {
		c.setStatus(api.ConnectionStatusError)
		return c.startErr
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	c.setStatus(api.ConnectionStatusConnecting)
	c.setStatus(api.ConnectionStatusConnected)
	return nil
}

func (c *fakeConnection) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.setStatus(api.ConnectionStatusDisconnected)
	return nil
}

func (c *fakeConnection) SendData(ctx context.Context, dp api.DataPoint, outputID string) error {
	c.mu.Lock()
	c.sent = append(c.sent, sentData{dp: dp, outputID: outputID})
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) Status() api.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *fakeConnection) OnDataReceived(cb api.DataReceivedCallback) {
	c.mu.Lock()
	c.dataCB = cb
	c.mu.Unlock()
}

func (c *fakeConnection) OnStatusChanged(cb api.StatusChangedCallback) {
	c.mu.Lock()
	c.statusCB = cb
	c.mu.Unlock()
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConnection) setStatus(status api.ConnectionStatus) {
	c.mu.Lock()
	old := c.status
	c.status = status
	cb := c.statusCB
	c.mu.Unlock()
	if cb != nil && old != status {
		cb(old, status)
	}
}

// emit fires the data callback the way a live connection would.
func (c *fakeConnection) emit(dp api.DataPoint) {
	c.mu.Lock()
	cb := c.dataCB
	c.mu.Unlock()
	if cb != nil {
		cb(dp)
	}
}

func (c *fakeConnection) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *fakeConnection) recordedInputs() []api.InputConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.InputConfig(nil), c.inputs...)
}

func (c *fakeConnection) recordedSends() []sentData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentData(nil), c.sent...)
}

func newTestManager(t *testing.T) (*Manager, *fakeDescriptor, storage.ConnectionConfigurationRepository, *events.Bus) {
	t.Helper()

	registry := NewRegistry()
	desc := newFakeDescriptor("fake")
	require.NoError(t, registry.Register(desc))

	provider := memory.New()
	t.Cleanup(func() { _ = provider.Close() })
	repo := provider.ConnectionConfigurations()

	bus := events.NewBus()
	t.Cleanup(func() { _ = bus.Close(context.Background()) })

	cfg := config.ManagerConfig{
		HealthInterval: config.Duration(time.Hour), // keep the loop quiet in tests
		StartTimeout:   config.Duration(2 * time.Second),
		StopTimeout:    config.Duration(2 * time.Second),
	}
	return NewManager(registry, repo, bus, cfg), desc, repo, bus
}

func fakeConfiguration(id string, autoStart bool) api.ConnectionConfiguration {
	now := time.Now().UTC()
	return api.ConnectionConfiguration{
		ID:               id,
		Name:             "Fake " + id,
		ConnectionType:   "fake",
		ConnectionConfig: json.RawMessage(`{"setting":"tuned"}`),
		Inputs: []api.InputConfig{
			{ID: "in-1", Name: "main", Topic: "sensors/x", IsEnabled: true},
			{ID: "in-2", Name: "off", Topic: "sensors/y", IsEnabled: false},
		},
		Outputs:    []api.OutputConfig{{ID: "out-1", Name: "sink", IsEnabled: true}},
		IsEnabled:  true,
		AutoStart:  autoStart,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func TestCreateConnectionRegistersAndPersists(t *testing.T) {
	manager, desc, repo, _ := newTestManager(t)
	ctx := context.Background()

	cfg := fakeConfiguration("conn-1", false)
	require.NoError(t, manager.CreateConnection(ctx, cfg, true))

	conn := desc.connection("conn-1")
	require.NotNil(t, conn)
	assert.True(t, conn.initialized)

	// Only the enabled input is applied.
	inputs := conn.recordedInputs()
	require.Len(t, inputs, 1)
	assert.Equal(t, "in-1", inputs[0].ID)

	stored, err := repo.GetByID(ctx, "conn-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"setting":"tuned"}`, string(stored.ConnectionConfig))

	summaries := manager.ListConnections()
	require.Len(t, summaries, 1)
	assert.Equal(t, "conn-1", summaries[0].Config.ID)
}

func TestCreateConnectionWithoutSaveLeavesRepoUntouched(t *testing.T) {
	manager, _, repo, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))

	_, err := repo.GetByID(ctx, "conn-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCreateConnectionUnknownType(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	cfg := fakeConfiguration("conn-1", false)
	cfg.ConnectionType = "mqtt"
	err := manager.CreateConnection(context.Background(), cfg, true)
	assert.True(t, errors.Is(err, api.ErrUnknownConnectionType))
	assert.Equal(t, api.ConnectionStatusUnknown, manager.GetStatus("conn-1"))
}

func TestCreateConnectionValidationFailureDisposes(t *testing.T) {
	manager, desc, repo, _ := newTestManager(t)
	desc.validateErr = errors.New("interval must be positive")
	ctx := context.Background()

	err := manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), true)
	require.Error(t, err)
	assert.True(t, api.IsValidation(err))

	assert.True(t, desc.connection("conn-1").wasClosed())
	assert.Equal(t, api.ConnectionStatusUnknown, manager.GetStatus("conn-1"))
	_, err = repo.GetByID(ctx, "conn-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestCreateConnectionInitFailureDisposes(t *testing.T) {
	manager, desc, _, _ := newTestManager(t)
	desc.initErr = errors.New("no broker reachable")

	err := manager.CreateConnection(context.Background(), fakeConfiguration("conn-1", false), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize connection conn-1")
	assert.True(t, desc.connection("conn-1").wasClosed())
	assert.Equal(t, api.ConnectionStatusUnknown, manager.GetStatus("conn-1"))
}

func TestCreateConnectionDuplicateID(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))
	err := manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false)
	assert.True(t, api.IsDuplicate(err))
}

func TestStartConnectionCreatesFromPersistedConfig(t *testing.T) {
	manager, desc, repo, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, fakeConfiguration("conn-1", false)))

	require.NoError(t, manager.StartConnection(ctx, "conn-1"))
	assert.Equal(t, api.ConnectionStatusConnected, manager.GetStatus("conn-1"))
	require.NotNil(t, desc.connection("conn-1"))

	// The create-on-demand path must not write the row back.
	stored, err := repo.GetByID(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "Fake conn-1", stored.Name)
}

func TestStartConnectionUnknownID(t *testing.T) {
	manager, _, _, _ := newTestManager(t)

	err := manager.StartConnection(context.Background(), "ghost")
	assert.True(t, api.IsNotFound(err))
}

func TestAutoStartOnServiceStart(t *testing.T) {
	manager, desc, repo, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, fakeConfiguration("conn-1", true)))
	require.NoError(t, repo.Save(ctx, fakeConfiguration("conn-2", false)))
	disabled := fakeConfiguration("conn-3", true)
	disabled.IsEnabled = false
	require.NoError(t, repo.Save(ctx, disabled))

	require.NoError(t, manager.Start(ctx))
	defer func() { require.NoError(t, manager.Stop(ctx)) }()

	assert.Equal(t, api.ConnectionStatusConnected, manager.GetStatus("conn-1"))
	assert.Equal(t, api.ConnectionStatusDisconnected, manager.GetStatus("conn-2"))
	assert.Equal(t, api.ConnectionStatusDisconnected, manager.GetStatus("conn-3"))
	assert.Nil(t, desc.connection("conn-2"))
	assert.Nil(t, desc.connection("conn-3"))
}

func TestServiceStopStopsAndDisposesConnections(t *testing.T) {
	manager, desc, repo, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, fakeConfiguration("conn-1", true)))
	require.NoError(t, manager.Start(ctx))
	require.NoError(t, manager.Stop(ctx))

	conn := desc.connection("conn-1")
	assert.True(t, conn.wasStopped())
	assert.True(t, conn.wasClosed())
	// The configuration stays known; only the live instance is gone.
	assert.Equal(t, api.ConnectionStatusDisconnected, manager.GetStatus("conn-1"))
}

func TestStopConnection(t *testing.T) {
	manager, desc, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))
	require.NoError(t, manager.StartConnection(ctx, "conn-1"))
	require.NoError(t, manager.StopConnection(ctx, "conn-1"))

	assert.True(t, desc.connection("conn-1").wasStopped())
	assert.Equal(t, api.ConnectionStatusDisconnected, manager.GetStatus("conn-1"))

	err := manager.StopConnection(ctx, "ghost")
	assert.True(t, api.IsNotFound(err))
}

func TestRemoveConnectionDeletesEverything(t *testing.T) {
	manager, desc, repo, bus := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), true))
	conn := desc.connection("conn-1")

	received := make(chan events.DataReceived, 1)
	sub := events.Subscribe(bus, func(e events.DataReceived) { received <- e })
	defer sub.Cancel()

	require.NoError(t, manager.RemoveConnection(ctx, "conn-1"))

	assert.True(t, conn.wasStopped())
	assert.True(t, conn.wasClosed())
	assert.Equal(t, api.ConnectionStatusUnknown, manager.GetStatus("conn-1"))
	_, err := repo.GetByID(ctx, "conn-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	// Callbacks were unsubscribed before the teardown; a late emit from the
	// plugin must not reach the bus.
	conn.emit(api.DataPoint{Topic: "sensors/x", Value: 1})
	select {
	case evt := <-received:
		t.Fatalf("event published after removal: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	err = manager.RemoveConnection(ctx, "conn-1")
	assert.True(t, api.IsNotFound(err))
}

func TestSendDataForwardsToConnection(t *testing.T) {
	manager, desc, _, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))

	dp := api.DataPoint{Topic: "commands/valve", Value: "open"}
	require.NoError(t, manager.SendData(ctx, "conn-1", dp, "out-1"))

	sends := desc.connection("conn-1").recordedSends()
	require.Len(t, sends, 1)
	assert.Equal(t, "out-1", sends[0].outputID)
	assert.Equal(t, "commands/valve", sends[0].dp.Topic)

	err := manager.SendData(ctx, "ghost", dp, "")
	assert.True(t, api.IsNotFound(err))
}

func TestUpdateConnectionReplacesCacheAndPersists(t *testing.T) {
	manager, _, repo, _ := newTestManager(t)
	ctx := context.Background()

	cfg := fakeConfiguration("conn-1", false)
	require.NoError(t, manager.CreateConnection(ctx, cfg, true))

	updated := cfg
	updated.Name = "Renamed"
	updated.ConnectionConfig = json.RawMessage(`{"setting":"retuned"}`)
	require.NoError(t, manager.UpdateConnection(ctx, updated))

	stored, err := repo.GetByID(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.JSONEq(t, `{"setting":"retuned"}`, string(stored.ConnectionConfig))

	summary, err := manager.GetConnection("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", summary.Config.Name)
	// The live instance keeps running; an update never restarts it.
	assert.NotEqual(t, api.ConnectionStatusUnknown, summary.Status)

	bad := updated
	bad.ConnectionConfig = json.RawMessage(`{"setting":`)
	err = manager.UpdateConnection(ctx, bad)
	assert.True(t, api.IsValidation(err))
}

func TestGetStatusDistinguishesKnownAndUnknown(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	assert.Equal(t, api.ConnectionStatusUnknown, manager.GetStatus("ghost"))

	// A cached configuration without a live instance reads Disconnected.
	require.NoError(t, manager.UpdateConnection(ctx, fakeConfiguration("conn-1", false)))
	assert.Equal(t, api.ConnectionStatusDisconnected, manager.GetStatus("conn-1"))

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-2", false), false))
	require.NoError(t, manager.StartConnection(ctx, "conn-2"))
	assert.Equal(t, api.ConnectionStatusConnected, manager.GetStatus("conn-2"))
}

func TestDataCallbackCanonicalizesAndPublishes(t *testing.T) {
	manager, desc, _, bus := newTestManager(t)
	ctx := context.Background()

	received := make(chan events.DataReceived, 4)
	sub := events.Subscribe(bus, func(e events.DataReceived) { received <- e })
	defer sub.Cancel()

	cfg := fakeConfiguration("conn-1", false)
	require.NoError(t, manager.CreateConnection(ctx, cfg, false))
	conn := desc.connection("conn-1")

	conn.emit(api.DataPoint{Topic: "sensors/x", Value: 21.5})

	select {
	case evt := <-received:
		assert.Equal(t, "conn-1", evt.ConnectionID)
		assert.Equal(t, "sensors/x", evt.DataPoint.Topic)
		assert.False(t, evt.DataPoint.Timestamp.IsZero())
		assert.Equal(t, cfg.Name, evt.DataPoint.Source)
		assert.Equal(t, api.QualityGood, evt.DataPoint.Quality)
		assert.Equal(t, "conn-1", evt.DataPoint.Metadata[api.MetadataKeyConnectionID])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DataReceived")
	}

	// Explicit fields survive canonicalization.
	stamped := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	conn.emit(api.DataPoint{
		Topic:     "sensors/y",
		Value:     1,
		Timestamp: stamped,
		Source:    "plc-4",
		Quality:   "uncertain",
		Metadata:  map[string]string{"unit": "bar"},
	})
	select {
	case evt := <-received:
		assert.True(t, evt.DataPoint.Timestamp.Equal(stamped))
		assert.Equal(t, "plc-4", evt.DataPoint.Source)
		assert.Equal(t, "uncertain", evt.DataPoint.Quality)
		assert.Equal(t, "bar", evt.DataPoint.Metadata["unit"])
		assert.Equal(t, "conn-1", evt.DataPoint.Metadata[api.MetadataKeyConnectionID])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DataReceived")
	}

	// Topicless datapoints are dropped before the bus.
	conn.emit(api.DataPoint{Value: 2})
	select {
	case evt := <-received:
		t.Fatalf("topicless datapoint published: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStatusCallbackPublishes(t *testing.T) {
	manager, _, _, bus := newTestManager(t)
	ctx := context.Background()

	transitions := make(chan events.ConnectionStatusChanged, 4)
	sub := events.Subscribe(bus, func(e events.ConnectionStatusChanged) { transitions <- e })
	defer sub.Cancel()

	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))
	require.NoError(t, manager.StartConnection(ctx, "conn-1"))

	want := []api.ConnectionStatus{api.ConnectionStatusConnecting, api.ConnectionStatusConnected}
	for _, status := range want {
		select {
		case evt := <-transitions:
			assert.Equal(t, "conn-1", evt.ConnectionID)
			assert.Equal(t, status, evt.NewStatus)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for transition to %s", status)
		}
	}
}

// TestManagerResponsiveDuringSlowStart pins the locking contract: a start
// stuck in plugin I/O must not block map reads.
func TestManagerResponsiveDuringSlowStart(t *testing.T) {
	manager, desc, _, _ := newTestManager(t)
	ctx := context.Background()

	desc.startBlock = make(chan struct{})
	require.NoError(t, manager.CreateConnection(ctx, fakeConfiguration("conn-1", false), false))

	startDone := make(chan error, 1)
	go func() { startDone <- manager.StartConnection(ctx, "conn-1") }()

	reads := make(chan struct{})
	go func() {
		manager.ListConnections()
		manager.GetStatus("conn-1")
		close(reads)
	}()

	select {
	case <-reads:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("manager reads blocked while a connection start was in flight")
	}

	close(desc.startBlock)
	select {
	case err := <-startDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("start did not finish after unblocking")
	}
}
