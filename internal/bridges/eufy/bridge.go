package eufy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a command topic.
	minTopicParts = 4

	// commandTimeout bounds one command, including the reconnect-and-retry.
	commandTimeout = 15 * time.Second

	// connectTimeout bounds one device connect attempt.
	connectTimeout = 10 * time.Second

	// defaultSuperviseInterval is how often disconnected devices are retried.
	defaultSuperviseInterval = 30 * time.Second
)

// Event types delivered to event listeners.
const (
	EventStateChanged        = "device.state_changed"
	EventConnectivityChanged = "device.connectivity_changed"
)

// Event is a device change delivered to listeners (e.g. the WebSocket hub).
type Event struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	State     *State    `json:"state,omitempty"`
	Connected *bool     `json:"connected,omitempty"`
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// MetricsSink receives device telemetry. *influxdb.Client satisfies it.
type MetricsSink interface {
	WriteDeviceState(deviceID, model string, fields map[string]any)
	WriteKeepAlive(deviceID string, rtt time.Duration, ok bool)
}

// CommandRecord is one executed command, as stored in the audit log.
type CommandRecord struct {
	CommandID string
	DeviceID  string
	Command   string
	Source    string
	Success   bool
	Error     string
}

// AuditRecorder stores command history.
type AuditRecorder interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
}

// DeviceEntry is one configured device.
type DeviceEntry struct {
	ID    string
	Model string
	Code  string
	IP    string
	Name  string
}

// DeviceInfo is the externally visible view of a managed device.
type DeviceInfo struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Model        string              `json:"model"`
	Category     string              `json:"category"`
	IP           string              `json:"ip"`
	Capabilities []device.Capability `json:"capabilities"`
	Connected    bool                `json:"connected"`
	State        State               `json:"state"`
	Stats        ExchangeStats       `json:"stats"`
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// Devices to manage. Required.
	Devices []DeviceEntry

	// DeviceDefaults supplies port, timeouts and cipher for every device.
	// Model, Code, IP, Name and Transport are ignored.
	DeviceDefaults DeviceConfig

	// NewTransport builds the transport for a device. Defaults to TCP.
	NewTransport func(deviceID string) Transport

	// MQTT is required.
	MQTT MQTTClient

	// Metrics and Audit are optional.
	Metrics MetricsSink
	Audit   AuditRecorder

	Version string

	// HealthInterval is the health publish and reconnect period.
	HealthInterval time.Duration

	Logger Logger
}

// managedDevice pairs a device with the lock that serialises its commands.
type managedDevice struct {
	id  string
	dev *Device
	mu  sync.Mutex
}

// Bridge exposes Eufy devices over MQTT.
//
// It owns one Device per configured entry, translates MQTT commands into
// device operations, publishes state, connectivity and acknowledgements,
// and reconnects devices that dropped off on every supervise tick.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	metrics   MetricsSink
	audit     AuditRecorder
	validator *CommandValidator
	health    *HealthReporter
	interval  time.Duration

	devices map[string]*managedDevice
	order   []string

	listeners   []func(Event)
	listenersMu sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	log logHolder
}

// NewBridge builds the devices and the bridge. Devices are not connected
// until Start.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client is required", ErrInvalidConfig)
	}

	validator, err := NewCommandValidator()
	if err != nil {
		return nil, err
	}

	interval := opts.HealthInterval
	if interval <= 0 {
		interval = defaultSuperviseInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		mqtt:      opts.MQTT,
		metrics:   opts.Metrics,
		audit:     opts.Audit,
		validator: validator,
		interval:  interval,
		devices:   make(map[string]*managedDevice, len(opts.Devices)),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: cancel,
	}
	b.log.set(opts.Logger)

	for _, entry := range opts.Devices {
		if entry.ID == "" {
			cancel()
			return nil, fmt.Errorf("%w: device id is required", ErrInvalidConfig)
		}
		if _, dup := b.devices[entry.ID]; dup {
			cancel()
			return nil, fmt.Errorf("%w: duplicate device id %q", ErrInvalidConfig, entry.ID)
		}

		cfg := opts.DeviceDefaults
		cfg.Model, cfg.Code, cfg.IP, cfg.Name = entry.Model, entry.Code, entry.IP, entry.Name
		cfg.Logger = opts.Logger
		cfg.Transport = nil
		if opts.NewTransport != nil {
			cfg.Transport = opts.NewTransport(entry.ID)
		}

		dev, err := NewDevice(cfg)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("device %q: %w", entry.ID, err)
		}

		md := &managedDevice{id: entry.ID, dev: dev}
		dev.SetKeepAliveObserver(func(_ uint32, rtt time.Duration, err error) {
			if b.metrics != nil {
				b.metrics.WriteKeepAlive(md.id, rtt, err == nil)
			}
		})
		b.devices[entry.ID] = md
		b.order = append(b.order, entry.ID)
	}
	sort.Strings(b.order)

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  Protocol,
		Version:   opts.Version,
		Interval:  interval,
		Publisher: opts.MQTT,
		Devices:   b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start subscribes to commands, connects every device and starts health
// reporting. A device that fails to connect is retried later; only the
// MQTT subscription can fail Start.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.log.warn("failed to publish starting status", "error", err)
	}

	if err := b.mqtt.Subscribe(CommandSubscription(), 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	for _, id := range b.order {
		if err := b.connectDevice(ctx, b.devices[id]); err != nil {
			b.log.warn("eufy device unavailable, will retry", "device_id", id, "error", err)
		}
	}

	b.health.Start(b.ctx)
	b.wg.Add(1)
	go b.superviseLoop()

	b.log.info("eufy bridge started", "devices", len(b.devices))
	return nil
}

// Stop disconnects every device and stops background work.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		for _, id := range b.order {
			md := b.devices[id]
			md.mu.Lock()
			if err := md.dev.Disconnect(ctx); err != nil {
				b.log.warn("eufy disconnect failed", "device_id", id, "error", err)
			}
			md.mu.Unlock()
		}
		b.log.info("eufy bridge stopped")
	})
}

// SetLogger sets the logger for the bridge and its devices.
func (b *Bridge) SetLogger(logger Logger) {
	b.log.set(logger)
	b.health.SetLogger(logger)
	for _, md := range b.devices {
		md.dev.SetLogger(logger)
	}
}

// AddEventListener registers a listener for device events.
func (b *Bridge) AddEventListener(fn func(Event)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

// Devices returns every managed device, ordered by id.
func (b *Bridge) Devices() []DeviceInfo {
	out := make([]DeviceInfo, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.info(b.devices[id]))
	}
	return out
}

// Device returns one managed device.
func (b *Bridge) Device(id string) (DeviceInfo, error) {
	md, ok := b.devices[id]
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	return b.info(md), nil
}

// Execute runs a command against a device, records it and publishes the
// resulting state.
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) (State, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	md, ok := b.devices[cmd.DeviceID]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrDeviceNotFound, cmd.DeviceID)
		b.record(ctx, cmd, err)
		return State{}, err
	}

	md.mu.Lock()
	state, err := ExecuteCommand(ctx, b.validator, md.dev, cmd)
	md.mu.Unlock()

	b.record(ctx, cmd, err)
	if err != nil {
		b.log.warn("eufy command failed", "device_id", cmd.DeviceID, "command", cmd.Command, "error", err)
		return State{}, err
	}

	b.publishState(md)
	return state, nil
}

// DeviceStatus implements DeviceStatusProvider for the health reporter.
func (b *Bridge) DeviceStatus() []DeviceHealth {
	out := make([]DeviceHealth, 0, len(b.order))
	for _, id := range b.order {
		md := b.devices[id]
		out = append(out, DeviceHealth{
			ID:        id,
			Model:     string(md.dev.Model()),
			Connected: md.dev.IsConnected(),
			Stats:     md.dev.Stats(),
		})
	}
	return out
}

func (b *Bridge) info(md *managedDevice) DeviceInfo {
	d := md.dev
	return DeviceInfo{
		ID:           md.id,
		Name:         d.Name(),
		Model:        string(d.Model()),
		Category:     string(d.Category()),
		IP:           d.IP(),
		Capabilities: d.Capabilities().List(),
		Connected:    d.IsConnected(),
		State:        d.State(),
		Stats:        d.Stats(),
	}
}

// needsConnect reports whether a device is down or was never loaded.
// A failed first load rolls the connection back, which also drops the
// bridge's connectivity handler.
func needsConnect(md *managedDevice) bool {
	return !md.dev.IsConnected() || !md.dev.State().Loaded
}

// connectDevice (re)connects a device that is down or unloaded. The
// previous session is torn down first so handlers are registered exactly
// once.
func (b *Bridge) connectDevice(ctx context.Context, md *managedDevice) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	if !needsConnect(md) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := md.dev.Disconnect(ctx); err != nil {
		b.log.debug("eufy disconnect before reconnect", "device_id", md.id, "error", err)
	}
	md.dev.Subscribe(func(connected bool) { b.handleConnectivity(md, connected) })

	if err := md.dev.Connect(ctx); err != nil {
		return err
	}

	b.log.info("eufy device connected", "device_id", md.id, "device", md.dev.String())
	b.publishState(md)
	return nil
}

func (b *Bridge) superviseLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.supervise(b.ctx)
		}
	}
}

// supervise reconnects every device that needs it, one attempt each.
func (b *Bridge) supervise(ctx context.Context) {
	for _, id := range b.order {
		md := b.devices[id]
		if !needsConnect(md) {
			continue
		}
		if err := b.connectDevice(ctx, md); err != nil {
			b.log.warn("eufy reconnect failed", "device_id", id, "error", err)
		}
	}
}

func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts || parts[1] != "command" {
		b.log.debug("ignoring message on unexpected topic", "topic", topic)
		return
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.log.warn("invalid command payload", "topic", topic, "error", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = parts[len(parts)-1]
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	state, err := b.Execute(ctx, cmd)
	if err != nil {
		b.publishJSON(AckTopic(cmd.DeviceID), NewAckError(cmd, AckCodeFor(err), err.Error()), false)
		return
	}
	b.publishJSON(AckTopic(cmd.DeviceID), NewAckMessage(cmd, &state), false)
}

func (b *Bridge) handleConnectivity(md *managedDevice, connected bool) {
	b.publishJSON(ConnectivityTopic(md.id), ConnectivityMessage{
		DeviceID:  md.id,
		Timestamp: time.Now().UTC(),
		Connected: connected,
	}, true)

	b.emit(Event{
		Type:      EventConnectivityChanged,
		DeviceID:  md.id,
		Timestamp: time.Now().UTC(),
		Connected: &connected,
	})
}

func (b *Bridge) publishState(md *managedDevice) {
	state := md.dev.State()
	model := string(md.dev.Model())

	b.publishJSON(StateTopic(md.id), NewStateMessage(md.id, model, state), true)
	if b.metrics != nil {
		b.metrics.WriteDeviceState(md.id, model, stateFields(state))
	}
	b.emit(Event{
		Type:      EventStateChanged,
		DeviceID:  md.id,
		Timestamp: time.Now().UTC(),
		State:     &state,
	})
}

func (b *Bridge) publishJSON(topic string, msg any, retained bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.error("failed to marshal message", "topic", topic, "error", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, retained); err != nil {
		b.log.error("failed to publish", "topic", topic, "error", err)
	}
}

func (b *Bridge) emit(ev Event) {
	b.listenersMu.RLock()
	listeners := make([]func(Event), len(b.listeners))
	copy(listeners, b.listeners)
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (b *Bridge) record(ctx context.Context, cmd CommandMessage, execErr error) {
	if b.audit == nil {
		return
	}
	rec := CommandRecord{
		CommandID: cmd.ID,
		DeviceID:  cmd.DeviceID,
		Command:   cmd.Command,
		Source:    cmd.Source,
		Success:   execErr == nil,
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	// The command context may already be done; the audit write must not be.
	if err := b.audit.RecordCommand(context.WithoutCancel(ctx), rec); err != nil {
		b.log.error("failed to record command", "device_id", cmd.DeviceID, "error", err)
	}
}

// stateFields flattens a state into metric fields.
func stateFields(s State) map[string]any {
	fields := make(map[string]any)
	if s.Power != nil {
		fields["power"] = *s.Power
	}
	if s.Brightness != nil {
		fields["brightness"] = *s.Brightness
	}
	if s.Temperature != nil {
		fields["temperature"] = *s.Temperature
	}
	if s.Color != nil {
		fields["red"] = int(s.Color.Red)
		fields["green"] = int(s.Color.Green)
		fields["blue"] = int(s.Color.Blue)
	}
	return fields
}
