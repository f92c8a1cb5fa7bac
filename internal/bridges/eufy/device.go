package eufy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// DeviceConfig describes one physical device and its collaborators.
// Zero-valued collaborators are replaced with the production defaults.
type DeviceConfig struct {
	// Model is the vendor SKU, e.g. "T1201". Required.
	Model string

	// Code is the device's local access code. Required.
	Code string

	// IP is the device address. Required.
	IP string

	// Name defaults to the category name.
	Name string

	Port              int
	KeepAliveInterval time.Duration
	TransportConfig   TransportConfig

	Transport Transport
	Cipher    Cipher
	Codec     Codec
	Logger    Logger
}

// State is a snapshot of the cached device state.
type State struct {
	Loaded      bool       `json:"loaded"`
	Power       *bool      `json:"power,omitempty"`
	Brightness  *int       `json:"brightness,omitempty"`
	Temperature *int       `json:"temperature,omitempty"`
	Color       *RGBColors `json:"color,omitempty"`
}

// KeepAliveObserver receives the outcome of every keep-alive.
type KeepAliveObserver func(sequence uint32, rtt time.Duration, err error)

// Device is the capability-gated client for one smart plug, switch or bulb.
//
// Mutators are not serialised against each other: callers must not issue
// concurrent setters on the same Device. Exchanges on the wire are always
// serialised, including the background keep-alive.
type Device struct {
	model      device.Model
	category   device.Category
	caps       device.CapabilitySet
	code       string
	ip         string
	name       string
	conn       *ConnectionManager
	engine     *ExchangeEngine
	log        logHolder
	observerMu sync.RWMutex
	observer   KeepAliveObserver

	stateMu sync.RWMutex
	state   State
}

// NewDevice validates cfg and builds the device. The model is checked
// before any transport is created.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	model, err := device.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidConfig)
	}
	if cfg.IP == "" {
		return nil, fmt.Errorf("%w: ip is required", ErrInvalidConfig)
	}

	category, err := device.CategoryOf(model)
	if err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = category.DefaultName()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewTCPTransport(cfg.TransportConfig)
	}
	cipher := cfg.Cipher
	if cipher == nil {
		cipher = NewDefaultCipher()
	}
	codec := cfg.Codec
	if codec == nil {
		codec = WireCodec{}
	}

	d := &Device{
		model:    model,
		category: category,
		caps:     device.CapabilitiesOf(model),
		code:     cfg.Code,
		ip:       cfg.IP,
		name:     name,
	}
	d.conn = NewConnectionManager(transport, ConnectionConfig{
		Host:              cfg.IP,
		Port:              cfg.Port,
		KeepAliveInterval: cfg.KeepAliveInterval,
	})
	d.engine = NewExchangeEngine(ExchangeConfig{
		Transport:   transport,
		Cipher:      cipher,
		Codec:       codec,
		Reconnector: d.conn,
		Model:       model,
		Code:        cfg.Code,
	})
	d.conn.SetKeepAlive(d.keepAlive)

	if cfg.Logger != nil {
		d.SetLogger(cfg.Logger)
	}
	return d, nil
}

// SetLogger sets the logger for the device and its connection.
func (d *Device) SetLogger(logger Logger) {
	d.log.set(logger)
	d.conn.SetLogger(logger)
	d.engine.SetLogger(logger)
}

// SetKeepAliveObserver registers a callback for keep-alive outcomes.
func (d *Device) SetKeepAliveObserver(observer KeepAliveObserver) {
	d.observerMu.Lock()
	d.observer = observer
	d.observerMu.Unlock()
}

// Model returns the device model.
func (d *Device) Model() device.Model { return d.model }

// Category returns the device category.
func (d *Device) Category() device.Category { return d.category }

// Capabilities returns the capability set of the model.
func (d *Device) Capabilities() device.CapabilitySet { return d.caps }

// Name returns the display name.
func (d *Device) Name() string { return d.name }

// IP returns the device address.
func (d *Device) IP() string { return d.ip }

// IsConnected reports the last known connectivity.
func (d *Device) IsConnected() bool { return d.conn.IsConnected() }

// Subscribe registers a connectivity handler. See ConnectionManager.Subscribe.
func (d *Device) Subscribe(handler func(connected bool)) { d.conn.Subscribe(handler) }

// Stats returns the exchange counters.
func (d *Device) Stats() ExchangeStats { return d.engine.Stats() }

// String formats the device identity.
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s) %s@%s", d.name, d.model, d.code, d.ip)
}

// Connect opens the connection and loads the current state. If the state
// cannot be loaded the connection is closed again.
func (d *Device) Connect(ctx context.Context) error {
	if err := d.conn.Connect(ctx); err != nil {
		return err
	}
	if err := d.LoadCurrentState(ctx); err != nil {
		if derr := d.conn.Disconnect(ctx); derr != nil {
			d.log.warn("eufy disconnect after failed load", "device", d.String(), "error", derr)
		}
		return err
	}
	return nil
}

// Disconnect closes the connection. Cached state stays readable but stale.
func (d *Device) Disconnect(ctx context.Context) error {
	err := d.conn.Disconnect(ctx)
	d.engine.ResetSequence()
	return err
}

// LoadCurrentState queries the device and replaces the cached state with
// the dimensions this model supports. Dimensions missing from the reply
// take their zero value.
func (d *Device) LoadCurrentState(ctx context.Context) error {
	resp, err := d.engine.SendAndAwaitResponse(ctx, newGetStatePacket(d.code))
	if err != nil {
		return err
	}

	s := State{Loaded: true, Power: boolPtr(derefBool(resp.State.Power))}
	if d.caps.Brightness {
		s.Brightness = intPtr(derefInt(resp.State.Brightness))
	}
	if d.caps.ColorTemperature {
		s.Temperature = intPtr(derefInt(resp.State.Temperature))
	}
	if d.caps.Color {
		c := RGBColors{}
		if resp.State.Color != nil {
			c = *resp.State.Color
		}
		s.Color = &c
	}

	d.stateMu.Lock()
	d.state = s
	d.stateMu.Unlock()

	d.log.debug("eufy state loaded", "device", d.String())
	return nil
}

// State returns a copy of the cached state.
func (d *Device) State() State {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	return copyState(d.state)
}

// IsPowerOn returns the cached power state.
func (d *Device) IsPowerOn() (bool, error) {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.state.Power == nil {
		return false, device.ErrStateNotLoaded
	}
	return *d.state.Power, nil
}

// GetBrightness returns the cached brightness (0-100).
func (d *Device) GetBrightness() (int, error) {
	if err := d.caps.Require(d.model, device.CapBrightness); err != nil {
		return 0, err
	}
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.state.Brightness == nil {
		return 0, device.ErrStateNotLoaded
	}
	return *d.state.Brightness, nil
}

// GetTemperature returns the cached color temperature (0-100).
func (d *Device) GetTemperature() (int, error) {
	if err := d.caps.Require(d.model, device.CapColorTemperature); err != nil {
		return 0, err
	}
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.state.Temperature == nil {
		return 0, device.ErrStateNotLoaded
	}
	return *d.state.Temperature, nil
}

// GetRGBColors returns the cached color.
func (d *Device) GetRGBColors() (RGBColors, error) {
	if err := d.caps.Require(d.model, device.CapColor); err != nil {
		return RGBColors{}, err
	}
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	if d.state.Color == nil {
		return RGBColors{}, device.ErrStateNotLoaded
	}
	return *d.state.Color, nil
}

// GetHSLColors returns the cached color as HSL.
func (d *Device) GetHSLColors() (HSLColors, error) {
	c, err := d.GetRGBColors()
	if err != nil {
		return HSLColors{}, err
	}
	return c.ToHSL(), nil
}

// SetPowerOn switches the device and returns the applied power state.
func (d *Device) SetPowerOn(ctx context.Context, on bool) (bool, error) {
	resp, err := d.set(ctx, StateFields{Power: boolPtr(on)})
	if err != nil {
		return false, err
	}

	applied := on
	if resp.Power != nil {
		applied = *resp.Power
	}
	d.updateState(func(s *State) { s.Power = boolPtr(applied) })
	return applied, nil
}

// SetBrightness sets the brightness, clamped to 0-100, and returns the
// applied value.
func (d *Device) SetBrightness(ctx context.Context, brightness int) (int, error) {
	if err := d.caps.Require(d.model, device.CapBrightness); err != nil {
		return 0, err
	}

	brightness = clampPercent(brightness)
	resp, err := d.set(ctx, StateFields{Brightness: intPtr(brightness)})
	if err != nil {
		return 0, err
	}

	applied := brightness
	if resp.Brightness != nil {
		applied = *resp.Brightness
	}
	d.updateState(func(s *State) { s.Brightness = intPtr(applied) })
	return applied, nil
}

// SetTemperature sets the color temperature, clamped to 0-100, and returns
// the applied value.
func (d *Device) SetTemperature(ctx context.Context, temperature int) (int, error) {
	if err := d.caps.Require(d.model, device.CapColorTemperature); err != nil {
		return 0, err
	}

	temperature = clampPercent(temperature)
	resp, err := d.set(ctx, StateFields{Temperature: intPtr(temperature)})
	if err != nil {
		return 0, err
	}

	applied := temperature
	if resp.Temperature != nil {
		applied = *resp.Temperature
	}
	d.updateState(func(s *State) { s.Temperature = intPtr(applied) })
	return applied, nil
}

// SetRGBColors sets the color and returns the applied color.
func (d *Device) SetRGBColors(ctx context.Context, red, green, blue uint8) (RGBColors, error) {
	if err := d.caps.Require(d.model, device.CapColor); err != nil {
		return RGBColors{}, err
	}
	return d.setColor(ctx, RGBColors{Red: red, Green: green, Blue: blue})
}

// SetHSLColors sets the color from HSL and returns the applied color.
// Hue wraps into [0, 360); saturation and lightness are clamped to [0, 1].
func (d *Device) SetHSLColors(ctx context.Context, hue, saturation, lightness float64) (HSLColors, error) {
	if err := d.caps.Require(d.model, device.CapColor); err != nil {
		return HSLColors{}, err
	}

	requested := HSLColors{Hue: hue, Saturation: saturation, Lightness: lightness}.Normalize()
	rgb := requested.ToRGB()
	applied, err := d.setColor(ctx, rgb)
	if err != nil {
		return HSLColors{}, err
	}
	if applied == rgb {
		return requested, nil
	}
	return applied.ToHSL(), nil
}

func (d *Device) setColor(ctx context.Context, c RGBColors) (RGBColors, error) {
	resp, err := d.set(ctx, StateFields{Color: &c})
	if err != nil {
		return RGBColors{}, err
	}

	applied := c
	if resp.Color != nil {
		applied = *resp.Color
	}
	d.updateState(func(s *State) { s.Color = &applied })
	return applied, nil
}

// set exchanges a set-state request and returns the state in the reply.
func (d *Device) set(ctx context.Context, fields StateFields) (StateFields, error) {
	resp, err := d.engine.SendAndAwaitResponse(ctx, newSetStatePacket(d.code, fields))
	if err != nil {
		return StateFields{}, err
	}
	return resp.State, nil
}

func (d *Device) updateState(fn func(s *State)) {
	d.stateMu.Lock()
	fn(&d.state)
	d.stateMu.Unlock()
}

// keepAlive is the connection manager's keep-alive hook.
func (d *Device) keepAlive(ctx context.Context) error {
	start := time.Now()
	seq, err := d.engine.GetSequence(ctx)

	d.observerMu.RLock()
	observer := d.observer
	d.observerMu.RUnlock()
	if observer != nil {
		observer(seq, time.Since(start), err)
	}
	return err
}

func copyState(s State) State {
	out := State{Loaded: s.Loaded}
	if s.Power != nil {
		out.Power = boolPtr(*s.Power)
	}
	if s.Brightness != nil {
		out.Brightness = intPtr(*s.Brightness)
	}
	if s.Temperature != nil {
		out.Temperature = intPtr(*s.Temperature)
	}
	if s.Color != nil {
		c := *s.Color
		out.Color = &c
	}
	return out
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
