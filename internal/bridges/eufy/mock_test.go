package eufy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

var errMockIO = errors.New("mock: connection reset")

// MockTransport implements Transport for testing. When a fake device is
// attached it answers requests the way a real device would.
type MockTransport struct {
	mu             sync.Mutex
	connected      bool
	onConnectivity func(bool)

	opens  int
	closes int
	writes int
	sent   [][]byte

	openErr error
	// failWrites fails the next N writes or exchanges.
	failWrites int

	device *FakeDevice
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Open(_ context.Context, _ string, _ int) error {
	m.mu.Lock()
	m.opens++
	if m.openErr != nil {
		err := m.openErr
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	changed := !m.connected
	m.connected = true
	callback := m.onConnectivity
	m.mu.Unlock()

	if changed && callback != nil {
		callback(true)
	}
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closes++
	changed := m.connected
	m.connected = false
	callback := m.onConnectivity
	m.mu.Unlock()

	if changed && callback != nil {
		callback(false)
	}
	return nil
}

func (m *MockTransport) Write(_ context.Context, data []byte) error {
	_, err := m.record(data)
	return err
}

func (m *MockTransport) WriteAndAwaitReply(_ context.Context, data []byte) ([]byte, error) {
	fake, err := m.record(data)
	if err != nil {
		return nil, err
	}
	if fake == nil {
		return nil, fmt.Errorf("%w: no reply", ErrTransport)
	}
	return fake.Reply(data)
}

func (m *MockTransport) SetOnConnectivity(callback func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnectivity = callback
}

func (m *MockTransport) record(data []byte) (*FakeDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.sent = append(m.sent, append([]byte(nil), data...))
	if m.failWrites > 0 {
		m.failWrites--
		return nil, fmt.Errorf("%w: %w", ErrTransport, errMockIO)
	}
	return m.device, nil
}

// Calls returns the total number of transport interactions.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens + m.closes + m.writes
}

func (m *MockTransport) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *MockTransport) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func (m *MockTransport) FailNextWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
}

func (m *MockTransport) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// FakeDevice holds device-side state and builds encrypted replies.
type FakeDevice struct {
	mu     sync.Mutex
	model  device.Model
	cipher Cipher
	codec  WireCodec
	state  StateFields

	// requests holds every decoded request.
	requests []*Packet
}

func NewFakeDevice(model device.Model, state StateFields) *FakeDevice {
	return &FakeDevice{model: model, cipher: NewDefaultCipher(), state: state}
}

// Reply decodes an encrypted request and returns the encrypted reply.
func (f *FakeDevice) Reply(data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	schema := device.SchemaOf(f.model)
	plain, err := f.cipher.Decrypt(data)
	if err != nil {
		return nil, err
	}
	req, err := f.codec.Unmarshal(schema, plain)
	if err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)

	resp := &Packet{Sequence: req.Sequence, Code: req.Code, Kind: KindState}
	respSchema := schema
	switch req.Kind {
	case KindPing:
		resp.Kind = KindPing
		respSchema = device.SchemaWhiteBulb
	case KindSetState:
		f.apply(req.State)
		resp.State = f.state
	default:
		resp.State = f.state
	}

	payload, err := f.codec.Marshal(respSchema, resp)
	if err != nil {
		return nil, err
	}
	framed, err := EncodeFrame(payload)
	if err != nil {
		return nil, err
	}
	return f.cipher.Encrypt(framed)
}

func (f *FakeDevice) apply(s StateFields) {
	if s.Power != nil {
		f.state.Power = boolPtr(*s.Power)
	}
	if s.Brightness != nil {
		f.state.Brightness = intPtr(*s.Brightness)
	}
	if s.Temperature != nil {
		f.state.Temperature = intPtr(*s.Temperature)
	}
	if s.Color != nil {
		c := *s.Color
		f.state.Color = &c
	}
}

func (f *FakeDevice) Requests() []*Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// newTestDevice builds a Device wired to a mock transport and fake device.
func newTestDevice(t *testing.T, model device.Model, state StateFields) (*Device, *MockTransport, *FakeDevice) {
	t.Helper()

	transport := NewMockTransport()
	fake := NewFakeDevice(model, state)
	transport.device = fake

	d, err := NewDevice(DeviceConfig{
		Model:     string(model),
		Code:      "ABCDEF",
		IP:        "192.168.1.50",
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("NewDevice() error: %v", err)
	}
	t.Cleanup(func() { _ = d.Disconnect(context.Background()) })
	return d, transport, fake
}

// mockReconnector counts reconnect attempts.
type mockReconnector struct {
	mu        sync.Mutex
	calls     int
	transport Transport
	err       error
}

func (r *mockReconnector) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if r.transport != nil {
		return r.transport.Open(ctx, "127.0.0.1", DefaultPort)
	}
	return nil
}

func (r *mockReconnector) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// mockLogger records log calls.
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *mockLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}
