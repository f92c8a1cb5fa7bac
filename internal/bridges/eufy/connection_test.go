package eufy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestConnectionManagerConnectDisconnect(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{Host: "10.0.0.2"})

	if m.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true after Disconnect")
	}

	// The same transport is reused for the next cycle.
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error: %v", err)
	}
	if transport.Opens() != 2 {
		t.Errorf("opens = %d, want 2", transport.Opens())
	}
	_ = m.Disconnect(context.Background())
}

func TestConnectionManagerOpenFailure(t *testing.T) {
	transport := NewMockTransport()
	transport.SetOpenError(errMockIO)
	m := NewConnectionManager(transport, ConnectionConfig{Host: "10.0.0.2"})

	err := m.Connect(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Connect() error = %v, want ErrTransport", err)
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true after failed Connect")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestConnectionManagerSubscribers(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{Host: "10.0.0.2"})

	var mu sync.Mutex
	var events []string
	record := func(name string) func(bool) {
		return func(connected bool) {
			mu.Lock()
			defer mu.Unlock()
			if connected {
				events = append(events, name+":up")
			} else {
				events = append(events, name+":down")
			}
		}
	}
	m.Subscribe(record("a"))
	m.Subscribe(func(bool) { panic("handler failure") })
	m.Subscribe(record("b"))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}

	// Disconnect delivers pending events before clearing subscribers.
	mu.Lock()
	got := append([]string(nil), events...)
	mu.Unlock()
	want := []string{"a:up", "b:up", "a:down", "b:down"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Subscribers were cleared.
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	_ = m.Disconnect(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Errorf("events after resubscribe-free cycle = %v", events)
	}
}

func TestConnectionManagerUnexpectedDisconnect(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{Host: "10.0.0.2"})

	var downs atomic.Int32
	m.Subscribe(func(connected bool) {
		if !connected {
			downs.Add(1)
		}
	})
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer m.Disconnect(context.Background())

	// Simulate the peer dropping the connection.
	_ = transport.Close()

	waitFor(t, func() bool { return downs.Load() == 1 })
	if m.IsConnected() {
		t.Error("IsConnected() = true after transport reported a drop")
	}
}

func TestConnectionManagerKeepAlive(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{
		Host:              "10.0.0.2",
		KeepAliveInterval: 10 * time.Millisecond,
	})

	var calls atomic.Int32
	m.SetKeepAlive(func(ctx context.Context) error {
		calls.Add(1)
		return errMockIO // failures are not fatal
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	waitFor(t, func() bool { return calls.Load() >= 3 })

	if !m.IsConnected() {
		t.Error("keep-alive failure disconnected the manager")
	}
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}

	stopped := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != stopped {
		t.Error("keep-alive still running after Disconnect")
	}
}

func TestConnectionManagerReconnectKeepsOneTimer(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{
		Host:              "10.0.0.2",
		KeepAliveInterval: 20 * time.Millisecond,
	})

	var running, maxRunning atomic.Int32
	m.SetKeepAlive(func(ctx context.Context) error {
		n := running.Add(1)
		for {
			cur := maxRunning.Load()
			if n <= cur || maxRunning.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return nil
	})

	for range 3 {
		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)
	_ = m.Disconnect(context.Background())

	if maxRunning.Load() > 1 {
		t.Errorf("max concurrent keep-alives = %d, want 1", maxRunning.Load())
	}
}

func TestConnectionManagerReconnectNeedsSession(t *testing.T) {
	transport := NewMockTransport()
	m := NewConnectionManager(transport, ConnectionConfig{Host: "10.0.0.2"})

	if err := m.Reconnect(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("Reconnect() before Connect error = %v, want ErrTransport", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := m.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() while connected error: %v", err)
	}
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}

	if err := m.Reconnect(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("Reconnect() after Disconnect error = %v, want ErrTransport", err)
	}
	if transport.Opens() != 2 {
		t.Errorf("opens = %d, want 2", transport.Opens())
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true after refused Reconnect")
	}
}
