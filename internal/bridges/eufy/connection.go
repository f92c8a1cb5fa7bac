package eufy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultKeepAliveInterval is the period between keep-alive exchanges.
	DefaultKeepAliveInterval = 10 * time.Second

	// eventQueueSize is the buffer for connectivity events awaiting dispatch.
	eventQueueSize = 32
)

// ConnectionConfig addresses one device.
type ConnectionConfig struct {
	Host string

	// Port defaults to DefaultPort.
	Port int

	// KeepAliveInterval defaults to DefaultKeepAliveInterval.
	KeepAliveInterval time.Duration
}

// ConnectionManager owns the transport of one device.
//
// It tracks connectivity, runs the keep-alive timer while connected and
// fans connectivity transitions out to subscribers. Subscribers run one at
// a time on a dispatcher goroutine, in registration order, and must not
// call Connect or Disconnect.
//
// Thread Safety: All methods are safe for concurrent use.
type ConnectionManager struct {
	transport Transport
	host      string
	port      int
	interval  time.Duration

	mu      sync.Mutex
	session *session

	keepAliveMu sync.RWMutex
	keepAlive   func(ctx context.Context) error

	connected atomic.Bool

	eventsMu sync.RWMutex
	events   chan bool

	subsMu      sync.Mutex
	subscribers []func(bool)

	log logHolder
}

// session is the background work tied to one connect/disconnect cycle.
type session struct {
	ctx              context.Context
	cancel           context.CancelFunc
	events           chan bool
	keepAliveRunning bool
	wg               sync.WaitGroup
}

// NewConnectionManager creates a manager for transport. The transport's
// connectivity callback is taken over by the manager.
func NewConnectionManager(transport Transport, cfg ConnectionConfig) *ConnectionManager {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}

	m := &ConnectionManager{
		transport: transport,
		host:      cfg.Host,
		port:      cfg.Port,
		interval:  cfg.KeepAliveInterval,
	}
	transport.SetOnConnectivity(m.handleConnectivity)
	return m
}

// SetLogger sets the logger for connection events.
func (m *ConnectionManager) SetLogger(logger Logger) {
	m.log.set(logger)
}

// SetKeepAlive installs the round-trip run on every keep-alive tick.
func (m *ConnectionManager) SetKeepAlive(fn func(ctx context.Context) error) {
	m.keepAliveMu.Lock()
	m.keepAlive = fn
	m.keepAliveMu.Unlock()
}

// Connect opens the transport and starts the keep-alive timer.
// Calling Connect while connected reopens the transport; the timer keeps
// running.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	return m.open(ctx, false)
}

// Reconnect reopens the transport of the current session. It fails with
// ErrTransport once Disconnect has ended the session, so a retry racing a
// Disconnect never brings the link back.
func (m *ConnectionManager) Reconnect(ctx context.Context) error {
	return m.open(ctx, true)
}

func (m *ConnectionManager) open(ctx context.Context, sessionOnly bool) error {
	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	s := m.session
	fresh := s == nil
	if fresh && sessionOnly {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s disconnected", ErrTransport, m.host)
	}
	if fresh {
		s = m.startSession()
		m.session = s
	}

	if err := m.transport.Open(ctx, m.host, m.port); err != nil {
		if fresh {
			m.session = nil
			s.cancel()
		}
		m.mu.Unlock()

		if fresh {
			m.stopSession(s)
		}
		m.log.warn("eufy connect failed", "host", m.host, "port", m.port, "error", err)
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return err
	}

	if !s.keepAliveRunning {
		s.keepAliveRunning = true
		s.wg.Add(1)
		go m.keepAliveLoop(s)
	}
	m.mu.Unlock()

	m.log.info("eufy connected", "host", m.host, "port", m.port)
	return nil
}

// Disconnect closes the transport, stops the keep-alive timer and clears
// all subscribers once pending events have been delivered. It is safe to
// call while an exchange is in flight.
func (m *ConnectionManager) Disconnect(_ context.Context) error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	if s != nil {
		s.cancel()
	}
	err := m.transport.Close()
	m.mu.Unlock()

	if s != nil {
		m.stopSession(s)
	}

	m.subsMu.Lock()
	m.subscribers = nil
	m.subsMu.Unlock()

	m.log.info("eufy disconnected", "host", m.host)
	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrTransport, err)
	}
	return nil
}

// IsConnected returns the last connectivity reported by the transport.
func (m *ConnectionManager) IsConnected() bool {
	return m.connected.Load()
}

// Subscribe registers a connectivity handler. Handlers are cleared by
// Disconnect; there is no individual unsubscribe.
func (m *ConnectionManager) Subscribe(handler func(connected bool)) {
	if handler == nil {
		return
	}
	m.subsMu.Lock()
	m.subscribers = append(m.subscribers, handler)
	m.subsMu.Unlock()
}

// startSession creates the session and starts its dispatcher.
// Must be called with mu held.
func (m *ConnectionManager) startSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan bool, eventQueueSize),
	}

	m.eventsMu.Lock()
	m.events = s.events
	m.eventsMu.Unlock()

	s.wg.Add(1)
	go m.dispatch(s)
	return s
}

// stopSession closes the event queue and waits for the dispatcher (after
// it drained the queue) and the keep-alive loop. Must be called without mu.
func (m *ConnectionManager) stopSession(s *session) {
	m.eventsMu.Lock()
	if m.events == s.events {
		m.events = nil
	}
	close(s.events)
	m.eventsMu.Unlock()

	s.wg.Wait()
}

// handleConnectivity is the transport callback.
func (m *ConnectionManager) handleConnectivity(connected bool) {
	m.connected.Store(connected)
	m.log.debug("eufy connectivity changed", "host", m.host, "connected", connected)

	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	if m.events == nil {
		return
	}
	select {
	case m.events <- connected:
	default:
		m.log.warn("eufy connectivity event dropped, queue full", "host", m.host)
	}
}

func (m *ConnectionManager) dispatch(s *session) {
	defer s.wg.Done()
	for connected := range s.events {
		m.subsMu.Lock()
		handlers := make([]func(bool), len(m.subscribers))
		copy(handlers, m.subscribers)
		m.subsMu.Unlock()

		for _, h := range handlers {
			m.notify(h, connected)
		}
	}
}

func (m *ConnectionManager) notify(handler func(bool), connected bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.error("eufy connectivity handler panicked", "host", m.host, "panic", r)
		}
	}()
	handler(connected)
}

func (m *ConnectionManager) keepAliveLoop(s *session) {
	defer s.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			m.runKeepAlive(s.ctx)
		}
	}
}

// runKeepAlive performs one keep-alive. Failures are logged only; the
// next foreground exchange reconnects if the link is gone.
func (m *ConnectionManager) runKeepAlive(ctx context.Context) {
	m.keepAliveMu.RLock()
	fn := m.keepAlive
	m.keepAliveMu.RUnlock()

	if fn == nil {
		return
	}
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		m.log.warn("eufy keep-alive failed", "host", m.host, "error", err)
	}
}
