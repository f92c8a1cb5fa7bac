package eufy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Default timeouts for device communication.
const (
	// DefaultPort is the fixed TCP port every device listens on.
	DefaultPort = 55556

	// defaultConnectTimeout is the maximum time to wait for the TCP dial.
	defaultConnectTimeout = 5 * time.Second

	// defaultReadTimeout is the maximum time to wait for the first reply byte.
	defaultReadTimeout = 5 * time.Second

	// defaultWriteTimeout is the timeout for a single write.
	defaultWriteTimeout = 5 * time.Second

	// defaultReplySettle is how long the connection must stay quiet before a
	// reply is considered complete.
	defaultReplySettle = 50 * time.Millisecond

	// maxReplySize caps a single reply read.
	maxReplySize = 4096
)

// Transport is the raw byte stream to one device.
//
// Implementations report connectivity transitions through the callback set
// with SetOnConnectivity, including unexpected disconnects detected during
// Write or WriteAndAwaitReply.
type Transport interface {
	// Open connects to host:port, replacing any existing connection.
	Open(ctx context.Context, host string, port int) error

	// Close closes the connection. Closing a closed transport is a no-op.
	Close() error

	// Write sends bytes without waiting for a reply.
	Write(ctx context.Context, data []byte) error

	// WriteAndAwaitReply sends bytes and returns the reply read from the
	// same connection.
	WriteAndAwaitReply(ctx context.Context, data []byte) ([]byte, error)

	// SetOnConnectivity sets the connectivity transition callback.
	SetOnConnectivity(callback func(connected bool))
}

// TransportConfig holds TCP transport timeouts. Zero values use defaults.
type TransportConfig struct {
	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for the first byte of a reply.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration

	// ReplySettle is the quiet period that ends a reply.
	ReplySettle time.Duration
}

// Ensure TCPTransport implements Transport.
var _ Transport = (*TCPTransport)(nil)

// TCPTransport is a Transport over a plain TCP connection.
//
// Replies carry no outer length prefix (the length lives inside the
// encrypted envelope), so a reply is read until the connection has been
// quiet for ReplySettle after the first byte arrived.
//
// Thread Safety:
//   - All methods are safe for concurrent use, but callers must serialise
//     exchanges themselves; the exchange engine does this.
type TCPTransport struct {
	cfg TransportConfig

	connMu    sync.Mutex
	conn      net.Conn
	connected bool

	onConnectivity func(bool)
	callbackMu     sync.RWMutex

	// dial is replaceable in tests.
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPTransport creates a transport with the given timeouts.
// No connection is made until Open is called.
func NewTCPTransport(cfg TransportConfig) *TCPTransport {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReplySettle == 0 {
		cfg.ReplySettle = defaultReplySettle
	}

	var dialer net.Dialer
	return &TCPTransport{
		cfg:  cfg,
		dial: dialer.DialContext,
	}
}

// Open dials the device. An existing connection is closed first.
func (t *TCPTransport) Open(ctx context.Context, host string, port int) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	conn, err := t.dial(dialCtx, "tcp", address)
	if err != nil {
		t.setConnected(false)
		return fmt.Errorf("%w: dial %s: %w", ErrTransport, address, err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.setConnected(true)
	return nil
}

// Close closes the connection and reports the transition.
func (t *TCPTransport) Close() error {
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	t.setConnected(false)
	return err
}

// Write sends data on the current connection.
func (t *TCPTransport) Write(ctx context.Context, data []byte) error {
	conn, err := t.current()
	if err != nil {
		return err
	}
	return t.write(ctx, conn, data)
}

// WriteAndAwaitReply sends data and reads the reply.
func (t *TCPTransport) WriteAndAwaitReply(ctx context.Context, data []byte) ([]byte, error) {
	conn, err := t.current()
	if err != nil {
		return nil, err
	}
	if err := t.write(ctx, conn, data); err != nil {
		return nil, err
	}
	return t.readReply(ctx, conn)
}

// SetOnConnectivity sets the connectivity transition callback.
func (t *TCPTransport) SetOnConnectivity(callback func(connected bool)) {
	t.callbackMu.Lock()
	t.onConnectivity = callback
	t.callbackMu.Unlock()
}

// current returns the open connection or ErrNotConnected.
func (t *TCPTransport) current() (net.Conn, error) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn == nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, ErrNotConnected)
	}
	return t.conn, nil
}

func (t *TCPTransport) write(ctx context.Context, conn net.Conn, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if err := conn.SetWriteDeadline(deadlineFor(ctx, t.cfg.WriteTimeout)); err != nil {
		return t.fail(conn, fmt.Errorf("set write deadline: %w", err))
	}
	if _, err := conn.Write(data); err != nil {
		return t.fail(conn, fmt.Errorf("write: %w", err))
	}
	return nil
}

// readReply reads until the peer has been quiet for ReplySettle.
func (t *TCPTransport) readReply(ctx context.Context, conn net.Conn) ([]byte, error) {
	buf := make([]byte, maxReplySize)

	if err := conn.SetReadDeadline(deadlineFor(ctx, t.cfg.ReadTimeout)); err != nil {
		return nil, t.fail(conn, fmt.Errorf("set read deadline: %w", err))
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, t.fail(conn, fmt.Errorf("read: %w", err))
	}

	for n < len(buf) {
		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.ReplySettle)); err != nil {
			return nil, t.fail(conn, fmt.Errorf("set read deadline: %w", err))
		}
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			return nil, t.fail(conn, fmt.Errorf("read: %w", err))
		}
	}

	reply := make([]byte, n)
	copy(reply, buf[:n])
	return reply, nil
}

// fail drops a broken connection and reports the disconnect.
func (t *TCPTransport) fail(conn net.Conn, err error) error {
	t.connMu.Lock()
	if t.conn == conn {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	t.setConnected(false)
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// setConnected records the state and fires the callback on transitions.
func (t *TCPTransport) setConnected(connected bool) {
	t.connMu.Lock()
	changed := t.connected != connected
	t.connected = connected
	t.connMu.Unlock()

	if !changed {
		return
	}

	t.callbackMu.RLock()
	callback := t.onConnectivity
	t.callbackMu.RUnlock()

	if callback != nil {
		callback(connected)
	}
}

// deadlineFor returns now+timeout, or the context deadline if sooner.
func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}
