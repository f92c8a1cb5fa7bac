package eufy

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeDeviceServer is a TCP listener that echoes every request reversed.
type fakeDeviceServer struct {
	listener net.Listener
	mu       sync.Mutex
	conns    []net.Conn
	received [][]byte
	silent   bool
}

func newFakeDeviceServer(t *testing.T) *fakeDeviceServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeDeviceServer{listener: ln}
	go s.serve()
	t.Cleanup(func() { s.Close() })
	return s
}

func (s *fakeDeviceServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *fakeDeviceServer) handle(conn net.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		req := append([]byte(nil), buf[:n]...)

		s.mu.Lock()
		s.received = append(s.received, req)
		silent := s.silent
		s.mu.Unlock()
		if silent {
			continue
		}

		reply := make([]byte, len(req))
		for i := range req {
			reply[i] = req[len(req)-1-i]
		}
		// Split the reply to exercise the settle loop.
		half := len(reply) / 2
		_, _ = conn.Write(reply[:half])
		time.Sleep(5 * time.Millisecond)
		_, _ = conn.Write(reply[half:])
	}
}

func (s *fakeDeviceServer) HostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (s *fakeDeviceServer) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

func (s *fakeDeviceServer) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *fakeDeviceServer) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

func (s *fakeDeviceServer) Close() {
	s.listener.Close()
	s.DropConnections()
}

type connectivityRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *connectivityRecorder) record(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, connected)
}

func (r *connectivityRecorder) Events() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestTCPTransportExchange(t *testing.T) {
	server := newFakeDeviceServer(t)
	host, port := server.HostPort(t)

	tr := NewTCPTransport(TransportConfig{ReadTimeout: time.Second, ReplySettle: 30 * time.Millisecond})
	rec := &connectivityRecorder{}
	tr.SetOnConnectivity(rec.record)

	ctx := context.Background()
	if err := tr.Open(ctx, host, port); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	reply, err := tr.WriteAndAwaitReply(ctx, []byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("WriteAndAwaitReply() error: %v", err)
	}
	if want := []byte{6, 5, 4, 3, 2, 1}; !bytes.Equal(reply, want) {
		t.Errorf("reply = %v, want %v", reply, want)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	events := rec.Events()
	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("connectivity events = %v, want [true false]", events)
	}
}

func TestTCPTransportWrite(t *testing.T) {
	server := newFakeDeviceServer(t)
	server.SetSilent(true)
	host, port := server.HostPort(t)

	tr := NewTCPTransport(TransportConfig{})
	if err := tr.Open(context.Background(), host, port); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer tr.Close()

	if err := tr.Write(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	waitFor(t, func() bool { return len(server.Received()) == 1 })
}

func TestTCPTransportNotConnected(t *testing.T) {
	tr := NewTCPTransport(TransportConfig{})

	if err := tr.Write(context.Background(), []byte{1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write() error = %v, want ErrNotConnected", err)
	}
	if _, err := tr.WriteAndAwaitReply(context.Background(), []byte{1}); !errors.Is(err, ErrTransport) {
		t.Errorf("WriteAndAwaitReply() error = %v, want ErrTransport", err)
	}
}

func TestTCPTransportOpenFailure(t *testing.T) {
	tr := NewTCPTransport(TransportConfig{ConnectTimeout: 100 * time.Millisecond})
	tr.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	if err := tr.Open(context.Background(), "127.0.0.1", DefaultPort); !errors.Is(err, ErrTransport) {
		t.Errorf("Open() error = %v, want ErrTransport", err)
	}
}

func TestTCPTransportReportsPeerClose(t *testing.T) {
	server := newFakeDeviceServer(t)
	server.SetSilent(true)
	host, port := server.HostPort(t)

	tr := NewTCPTransport(TransportConfig{ReadTimeout: time.Second})
	rec := &connectivityRecorder{}
	tr.SetOnConnectivity(rec.record)

	if err := tr.Open(context.Background(), host, port); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	waitFor(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.conns) == 1
	})
	server.DropConnections()

	_, err := tr.WriteAndAwaitReply(context.Background(), []byte{9})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("WriteAndAwaitReply() error = %v, want ErrTransport", err)
	}

	events := rec.Events()
	if len(events) != 2 || events[1] {
		t.Errorf("connectivity events = %v, want [true false]", events)
	}
}
