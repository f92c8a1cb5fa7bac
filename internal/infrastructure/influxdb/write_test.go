package influxdb

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *fakeWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines := make([]string, len(w.points))
	for i, p := range w.points {
		lines[i] = write.PointToLineProtocol(p, time.Nanosecond)
	}
	return lines
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func TestWriteDeviceState(t *testing.T) {
	c, w := newTestClient()

	c.WriteDeviceState("kitchen-lamp", "T1012", map[string]any{"power": true, "brightness": 80})
	c.WriteDeviceState("kitchen-lamp", "T1012", nil)

	lines := w.Lines()
	if len(lines) != 1 {
		t.Fatalf("points = %d, want 1 (empty field sets are skipped)", len(lines))
	}
	line := lines[0]
	for _, want := range []string{
		"eufy_device_state,",
		"device_id=kitchen-lamp",
		"model=T1012",
		"power=true",
		"brightness=80i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteKeepAlive(t *testing.T) {
	c, w := newTestClient()

	c.WriteKeepAlive("plug", 15*time.Millisecond, true)
	c.WriteKeepAlive("plug", 0, false)

	lines := w.Lines()
	if len(lines) != 2 {
		t.Fatalf("points = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "rtt_ms=15") || !strings.Contains(lines[0], "ok=true") {
		t.Errorf("success line = %q", lines[0])
	}
	if strings.Contains(lines[1], "rtt_ms") || !strings.Contains(lines[1], "ok=false") {
		t.Errorf("failure line = %q", lines[1])
	}
}

func TestWritesDroppedWhenDisconnected(t *testing.T) {
	c, w := newTestClient()
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	c.WriteKeepAlive("plug", time.Millisecond, true)
	c.WritePoint("x", nil, map[string]any{"v": 1})
	c.Flush()

	if len(w.Lines()) != 0 {
		t.Error("points written after Close()")
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1 (from Close only)", w.flushes)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	c, _ := newTestClient()
	cause := errors.New("bucket not found")

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- cause
	close(errs)
	c.handleWriteErrors(errs)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, cause) {
			t.Errorf("callback error = %v, want ErrWriteFailed wrapping the cause", err)
		}
	default:
		t.Fatal("callback not invoked")
	}
}
