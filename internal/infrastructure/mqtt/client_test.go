package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-eufy-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// recordingLogger records log calls.
type recordingLogger struct {
	mu     sync.Mutex
	levels []string
}

func (l *recordingLogger) add(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *recordingLogger) Info(string, ...any)  { l.add("info") }
func (l *recordingLogger) Warn(string, ...any)  { l.add("warn") }
func (l *recordingLogger) Error(string, ...any) { l.add("error") }

func (l *recordingLogger) Levels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.levels...)
}

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*config.MQTTConfig)
		wantScheme string
		wantUser   string
	}{
		{name: "plain", modify: func(*config.MQTTConfig) {}, wantScheme: "tcp"},
		{name: "tls", modify: func(c *config.MQTTConfig) { c.Broker.TLS = true }, wantScheme: "ssl"},
		{
			name:       "auth",
			modify:     func(c *config.MQTTConfig) { c.Auth = config.MQTTAuthConfig{Username: "eufy", Password: "pw"} },
			wantScheme: "tcp",
			wantUser:   "eufy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			opts := buildClientOptions(cfg)

			if len(opts.Servers) != 1 || opts.Servers[0].Scheme != tt.wantScheme {
				t.Fatalf("Servers = %v, want scheme %s", opts.Servers, tt.wantScheme)
			}
			if opts.Servers[0].Host != "127.0.0.1:1883" {
				t.Errorf("broker host = %q", opts.Servers[0].Host)
			}
			if opts.ClientID != "graylogic-eufy-test" {
				t.Errorf("ClientID = %q", opts.ClientID)
			}
			if opts.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", opts.Username, tt.wantUser)
			}
			if !opts.AutoReconnect || !opts.CleanSession {
				t.Error("expected auto-reconnect and clean session")
			}
			if tt.wantScheme == "ssl" && (opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion) {
				t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
			}
		})
	}
}

func TestWithWill(t *testing.T) {
	c := &Client{options: buildClientOptions(testConfig())}
	WithWill(Topics{}.BridgeHealth("eufy"), []byte(`{"status":"offline"}`))(c)

	if !c.options.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if c.options.WillTopic != "graylogic/health/eufy" || !c.options.WillRetained || c.options.WillQos != 1 {
		t.Errorf("will = %s qos=%d retained=%v", c.options.WillTopic, c.options.WillQos, c.options.WillRetained)
	}
	if string(c.options.WillPayload) != `{"status":"offline"}` {
		t.Errorf("WillPayload = %s", c.options.WillPayload)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1

	// With ConnectRetry the initial connect keeps retrying until the
	// timeout; either outcome must be reported as ErrConnectionFailed.
	_, err := Connect(cfg, WithLogger(&recordingLogger{}))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on uninitialised client = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"invalid qos", "graylogic/state/eufy/a", 3, nil, ErrInvalidQoS},
		{"oversized", "graylogic/state/eufy/a", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"disconnected", "graylogic/state/eufy/a", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "graylogic/command/eufy/+", 3, handler, ErrInvalidQoS},
		{"nil handler", "graylogic/command/eufy/+", 1, nil, ErrSubscribeFailed},
		{"disconnected", "graylogic/command/eufy/+", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Subscribe(tt.topic, tt.qos, tt.handler); !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(client.subscriptions) != 0 {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var got string
	client.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, &fakeMessage{topic: "graylogic/command/eufy/a", payload: []byte("on")})
	if got != "graylogic/command/eufy/a=on" {
		t.Errorf("handler saw %q", got)
	}

	client.wrapHandler(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, &fakeMessage{topic: "t"})

	client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, &fakeMessage{topic: "t"})

	levels := strings.Join(logger.Levels(), ",")
	if levels != "warn,error" {
		t.Errorf("log levels = %q, want warn,error", levels)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	var connects, disconnects int
	var lastErr error
	client.SetOnConnect(func() { connects++ })
	client.SetOnDisconnect(func(err error) {
		disconnects++
		lastErr = err
	})

	client.handleDisconnect(errors.New("broker gone"))
	if disconnects != 1 || lastErr == nil || lastErr.Error() != "broker gone" {
		t.Errorf("disconnect callback: count=%d err=%v", disconnects, lastErr)
	}

	client.handleConnect()
	if connects != 1 {
		t.Errorf("connect callback count = %d, want 1", connects)
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got, want string
	}{
		{topics.BridgeState("eufy", "kettle"), "graylogic/state/eufy/kettle"},
		{topics.BridgeCommand("eufy", "kettle"), "graylogic/command/eufy/kettle"},
		{topics.BridgeAck("eufy", "kettle"), "graylogic/ack/eufy/kettle"},
		{topics.BridgeConnectivity("eufy", "kettle"), "graylogic/connectivity/eufy/kettle"},
		{topics.BridgeHealth("eufy"), "graylogic/health/eufy"},
		{topics.BridgeCommands("eufy"), "graylogic/command/eufy/+"},
		{topics.AllBridgeStates(), "graylogic/state/+/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
