package eufy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-eufy/internal/infrastructure/mqtt"
)

// MQTT message types exchanged between Gray Logic Core and the Eufy bridge.

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "eufy"

// Topic builders. Bridge topics use the flat scheme
// graylogic/{category}/eufy/{device_id}.
var topics = mqtt.Topics{}

// StateTopic returns the retained state topic for a device.
func StateTopic(deviceID string) string { return topics.BridgeState(Protocol, deviceID) }

// CommandTopic returns the command topic for a device.
func CommandTopic(deviceID string) string { return topics.BridgeCommand(Protocol, deviceID) }

// AckTopic returns the acknowledgement topic for a device.
func AckTopic(deviceID string) string { return topics.BridgeAck(Protocol, deviceID) }

// ConnectivityTopic returns the retained connectivity topic for a device.
func ConnectivityTopic(deviceID string) string {
	return topics.BridgeConnectivity(Protocol, deviceID)
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string { return topics.BridgeHealth(Protocol) }

// CommandSubscription is the wildcard the bridge subscribes to.
func CommandSubscription() string { return topics.BridgeCommands(Protocol) }

// CommandMessage is sent from Core to the bridge to change a device.
// Topic: graylogic/command/eufy/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the configured device id. Taken from the topic when empty.
	DeviceID string `json:"device_id"`

	// Command is one of the Command* names.
	Command string `json:"command"`

	// Parameters are validated against the command's JSON schema.
	//   {"brightness": 50} for set_brightness
	//   {"red": 255, "green": 0, "blue": 0} for set_rgb
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command came from ("mqtt", "api", ...).
	Source string `json:"source"`

	UserID string `json:"user_id,omitempty"`
}

// MarshalJSON encodes the timestamp as RFC 3339.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON decodes a command; the timestamp is optional.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the device applied the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/eufy/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// State is the device state after an accepted command.
	State *State `json:"state,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeUnsupported       = "UNSUPPORTED"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage carries the cached state of a device.
// Topic: graylogic/state/eufy/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Protocol  string    `json:"protocol"`
	State     State     `json:"state"`
}

// ConnectivityMessage reports a device link transition.
// Topic: graylogic/connectivity/eufy/{device_id}
// QoS: 1, Retained: Yes
type ConnectivityMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Connected bool      `json:"connected"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: graylogic/health/eufy
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge           string         `json:"bridge"`
	Timestamp        time.Time      `json:"timestamp"`
	Status           HealthStatus   `json:"status"`
	Version          string         `json:"version"`
	UptimeSeconds    int64          `json:"uptime_seconds"`
	DevicesManaged   int            `json:"devices_managed"`
	DevicesConnected int            `json:"devices_connected"`
	Devices          []DeviceHealth `json:"devices,omitempty"`
	Reason           string         `json:"reason,omitempty"`
}

// DeviceHealth is the per-device part of a health message.
type DeviceHealth struct {
	ID        string        `json:"id"`
	Model     string        `json:"model"`
	Connected bool          `json:"connected"`
	Stats     ExchangeStats `json:"stats"`
}

// NewAckMessage creates an accepted acknowledgement.
func NewAckMessage(cmd CommandMessage, state *State) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckAccepted,
		Protocol:  Protocol,
		State:     state,
	}
}

// NewAckError creates a failed acknowledgement.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Protocol:  Protocol,
		Error:     &AckError{Code: code, Message: message},
	}
}

// NewStateMessage creates a state message.
func NewStateMessage(deviceID, model string, state State) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Model:     model,
		Protocol:  Protocol,
		State:     state,
	}
}

// NewLWTMessage creates the Last Will message published by the broker if
// the bridge disappears.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected disconnect",
	}
}
