package mqtt

import "fmt"

// TopicPrefixBridge is the base for all bridge topics.
// Flat scheme: graylogic/{category}/{protocol}/{device_id}
const TopicPrefixBridge = "graylogic"

// Topics provides builders for bridge MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("eufy", "kitchen-kettle")
//	// Returns: "graylogic/state/eufy/kitchen-kettle"
type Topics struct{}

// BridgeState returns the retained device state topic.
//
// Example: graylogic/state/eufy/kitchen-kettle
func (Topics) BridgeState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeCommand returns the topic for commands to a bridge device.
//
// Example: graylogic/command/eufy/kitchen-kettle
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeAck returns the topic for command acknowledgements.
//
// Example: graylogic/ack/eufy/kitchen-kettle
func (Topics) BridgeAck(protocol, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeConnectivity returns the retained device link topic.
//
// Example: graylogic/connectivity/eufy/kitchen-kettle
func (Topics) BridgeConnectivity(protocol, deviceID string) string {
	return fmt.Sprintf("%s/connectivity/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/eufy
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// BridgeCommands returns a pattern matching every command to one bridge.
//
// Pattern: graylogic/command/eufy/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefixBridge, protocol)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}
