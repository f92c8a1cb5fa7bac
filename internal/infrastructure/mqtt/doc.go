// Package mqtt provides MQTT client connectivity for the Eufy bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is the message bus between Gray Logic Core and its protocol bridges.
// The Eufy bridge receives commands and publishes state, connectivity,
// acknowledgements and health through it.
//
//	Gray Logic Core ↔ MQTT Broker ↔ Eufy Bridge ↔ Devices
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithWill(mqtt.Topics{}.BridgeHealth("eufy"), lwtPayload),
//	    mqtt.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.BridgeState("eufy", "kitchen-kettle")
//	err = client.Publish(topic, payload, 1, true)
package mqtt
