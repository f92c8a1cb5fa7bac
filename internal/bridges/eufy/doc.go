// Package eufy implements the local-network driver and MQTT bridge for
// Eufy smart plugs, wall switches and light bulbs.
//
// Devices listen on TCP port 55556 and speak a small protobuf protocol
// wrapped in a length-prefixed, AES-128-CBC encrypted envelope. This
// package keeps one connection per device, refreshes it with a periodic
// keep-alive, and retries a failed exchange once after reconnecting.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   Eufy Bridge   │   TCP/55556
//	│      Core       │◄────────►│   (this pkg)    │◄────────────► Devices
//	└─────────────────┘          └─────────────────┘
//
// Layers, from the wire up:
//
//   - Transport: raw byte stream (TCPTransport)
//   - Cipher and framing: AES envelope and 2-byte little-endian length
//   - Codec: per-schema protobuf layouts (WireCodec)
//   - ConnectionManager: connect, disconnect, connectivity events, keep-alive timer
//   - ExchangeEngine: serialised request/response with one reconnect-and-retry
//   - Device: capability-gated getters and setters over a cached state
//   - Bridge: MQTT commands, acknowledgements, state and health publishing
//
// # Usage
//
//	d, err := eufy.NewDevice(eufy.DeviceConfig{Model: "T1013", Code: "ABC123", IP: "192.168.1.40"})
//	if err != nil {
//	    return err
//	}
//	if err := d.Connect(ctx); err != nil {
//	    return err
//	}
//	defer d.Disconnect(ctx)
//
//	hsl, err := d.SetHSLColors(ctx, 120, 1, 0.5)
//
// # Thread Safety
//
// Getters, Connect, Disconnect and Subscribe are safe for concurrent use.
// Setters on one Device must not run concurrently; the Bridge serialises
// them per device.
package eufy
