// Package api implements the HTTP REST API and WebSocket server for the
// Eufy bridge.
//
// This package provides:
//   - REST endpoints to list devices, read cached state, refresh and
//     send commands
//   - Paginated access to the command audit trail
//   - WebSocket hub relaying bridge events (device.state_changed,
//     device.connectivity_changed) to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Requests are served from the bridge's in-memory view of each device.
// Commands go through the same validation and execution path as MQTT
// commands, so a PUT to /api/v1/devices/{id}/state behaves exactly like a
// message on graylogic/command/eufy/{id}.
//
// # Graceful Degradation
//
// The audit endpoint returns 503 when no audit repository is configured.
// Everything else works without MQTT, InfluxDB or SQLite.
package api
