// Package logging provides structured logging for the Eufy bridge.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service=graylogic-eufy and version on every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("eufy").Info("device connected", "device_id", id)
//
// Never log device access codes or cipher material.
package logging
