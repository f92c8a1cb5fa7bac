// Package config handles loading and validating the Eufy bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file next to the config file
//   - Overriding with GRAYLOGIC_EUFY_* environment variables
//   - Validation of required fields and the device list
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/eufy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Eufy.Devices {
//	    fmt.Println(d.ID, d.Model)
//	}
package config
