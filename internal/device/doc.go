// Package device is the capability registry for Eufy smart-home hardware.
//
// It is a static lookup table from a model identifier (vendor SKU) to:
//
//   - the device category (power plug, wall switch, light bulb)
//   - the capability set (brightness, color temperature, color)
//   - the response schema the protocol driver decodes replies with
//
// Capability gating always goes through CapabilitySet. The schema helpers
// (IsWhiteBulb, IsColorBulb, IsPlugOrSwitch) only choose a wire layout.
//
// # Usage
//
//	model, err := device.ParseModel("T1013")
//	if err != nil {
//	    return err // device.ErrUnknownModel
//	}
//	caps := device.CapabilitiesOf(model)
//	if err := caps.Require(model, device.CapColor); err != nil {
//	    return err // device.ErrUnsupportedCapability
//	}
//
// # Thread Safety
//
// The registry is immutable; every function is safe for concurrent use.
package device
