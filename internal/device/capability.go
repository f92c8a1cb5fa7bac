package device

// Capability names a state dimension a device can expose.
type Capability string

// Capabilities.
const (
	CapPower            Capability = "power"
	CapBrightness       Capability = "brightness"
	CapColorTemperature Capability = "color_temperature"
	CapColor            Capability = "color"
)

// CapabilitySet describes which optional state dimensions a model supports.
// Power is implied for every model.
type CapabilitySet struct {
	Brightness       bool `json:"brightness"`
	ColorTemperature bool `json:"color_temperature"`
	Color            bool `json:"color"`
}

// Supports reports whether the set includes the capability.
func (c CapabilitySet) Supports(capability Capability) bool {
	switch capability {
	case CapPower:
		return true
	case CapBrightness:
		return c.Brightness
	case CapColorTemperature:
		return c.ColorTemperature
	case CapColor:
		return c.Color
	default:
		return false
	}
}

// List returns the supported capabilities, power first.
func (c CapabilitySet) List() []Capability {
	caps := []Capability{CapPower}
	if c.Brightness {
		caps = append(caps, CapBrightness)
	}
	if c.ColorTemperature {
		caps = append(caps, CapColorTemperature)
	}
	if c.Color {
		caps = append(caps, CapColor)
	}
	return caps
}

// Require returns an UnsupportedCapabilityError when the capability is
// missing from the set.
func (c CapabilitySet) Require(m Model, capability Capability) error {
	if c.Supports(capability) {
		return nil
	}
	return &UnsupportedCapabilityError{Model: m, Capability: capability}
}
