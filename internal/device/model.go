package device

import (
	"fmt"
	"sort"
)

// Model is the vendor SKU identifier of a device (e.g. "T1201").
// Models are immutable once a device is constructed.
type Model string

// Known device models.
const (
	ModelPlugT1201   Model = "T1201"
	ModelPlugT1202   Model = "T1202"
	ModelPlugT1203   Model = "T1203"
	ModelSwitchT1211 Model = "T1211"
	ModelWhiteT1011  Model = "T1011"
	ModelWhiteT1012  Model = "T1012"
	ModelColorT1013  Model = "T1013"
)

// Category is the functional grouping of a model.
type Category string

// Device categories.
const (
	CategoryPowerPlug Category = "power_plug"
	CategorySwitch    Category = "switch"
	CategoryLightBulb Category = "light_bulb"
)

// Schema selects the wire message layout used to decode responses
// from a model.
type Schema int

// Response schemas.
const (
	SchemaUnknown Schema = iota
	SchemaPlugSwitch
	SchemaWhiteBulb
	SchemaColorBulb
)

// String returns the schema name used in logs.
func (s Schema) String() string {
	switch s {
	case SchemaPlugSwitch:
		return "plug_switch"
	case SchemaWhiteBulb:
		return "white_bulb"
	case SchemaColorBulb:
		return "color_bulb"
	default:
		return "unknown"
	}
}

// modelSpec is one row of the registry table.
type modelSpec struct {
	category     Category
	capabilities CapabilitySet
	schema       Schema
}

var (
	plugSwitchCaps = CapabilitySet{}
	whiteBulbCaps  = CapabilitySet{Brightness: true, ColorTemperature: true}
	colorBulbCaps  = CapabilitySet{Brightness: true, ColorTemperature: true, Color: true}
)

// registry maps every supported model to its category, capabilities and
// response schema. It is never mutated after package init.
var registry = map[Model]modelSpec{
	ModelPlugT1201:   {CategoryPowerPlug, plugSwitchCaps, SchemaPlugSwitch},
	ModelPlugT1202:   {CategoryPowerPlug, plugSwitchCaps, SchemaPlugSwitch},
	ModelPlugT1203:   {CategoryPowerPlug, plugSwitchCaps, SchemaPlugSwitch},
	ModelSwitchT1211: {CategorySwitch, plugSwitchCaps, SchemaPlugSwitch},
	ModelWhiteT1011:  {CategoryLightBulb, whiteBulbCaps, SchemaWhiteBulb},
	ModelWhiteT1012:  {CategoryLightBulb, whiteBulbCaps, SchemaWhiteBulb},
	ModelColorT1013:  {CategoryLightBulb, colorBulbCaps, SchemaColorBulb},
}

// ParseModel validates a model string.
//
// Returns:
//   - Model: The validated model
//   - error: ErrUnknownModel if the string does not name a supported model
func ParseModel(s string) (Model, error) {
	m := Model(s)
	if _, ok := registry[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return m, nil
}

// KnownModels returns all supported models in lexical order.
func KnownModels() []Model {
	models := make([]Model, 0, len(registry))
	for m := range registry {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	return models
}

// IsKnown reports whether the model is in the registry.
func (m Model) IsKnown() bool {
	_, ok := registry[m]
	return ok
}

// CategoryOf returns the category of a model.
func CategoryOf(m Model) (Category, error) {
	entry, ok := registry[m]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, string(m))
	}
	return entry.category, nil
}

// CapabilitiesOf returns the capability set of a model.
// Unknown models have no capabilities.
func CapabilitiesOf(m Model) CapabilitySet {
	return registry[m].capabilities
}

// SchemaOf returns the response schema used to decode replies from the model.
// Unknown models return SchemaUnknown.
func SchemaOf(m Model) Schema {
	return registry[m].schema
}

// IsWhiteBulb reports whether the model is a dimmable white bulb.
func IsWhiteBulb(m Model) bool {
	return SchemaOf(m) == SchemaWhiteBulb
}

// IsColorBulb reports whether the model is the color bulb.
func IsColorBulb(m Model) bool {
	return SchemaOf(m) == SchemaColorBulb
}

// IsPlugOrSwitch reports whether the model is a plug or a wall switch.
func IsPlugOrSwitch(m Model) bool {
	return SchemaOf(m) == SchemaPlugSwitch
}

// DefaultName returns the display name used when none is configured.
func (c Category) DefaultName() string {
	switch c {
	case CategoryPowerPlug:
		return "Eufy Plug"
	case CategorySwitch:
		return "Eufy Switch"
	case CategoryLightBulb:
		return "Eufy Bulb"
	default:
		return "Eufy Device"
	}
}
