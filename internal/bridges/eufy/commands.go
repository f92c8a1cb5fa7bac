package eufy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// Command names accepted by the bridge.
const (
	CommandOn             = "on"
	CommandOff            = "off"
	CommandSetPower       = "set_power"
	CommandSetBrightness  = "set_brightness"
	CommandSetTemperature = "set_temperature"
	CommandSetRGB         = "set_rgb"
	CommandSetHSL         = "set_hsl"
	CommandRefresh        = "refresh"
)

// commandSchemas holds the JSON schema for each command's parameters.
var commandSchemas = map[string]string{
	CommandOn:      `{"type": "object"}`,
	CommandOff:     `{"type": "object"}`,
	CommandRefresh: `{"type": "object"}`,
	CommandSetPower: `{
		"type": "object",
		"required": ["on"],
		"properties": {"on": {"type": "boolean"}}
	}`,
	CommandSetBrightness: `{
		"type": "object",
		"required": ["brightness"],
		"properties": {"brightness": {"type": "integer", "minimum": 0, "maximum": 100}}
	}`,
	CommandSetTemperature: `{
		"type": "object",
		"required": ["temperature"],
		"properties": {"temperature": {"type": "integer", "minimum": 0, "maximum": 100}}
	}`,
	CommandSetRGB: `{
		"type": "object",
		"required": ["red", "green", "blue"],
		"properties": {
			"red":   {"type": "integer", "minimum": 0, "maximum": 255},
			"green": {"type": "integer", "minimum": 0, "maximum": 255},
			"blue":  {"type": "integer", "minimum": 0, "maximum": 255}
		}
	}`,
	CommandSetHSL: `{
		"type": "object",
		"required": ["hue", "saturation", "lightness"],
		"properties": {
			"hue":        {"type": "number"},
			"saturation": {"type": "number", "minimum": 0, "maximum": 1},
			"lightness":  {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
}

// CommandValidator checks command parameters against compiled schemas.
// It is immutable after construction and safe for concurrent use.
type CommandValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewCommandValidator compiles every command schema.
func NewCommandValidator() (*CommandValidator, error) {
	c := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema, len(commandSchemas))

	for name, doc := range commandSchemas {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("parsing %s schema: %w", name, err)
		}
		url := "commands/" + name + ".json"
		if err := c.AddResource(url, parsed); err != nil {
			return nil, fmt.Errorf("adding %s schema: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compiling %s schema: %w", name, err)
		}
		schemas[name] = compiled
	}
	return &CommandValidator{schemas: schemas}, nil
}

// Validate returns ErrInvalidCommand for an unknown command and
// ErrInvalidParameters when the parameters do not match its schema.
func (v *CommandValidator) Validate(command string, params map[string]any) error {
	schema, ok := v.schemas[command]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	doc, err := toJSONValue(params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return nil
}

// toJSONValue normalises params to the value shapes the validator expects
// (json.Number for numbers), whatever produced the map.
func toJSONValue(params map[string]any) (any, error) {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
}

// ExecuteCommand validates cmd and applies it to d. The returned state is
// the cached state after the command.
func ExecuteCommand(ctx context.Context, v *CommandValidator, d *Device, cmd CommandMessage) (State, error) {
	if err := v.Validate(cmd.Command, cmd.Parameters); err != nil {
		return State{}, err
	}

	p := cmd.Parameters
	var err error
	switch cmd.Command {
	case CommandOn:
		_, err = d.SetPowerOn(ctx, true)
	case CommandOff:
		_, err = d.SetPowerOn(ctx, false)
	case CommandSetPower:
		on, _ := p["on"].(bool)
		_, err = d.SetPowerOn(ctx, on)
	case CommandSetBrightness:
		_, err = d.SetBrightness(ctx, intParam(p, "brightness"))
	case CommandSetTemperature:
		_, err = d.SetTemperature(ctx, intParam(p, "temperature"))
	case CommandSetRGB:
		_, err = d.SetRGBColors(ctx,
			uint8(intParam(p, "red")), uint8(intParam(p, "green")), uint8(intParam(p, "blue")))
	case CommandSetHSL:
		_, err = d.SetHSLColors(ctx,
			floatParam(p, "hue"), floatParam(p, "saturation"), floatParam(p, "lightness"))
	case CommandRefresh:
		err = d.LoadCurrentState(ctx)
	}
	if err != nil {
		return State{}, err
	}
	return d.State(), nil
}

// AckCodeFor maps an execution error to an acknowledgement error code.
func AckCodeFor(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, device.ErrUnsupportedCapability):
		return ErrCodeUnsupported
	case errors.Is(err, ErrSend), errors.Is(err, ErrExchange), errors.Is(err, ErrTransport):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, ErrCipher), errors.Is(err, ErrFraming), errors.Is(err, ErrDecode), errors.Is(err, ErrEncode):
		return ErrCodeProtocolError
	default:
		return ErrCodeBridgeError
	}
}

func intParam(p map[string]any, key string) int {
	return int(math.Round(floatParam(p, key)))
}

func floatParam(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
