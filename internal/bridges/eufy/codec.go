package eufy

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nerrad567/gray-logic-eufy/internal/device"
)

// Codec serialises packets using the wire layout of a response schema.
type Codec interface {
	Marshal(schema device.Schema, p *Packet) ([]byte, error)
	Unmarshal(schema device.Schema, data []byte) (*Packet, error)
}

// Top-level message fields, shared by every schema.
const (
	fieldSequence protowire.Number = 1
	fieldCode     protowire.Number = 2
	fieldInfo     protowire.Number = 3
	fieldPing     protowire.Number = 4
)

// Info and inner packet fields.
const (
	infoType   protowire.Number = 1
	infoPacket protowire.Number = 2

	packetUnknown1 protowire.Number = 1
	packetGet      protowire.Number = 2
	packetSet      protowire.Number = 3
	packetStatus   protowire.Number = 4
)

// State body fields.
const (
	// set bodies
	setCommand protowire.Number = 1
	setState   protowire.Number = 2

	// plug status and white bulb light state
	lightPower       protowire.Number = 1
	lightBrightness  protowire.Number = 2
	lightTemperature protowire.Number = 3

	// color bulb set and status bodies
	colorMode    protowire.Number = 1
	colorPower   protowire.Number = 2
	colorLightCT protowire.Number = 3
	colorRGB     protowire.Number = 4

	ctBrightness  protowire.Number = 1
	ctTemperature protowire.Number = 2

	rgbRed        protowire.Number = 1
	rgbGreen      protowire.Number = 2
	rgbBlue       protowire.Number = 3
	rgbBrightness protowire.Number = 4
)

// Protocol constants.
const (
	commandGetState = 1
	commandSetState = 7
	infoTypeRequest = 2
	unknown1Value   = 1

	colorModeWhite = 0
	colorModeColor = 1
)

// Ensure WireCodec implements Codec.
var _ Codec = WireCodec{}

// WireCodec is the protobuf-wire-format codec used by the devices.
//
// Decoding stops at the first zero byte in a tag position, so zero-padded
// plaintext decodes cleanly.
type WireCodec struct{}

// Marshal encodes p. Ping packets are schema independent; state packets
// need a known schema.
func (WireCodec) Marshal(schema device.Schema, p *Packet) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil packet", ErrEncode)
	}

	var b []byte
	b = appendVarint(b, fieldSequence, uint64(p.Sequence))
	if p.Code != "" {
		b = protowire.AppendTag(b, fieldCode, protowire.BytesType)
		b = protowire.AppendString(b, p.Code)
	}

	switch p.Kind {
	case KindPing:
		b = appendMessage(b, fieldPing, nil)
	case KindGetState, KindSetState, KindState:
		info, err := marshalInfo(schema, p)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, fieldInfo, info)
	default:
		return nil, fmt.Errorf("%w: packet kind %s", ErrEncode, p.Kind)
	}
	return b, nil
}

// Unmarshal decodes data using the layout of schema.
func (WireCodec) Unmarshal(schema device.Schema, data []byte) (*Packet, error) {
	if schema == device.SchemaUnknown {
		return nil, fmt.Errorf("%w: no schema", device.ErrUnsupportedModel)
	}

	fields, err := parseFields(data)
	if err != nil {
		return nil, err
	}

	p := &Packet{}
	for _, f := range fields {
		switch f.num {
		case fieldSequence:
			if err := f.expect(protowire.VarintType); err != nil {
				return nil, err
			}
			p.Sequence = uint32(f.value)
		case fieldCode:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			p.Code = string(f.bytes)
		case fieldPing:
			p.Kind = KindPing
		case fieldInfo:
			if err := f.expect(protowire.BytesType); err != nil {
				return nil, err
			}
			if err := unmarshalInfo(schema, f.bytes, p); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func marshalInfo(schema device.Schema, p *Packet) ([]byte, error) {
	if schema == device.SchemaUnknown {
		return nil, fmt.Errorf("%w: no schema", device.ErrUnsupportedModel)
	}

	pkt := appendVarint(nil, packetUnknown1, unknown1Value)
	switch p.Kind {
	case KindGetState:
		pkt = appendMessage(pkt, packetGet, appendVarint(nil, setCommand, commandGetState))
	case KindSetState:
		pkt = appendMessage(pkt, packetSet, marshalSetBody(schema, p.State))
	case KindState:
		pkt = appendMessage(pkt, packetStatus, marshalStatusBody(schema, p.State))
	}

	info := appendVarint(nil, infoType, infoTypeRequest)
	return appendMessage(info, infoPacket, pkt), nil
}

func marshalSetBody(schema device.Schema, s StateFields) []byte {
	b := appendVarint(nil, setCommand, commandSetState)
	switch schema {
	case device.SchemaPlugSwitch:
		if s.Power != nil {
			b = appendVarint(b, setState, protowire.EncodeBool(*s.Power))
		}
	case device.SchemaWhiteBulb:
		b = appendMessage(b, setState, marshalLight(s))
	case device.SchemaColorBulb:
		b = append(b, marshalColorBody(s)...)
	}
	return b
}

func marshalStatusBody(schema device.Schema, s StateFields) []byte {
	switch schema {
	case device.SchemaPlugSwitch:
		if s.Power != nil {
			return appendVarint(nil, lightPower, protowire.EncodeBool(*s.Power))
		}
		return nil
	case device.SchemaWhiteBulb:
		return marshalLight(s)
	default:
		mode := uint64(colorModeWhite)
		if s.Color != nil {
			mode = colorModeColor
		}
		return append(appendVarint(nil, colorMode, mode), marshalColorBody(s)...)
	}
}

func marshalLight(s StateFields) []byte {
	var b []byte
	if s.Power != nil {
		b = appendVarint(b, lightPower, protowire.EncodeBool(*s.Power))
	}
	if s.Brightness != nil {
		b = appendVarint(b, lightBrightness, uint64(*s.Brightness))
	}
	if s.Temperature != nil {
		b = appendVarint(b, lightTemperature, uint64(*s.Temperature))
	}
	return b
}

// marshalColorBody encodes the power, lightct and color fields shared by
// color bulb set and status bodies.
func marshalColorBody(s StateFields) []byte {
	var b []byte
	if s.Power != nil {
		b = appendVarint(b, colorPower, protowire.EncodeBool(*s.Power))
	}
	if s.Brightness != nil || s.Temperature != nil {
		var ct []byte
		if s.Brightness != nil {
			ct = appendVarint(ct, ctBrightness, uint64(*s.Brightness))
		}
		if s.Temperature != nil {
			ct = appendVarint(ct, ctTemperature, uint64(*s.Temperature))
		}
		b = appendMessage(b, colorLightCT, ct)
	}
	if s.Color != nil {
		rgb := appendVarint(nil, rgbRed, uint64(s.Color.Red))
		rgb = appendVarint(rgb, rgbGreen, uint64(s.Color.Green))
		rgb = appendVarint(rgb, rgbBlue, uint64(s.Color.Blue))
		if s.Brightness != nil {
			rgb = appendVarint(rgb, rgbBrightness, uint64(*s.Brightness))
		}
		b = appendMessage(b, colorRGB, rgb)
	}
	return b
}

func unmarshalInfo(schema device.Schema, data []byte, p *Packet) error {
	fields, err := parseFields(data)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if f.num != infoPacket {
			continue
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		inner, err := parseFields(f.bytes)
		if err != nil {
			return err
		}

		for _, pf := range inner {
			switch pf.num {
			case packetGet:
				p.Kind = KindGetState
			case packetSet:
				if err := pf.expect(protowire.BytesType); err != nil {
					return err
				}
				p.Kind = KindSetState
				if p.State, err = unmarshalSetBody(schema, pf.bytes); err != nil {
					return err
				}
			case packetStatus:
				if err := pf.expect(protowire.BytesType); err != nil {
					return err
				}
				p.Kind = KindState
				if p.State, err = unmarshalStatusBody(schema, pf.bytes); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func unmarshalSetBody(schema device.Schema, data []byte) (StateFields, error) {
	switch schema {
	case device.SchemaPlugSwitch:
		var s StateFields
		fields, err := parseFields(data)
		if err != nil {
			return s, err
		}
		for _, f := range fields {
			if f.num == setState && f.typ == protowire.VarintType {
				s.Power = boolPtr(protowire.DecodeBool(f.value))
			}
		}
		return s, nil
	case device.SchemaWhiteBulb:
		fields, err := parseFields(data)
		if err != nil {
			return StateFields{}, err
		}
		for _, f := range fields {
			if f.num == setState {
				if err := f.expect(protowire.BytesType); err != nil {
					return StateFields{}, err
				}
				return unmarshalLight(f.bytes)
			}
		}
		return StateFields{}, nil
	default:
		return unmarshalColorBody(data)
	}
}

func unmarshalStatusBody(schema device.Schema, data []byte) (StateFields, error) {
	switch schema {
	case device.SchemaPlugSwitch:
		s, err := unmarshalLight(data)
		// Plugs and switches only report power.
		return StateFields{Power: s.Power}, err
	case device.SchemaWhiteBulb:
		return unmarshalLight(data)
	default:
		return unmarshalColorBody(data)
	}
}

func unmarshalLight(data []byte) (StateFields, error) {
	var s StateFields
	fields, err := parseFields(data)
	if err != nil {
		return s, err
	}
	for _, f := range fields {
		if f.typ != protowire.VarintType {
			continue
		}
		switch f.num {
		case lightPower:
			s.Power = boolPtr(protowire.DecodeBool(f.value))
		case lightBrightness:
			s.Brightness = intPtr(int(f.value))
		case lightTemperature:
			s.Temperature = intPtr(int(f.value))
		}
	}
	return s, nil
}

func unmarshalColorBody(data []byte) (StateFields, error) {
	var s StateFields
	fields, err := parseFields(data)
	if err != nil {
		return s, err
	}

	mode := uint64(colorModeWhite)
	var colorBrightness *int
	for _, f := range fields {
		switch f.num {
		case colorMode:
			if err := f.expect(protowire.VarintType); err != nil {
				return s, err
			}
			mode = f.value
		case colorPower:
			if err := f.expect(protowire.VarintType); err != nil {
				return s, err
			}
			s.Power = boolPtr(protowire.DecodeBool(f.value))
		case colorLightCT:
			if err := f.expect(protowire.BytesType); err != nil {
				return s, err
			}
			ct, err := parseFields(f.bytes)
			if err != nil {
				return s, err
			}
			for _, c := range ct {
				switch c.num {
				case ctBrightness:
					s.Brightness = intPtr(int(c.value))
				case ctTemperature:
					s.Temperature = intPtr(int(c.value))
				}
			}
		case colorRGB:
			if err := f.expect(protowire.BytesType); err != nil {
				return s, err
			}
			rgb, err := parseFields(f.bytes)
			if err != nil {
				return s, err
			}
			var c RGBColors
			for _, v := range rgb {
				switch v.num {
				case rgbRed:
					c.Red = uint8(v.value)
				case rgbGreen:
					c.Green = uint8(v.value)
				case rgbBlue:
					c.Blue = uint8(v.value)
				case rgbBrightness:
					colorBrightness = intPtr(int(v.value))
				}
			}
			s.Color = &c
		}
	}

	// In color mode the brightness lives in the color message.
	if mode == colorModeColor && colorBrightness != nil {
		s.Brightness = colorBrightness
	}
	return s, nil
}

// wireField is one decoded field. Only varint and bytes values are kept.
type wireField struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	bytes []byte
}

func (f wireField) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrDecode, f.num, f.typ, typ)
	}
	return nil
}

// parseFields splits a message into fields. A zero byte where a tag is
// expected ends the message (cipher padding).
func parseFields(b []byte) ([]wireField, error) {
	var fields []wireField
	for len(b) > 0 && b[0] != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrDecode, protowire.ParseError(n))
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %w", ErrDecode, num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType || typ == protowire.BytesType {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
