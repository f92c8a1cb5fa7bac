package eufy

// Kind identifies what a packet asks for or reports.
type Kind int

// Packet kinds.
const (
	KindUnknown Kind = iota
	KindPing
	KindGetState
	KindSetState
	KindState
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindGetState:
		return "get_state"
	case KindSetState:
		return "set_state"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// StateFields holds the state dimensions carried by a packet.
// A nil field was absent on the wire (or is not being changed).
type StateFields struct {
	Power       *bool
	Brightness  *int
	Temperature *int
	Color       *RGBColors
}

// IsEmpty reports whether no field is set.
func (s StateFields) IsEmpty() bool {
	return s.Power == nil && s.Brightness == nil && s.Temperature == nil && s.Color == nil
}

// Packet is one protocol message, either direction.
type Packet struct {
	// Sequence correlates keep-alive requests and replies.
	Sequence uint32

	// Code is the device's local access code.
	Code string

	Kind  Kind
	State StateFields
}

// newPingPacket builds a keep-alive request.
func newPingPacket(code string, sequence uint32) *Packet {
	return &Packet{Sequence: sequence, Code: code, Kind: KindPing}
}

// newGetStatePacket builds a state query.
func newGetStatePacket(code string) *Packet {
	return &Packet{Code: code, Kind: KindGetState}
}

// newSetStatePacket builds a state change carrying only the given fields.
func newSetStatePacket(code string, state StateFields) *Packet {
	return &Packet{Code: code, Kind: KindSetState, State: state}
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
