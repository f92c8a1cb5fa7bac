package eufy

import (
	"encoding/binary"
	"fmt"
	"math"
)

// frameHeaderSize is the size of the little-endian length prefix.
const frameHeaderSize = 2

// ParseFrame extracts the payload from a decrypted reply.
//
// The first two bytes are a little-endian uint16 length L and the payload
// is bytes [2, 2+L). Anything after the payload is ignored.
func ParseFrame(data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the length prefix", ErrFraming, len(data))
	}

	n := int(binary.LittleEndian.Uint16(data))
	end := frameHeaderSize + n
	if end > len(data) {
		return nil, fmt.Errorf("%w: length %d exceeds %d available bytes",
			ErrFraming, n, len(data)-frameHeaderSize)
	}

	payload := make([]byte, n)
	copy(payload, data[frameHeaderSize:end])
	return payload, nil
}

// EncodeFrame prefixes payload with its little-endian uint16 length.
// Devices frame their replies this way; requests are sent unframed.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrFraming, len(payload), math.MaxUint16)
	}

	out := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(out, uint16(len(payload)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}
