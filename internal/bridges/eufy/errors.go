package eufy

import "errors"

// Domain errors for the Eufy bridge package.
var (
	// ErrTransport is returned when opening, writing to or reading from the
	// device connection fails. It is recoverable by reconnecting.
	ErrTransport = errors.New("eufy: transport failure")

	// ErrNotConnected is returned when an I/O operation is attempted on a
	// transport that has no open connection.
	ErrNotConnected = errors.New("eufy: not connected")

	// ErrSend is returned when a fire-and-forget send still fails after the
	// single reconnect-and-retry.
	ErrSend = errors.New("eufy: send failed")

	// ErrExchange is returned when a request/response exchange still fails
	// after the single reconnect-and-retry.
	ErrExchange = errors.New("eufy: exchange failed")

	// ErrFraming is returned when a decrypted reply is too short for its
	// length prefix.
	ErrFraming = errors.New("eufy: invalid frame")

	// ErrCipher is returned when a payload cannot be encrypted or decrypted.
	ErrCipher = errors.New("eufy: cipher failure")

	// ErrDecode is returned when a wire message cannot be decoded.
	ErrDecode = errors.New("eufy: decode failed")

	// ErrEncode is returned when a wire message cannot be encoded.
	ErrEncode = errors.New("eufy: encode failed")

	// ErrInvalidConfig is returned when a device or bridge config is unusable.
	ErrInvalidConfig = errors.New("eufy: invalid configuration")

	// ErrDeviceNotFound is returned when a bridge command targets an
	// unknown device id.
	ErrDeviceNotFound = errors.New("eufy: device not found")

	// ErrInvalidCommand is returned when a bridge command name is not recognised.
	ErrInvalidCommand = errors.New("eufy: invalid command")

	// ErrInvalidParameters is returned when command parameters fail validation.
	ErrInvalidParameters = errors.New("eufy: invalid parameters")
)
