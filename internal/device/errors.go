package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnsupportedCapability) {
//	    // the model cannot do this
//	}
var (
	// ErrUnknownModel is returned when a model string is not in the registry.
	ErrUnknownModel = errors.New("device: unknown model")

	// ErrUnsupportedModel is returned when no response schema exists for a model.
	// Construction-time validation makes this unreachable in practice.
	ErrUnsupportedModel = errors.New("device: unsupported model")

	// ErrUnsupportedCapability is returned when an operation needs a
	// capability the model does not have.
	ErrUnsupportedCapability = errors.New("device: unsupported capability")

	// ErrStateNotLoaded is returned when cached state is read before the
	// first successful state load.
	ErrStateNotLoaded = errors.New("device: state not loaded")
)

// UnsupportedCapabilityError describes a rejected capability-gated operation.
type UnsupportedCapabilityError struct {
	Model      Model
	Capability Capability
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("%s: %s does not support %s", ErrUnsupportedCapability, e.Model, e.Capability)
}

// Is makes errors.Is(err, ErrUnsupportedCapability) match.
func (e *UnsupportedCapabilityError) Is(target error) bool {
	return target == ErrUnsupportedCapability
}
