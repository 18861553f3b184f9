// Package mount normalizes compose volume declarations into canonical mount
// descriptors and renders them as engine mount options.
//
// Everything here is pure except Resolver, which talks to a VolumeStore.
package mount

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrMalformedMount     = errors.New("could not parse mount")
	ErrUnknownMountOption = errors.New("unknown mount option")
	ErrUnknownMountType   = errors.New("unknown mount type")
	ErrVolumeResolution   = errors.New("volume could not be resolved")
)

// MountError wraps a mount failure with the declaration that caused it.
type MountError struct {
	Spec    string // the mount as written, or the volume name
	Message string
	Err     error
}

func (e *MountError) Error() string {
	if e.Spec != "" {
		return fmt.Sprintf("mount %q: %s", e.Spec, e.Message)
	}
	return "mount: " + e.Message
}

func (e *MountError) Unwrap() error {
	return e.Err
}

// NewMountError creates a new MountError.
func NewMountError(spec, message string, err error) *MountError {
	return &MountError{
		Spec:    spec,
		Message: message,
		Err:     err,
	}
}

// IsConfigError reports whether err is a mount declaration error, as opposed
// to a volume resolution failure.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMalformedMount) ||
		errors.Is(err, ErrUnknownMountOption) ||
		errors.Is(err, ErrUnknownMountType)
}
