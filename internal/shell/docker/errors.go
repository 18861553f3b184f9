package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Volume errors
	ErrVolumeNotFound      = errors.New("volume not found")
	ErrVolumeAlreadyExists = errors.New("volume already exists")

	// Connection errors
	ErrConnectionFailed = errors.New("engine connection failed")
)

// VolumeError is a failed engine API call, optionally about one volume.
type VolumeError struct {
	Op      string // API call, e.g. "inspect"
	Volume  string
	Message string
	Err     error
}

func (e *VolumeError) Error() string {
	if e.Volume == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("volume %s: %s: %s", e.Volume, e.Op, e.Message)
}

func (e *VolumeError) Unwrap() error {
	return e.Err
}

func volumeError(op, name, message string, err error) *VolumeError {
	return &VolumeError{Op: op, Volume: name, Message: message, Err: err}
}
