package core

import (
	"errors"
	"fmt"
)

// Resource errors.
var (
	ErrInvalidCodec      = errors.New("invalid or missing codec")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrInvalidContent    = errors.New("invalid content")
	ErrDuplicateResource = errors.New("duplicate resource")
	ErrResourceNotFound  = errors.New("resource not found")
	ErrNoLoader          = errors.New("no loader registered for resource type")
	ErrCloneFailed       = errors.New("clone failed")
)

// RHI and hardware errors.
var (
	ErrReadFailed       = errors.New("buffer read failed")
	ErrWriteFailed      = errors.New("buffer write failed")
	ErrWriteOnlyBuffer  = errors.New("cannot read from a write-only buffer")
	ErrUnsupportedState = errors.New("unsupported state combination")
)

// Contract errors. Each one also matches ErrInvariantViolation.
var (
	ErrInvariantViolation = errors.New("invariant violation")
	ErrNilArgument        = fmt.Errorf("nil argument: %w", ErrInvariantViolation)
	ErrAlreadyHasParent   = fmt.Errorf("node already has a parent: %w", ErrInvariantViolation)
	ErrNotAChild          = fmt.Errorf("node is not a child: %w", ErrInvariantViolation)
	ErrBufferLocked       = fmt.Errorf("buffer is already locked: %w", ErrInvariantViolation)
	ErrBufferNotLocked    = fmt.Errorf("buffer is not locked: %w", ErrInvariantViolation)
	ErrOutOfBounds        = fmt.Errorf("range out of bounds: %w", ErrInvariantViolation)
	ErrThreadState        = fmt.Errorf("invalid RHI thread state: %w", ErrInvariantViolation)
)

var ErrUnknown = errors.New("unknown")

// Invariant returns an error wrapping ErrInvariantViolation, or nil when the
// condition holds.
func Invariant(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariantViolation)
}
