package device

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrAllocation      = errors.New("device: buffer allocation failed")
	ErrDeviceExecution = errors.New("device: kernel execution failed")
	ErrReleased        = errors.New("device: used after release")
	ErrUnknownKernel   = errors.New("device: unknown kernel")
	ErrForeignBuffer   = errors.New("device: buffer belongs to another device")
	ErrBufferFreed     = errors.New("device: buffer used after free")
)

// AllocationError reports a buffer that could not be sized or allocated.
// The caller may retry with a smaller input or abort.
type AllocationError struct {
	Size  uint64 // Requested size in bytes
	Limit uint64 // Device limit that was exceeded, 0 if unknown
	Err   error  // Underlying cause, may be nil
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	msg := fmt.Sprintf("device: cannot allocate %d bytes", e.Size)
	if e.Limit > 0 {
		msg += fmt.Sprintf(" (limit %d)", e.Limit)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error { return e.Err }

// Is matches ErrAllocation.
func (e *AllocationError) Is(target error) bool { return target == ErrAllocation }

// ExecutionError reports a kernel that could not be submitted or a fault
// raised by the device while running it. It is fatal for the dispatch.
type ExecutionError struct {
	Kernel Kernel
	Groups uint32
	Err    error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("device: kernel %s over %d groups failed", e.Kernel, e.Groups)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Is matches ErrDeviceExecution.
func (e *ExecutionError) Is(target error) bool { return target == ErrDeviceExecution }
