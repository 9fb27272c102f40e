// Package device defines the compute-device contract the host dispatcher
// depends on: linear buffers, byte uploads and downloads, and dispatches of
// a fixed kernel over a number of execution groups.
package device

// Kernel identifies a compute entry point every device provides.
//
// Each kernel runs with a fixed group width, binds input (read-only) at
// binding 0 and output (read-write) at binding 1, and receives the lane index
// and the group index of every invocation.
type Kernel int

const (
	// KernelGroupSum reduces chunk g of the input to output word g.
	KernelGroupSum Kernel = iota
	// KernelCopy copies every input word to the same position of the output.
	KernelCopy
)

// String returns the kernel entry name.
func (k Kernel) String() string {
	switch k {
	case KernelGroupSum:
		return "group_sum"
	case KernelCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// Buffer is a device-visible linear allocation.
type Buffer interface {
	// Size returns the allocation size in bytes.
	Size() uint64
}

// Device is an explicitly constructed compute context. It is created once,
// released once, and never re-initialised implicitly.
type Device interface {
	// Name describes the device.
	Name() string
	// MaxGroups is the largest group count accepted by one Dispatch.
	MaxGroups() uint32
	// Allocate reserves a buffer of size bytes. Fails with *AllocationError.
	Allocate(size uint64) (Buffer, error)
	// Upload copies data to the start of buf.
	Upload(buf Buffer, data []byte) error
	// Dispatch runs kernel k over groups execution groups. Results are only
	// defined for the whole dispatch: a Download issued after Dispatch
	// returns observes every group finished. Groups complete in no defined
	// order and cannot be awaited individually. Fails with *ExecutionError.
	Dispatch(k Kernel, input, output Buffer, groups uint32) error
	// Download returns a copy of the buffer contents.
	Download(buf Buffer) ([]byte, error)
	// Free releases a buffer. Freeing a nil buffer is a no-op.
	Free(buf Buffer)
	// Stats returns memory usage statistics.
	Stats() MemoryStats
	// Release tears the device down. Every later call fails with ErrReleased.
	Release()
}
