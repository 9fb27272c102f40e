// Package cpu implements a simulated compute device that executes kernel
// groups on host goroutines.
package cpu

import (
	"fmt"
	"math"
	"sync"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/hostinfo"
	"github.com/born-ml/parsum/internal/kernel"
	"github.com/born-ml/parsum/internal/parallel"
)

// Mode selects how the lanes of a group are executed.
type Mode string

const (
	// ModePhased applies each kernel phase to all lanes of a group on one
	// goroutine before starting the next phase.
	ModePhased Mode = "phased"
	// ModeLanes runs every lane on its own goroutine with a barrier between
	// phases.
	ModeLanes Mode = "lanes"
)

// Config controls the simulated device.
type Config struct {
	Parallel      parallel.Config `yaml:"parallel"`        // Fan-out of groups over goroutines.
	Mode          Mode            `yaml:"mode"`            // Lane execution mode.
	MaxBufferSize uint64          `yaml:"max_buffer_size"` // Largest single buffer, 0 = unlimited.
	MaxMemory     uint64          `yaml:"max_memory"`      // Total live bytes, 0 = unlimited.
	MaxGroups     uint32          `yaml:"max_groups"`      // Groups per dispatch, 0 = MaxUint32.
}

// DefaultConfig returns a phased device using all CPUs with no memory limits.
func DefaultConfig() Config {
	return Config{
		Parallel: parallel.DefaultConfig(),
		Mode:     ModePhased,
	}
}

// Device is the simulated device. It is safe for concurrent use.
type Device struct {
	cfg     Config
	tracker device.Tracker
	groups  sync.Pool

	mu       sync.Mutex
	released bool
}

// buffer is host memory standing in for a device allocation.
type buffer struct {
	owner *Device
	data  []byte
	freed bool
}

func (b *buffer) Size() uint64 { return uint64(len(b.data)) }

// New creates a simulated device.
func New(cfg Config) (*Device, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModePhased
	case ModePhased, ModeLanes:
	default:
		return nil, fmt.Errorf("cpu: unknown mode %q", cfg.Mode)
	}
	d := &Device{cfg: cfg}
	d.groups.New = func() any { return kernel.NewGroup() }
	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return fmt.Sprintf("CPU simulation (%s, %s)", d.cfg.Mode, hostinfo.Detect())
}

// MaxGroups returns the configured dispatch limit.
func (d *Device) MaxGroups() uint32 {
	if d.cfg.MaxGroups == 0 {
		return math.MaxUint32
	}
	return d.cfg.MaxGroups
}

// Allocate reserves a zero-filled buffer.
func (d *Device) Allocate(size uint64) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, &device.AllocationError{Size: size, Err: device.ErrReleased}
	}
	if d.cfg.MaxBufferSize > 0 && size > d.cfg.MaxBufferSize {
		return nil, &device.AllocationError{Size: size, Limit: d.cfg.MaxBufferSize}
	}
	if d.cfg.MaxMemory > 0 && d.tracker.Allocated()+size > d.cfg.MaxMemory {
		return nil, &device.AllocationError{Size: size, Limit: d.cfg.MaxMemory}
	}
	if size > math.MaxInt {
		return nil, &device.AllocationError{Size: size, Limit: math.MaxInt}
	}

	d.tracker.Alloc(size)
	return &buffer{owner: d, data: make([]byte, size)}, nil
}

// Upload copies data to the start of buf.
func (d *Device) Upload(buf device.Buffer, data []byte) error {
	b, err := d.own(buf)
	if err != nil {
		return err
	}
	if uint64(len(data)) > b.Size() {
		return fmt.Errorf("cpu: upload of %d bytes exceeds buffer size %d", len(data), b.Size())
	}
	copy(b.data, data)
	return nil
}

// Download returns a copy of the buffer contents.
func (d *Device) Download(buf device.Buffer) ([]byte, error) {
	b, err := d.own(buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Free releases a buffer.
func (d *Device) Free(buf device.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.freed {
		return
	}
	b.freed = true
	d.tracker.Free(b.Size())
	b.data = nil
}

// Stats returns memory usage statistics.
func (d *Device) Stats() device.MemoryStats {
	return d.tracker.Snapshot()
}

// Release tears the device down.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

// own checks that buf is a live buffer of this device.
func (d *Device) own(buf device.Buffer) (*buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil, device.ErrReleased
	}
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != d {
		return nil, device.ErrForeignBuffer
	}
	if b.freed {
		return nil, device.ErrBufferFreed
	}
	return b, nil
}
