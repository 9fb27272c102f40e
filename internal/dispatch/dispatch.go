// Package dispatch implements the host side of the group reduction: it splits
// the input into GroupWidth-wide chunks, pads the last chunk with the neutral
// element, moves the data to the device, launches one execution group per
// chunk and reads the partial sums back in group order.
package dispatch

import (
	"context"
	"fmt"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
)

// Plan describes how an input of N elements maps onto execution groups.
type Plan struct {
	N         int // Number of real input elements
	Width     int // Chunk width, lanes per group
	Groups    int // ceil(N / Width)
	PaddedLen int // Groups * Width
}

// PlanFor computes the chunking of n elements with the kernel group width.
func PlanFor(n int) Plan {
	if n < 0 {
		n = 0
	}
	groups := (n + kernel.GroupWidth - 1) / kernel.GroupWidth
	return Plan{
		N:         n,
		Width:     kernel.GroupWidth,
		Groups:    groups,
		PaddedLen: groups * kernel.GroupWidth,
	}
}

// Padding returns the number of neutral elements appended to the last chunk.
func (p Plan) Padding() int {
	return p.PaddedLen - p.N
}

// Pad returns a copy of input extended with the neutral element to
// plan.PaddedLen. The input slice is not modified.
func Pad(input []uint32, plan Plan) []uint32 {
	padded := make([]uint32, plan.PaddedLen)
	copy(padded, input)
	for i := len(input); i < len(padded); i++ {
		padded[i] = kernel.Neutral
	}
	return padded
}

// Dispatcher drives one device. It holds no state between calls.
type Dispatcher struct {
	dev device.Device
}

// New creates a dispatcher bound to dev. The caller keeps ownership of dev.
func New(dev device.Device) *Dispatcher {
	return &Dispatcher{dev: dev}
}

// Device returns the device the dispatcher drives.
func (d *Dispatcher) Device() device.Device {
	return d.dev
}

// Partials reduces every chunk of input on the device and returns one partial
// sum per chunk, in chunk order. An empty input yields no partials and makes
// no device call.
//
// Inputs needing more groups than the device accepts in one dispatch are
// split into segments, each reduced by its own dispatch.
func (d *Dispatcher) Partials(ctx context.Context, input []uint32) ([]uint32, error) {
	plan := PlanFor(len(input))
	if plan.Groups == 0 {
		return nil, nil
	}

	maxGroups := int(min(uint64(d.dev.MaxGroups()), uint64(plan.Groups)))
	if maxGroups == 0 {
		return nil, fmt.Errorf("dispatch: device %s accepts no groups", d.dev.Name())
	}

	partials := make([]uint32, 0, plan.Groups)
	segment := maxGroups * kernel.GroupWidth
	for start := 0; start < len(input); start += segment {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
		end := min(start+segment, len(input))
		part, err := d.dispatchSegment(input[start:end])
		if err != nil {
			return nil, err
		}
		partials = append(partials, part...)
	}
	return partials, nil
}

// dispatchSegment runs one group-sum dispatch over a segment that fits the
// device group limit.
func (d *Dispatcher) dispatchSegment(input []uint32) ([]uint32, error) {
	plan := PlanFor(len(input))
	inSize := uint64(plan.PaddedLen) * device.WordSize
	outSize := uint64(plan.Groups) * device.WordSize

	in, err := d.dev.Allocate(inSize)
	if err != nil {
		return nil, fmt.Errorf("dispatch: input buffer: %w", err)
	}
	defer d.dev.Free(in)

	out, err := d.dev.Allocate(outSize)
	if err != nil {
		return nil, fmt.Errorf("dispatch: partial-sum buffer: %w", err)
	}
	defer d.dev.Free(out)

	if err := d.dev.Upload(in, device.EncodeWords(Pad(input, plan))); err != nil {
		return nil, fmt.Errorf("dispatch: upload input: %w", err)
	}

	//nolint:gosec // G115: Groups is bounded by Device.MaxGroups
	groups := uint32(plan.Groups)
	if err := d.dev.Dispatch(device.KernelGroupSum, in, out, groups); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	raw, err := d.dev.Download(out)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read partial sums: %w", err)
	}
	partials := device.DecodeWords(raw)
	if len(partials) < plan.Groups {
		return nil, &device.ExecutionError{
			Kernel: device.KernelGroupSum,
			Groups: groups,
			Err:    fmt.Errorf("read back %d partial sums, want %d", len(partials), plan.Groups),
		}
	}
	return partials[:plan.Groups], nil
}
