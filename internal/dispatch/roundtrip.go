package dispatch

import (
	"context"
	"fmt"

	"github.com/born-ml/parsum/internal/device"
)

// RoundTrip uploads data, runs the copy kernel over it and downloads the
// result. It returns the number of words that came back different, which is
// zero on a healthy device.
func (d *Dispatcher) RoundTrip(ctx context.Context, data []uint32) (int, error) {
	plan := PlanFor(len(data))
	if plan.Groups == 0 {
		return 0, nil
	}
	if uint64(plan.Groups) > uint64(d.dev.MaxGroups()) {
		return 0, fmt.Errorf("dispatch: round trip of %d groups exceeds device limit %d", plan.Groups, d.dev.MaxGroups())
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("dispatch: %w", err)
	}

	size := uint64(len(data)) * device.WordSize
	in, err := d.dev.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("dispatch: input buffer: %w", err)
	}
	defer d.dev.Free(in)

	out, err := d.dev.Allocate(size)
	if err != nil {
		return 0, fmt.Errorf("dispatch: output buffer: %w", err)
	}
	defer d.dev.Free(out)

	if err := d.dev.Upload(in, device.EncodeWords(data)); err != nil {
		return 0, fmt.Errorf("dispatch: upload input: %w", err)
	}
	//nolint:gosec // G115: checked against MaxGroups above
	if err := d.dev.Dispatch(device.KernelCopy, in, out, uint32(plan.Groups)); err != nil {
		return 0, fmt.Errorf("dispatch: %w", err)
	}
	raw, err := d.dev.Download(out)
	if err != nil {
		return 0, fmt.Errorf("dispatch: read output: %w", err)
	}

	got := device.DecodeWords(raw)
	mismatches := 0
	for i, v := range data {
		if i >= len(got) || got[i] != v {
			mismatches++
		}
	}
	return mismatches, nil
}
