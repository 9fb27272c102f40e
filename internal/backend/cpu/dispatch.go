package cpu

import (
	"fmt"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
	"github.com/born-ml/parsum/internal/parallel"
)

// Dispatch runs kernel k over groups execution groups. Groups are spread over
// goroutines with no ordering between them; Dispatch returns when all of them
// have finished.
func (d *Device) Dispatch(k device.Kernel, input, output device.Buffer, groups uint32) error {
	fail := func(err error) error {
		return &device.ExecutionError{Kernel: k, Groups: groups, Err: err}
	}

	in, err := d.own(input)
	if err != nil {
		return fail(err)
	}
	out, err := d.own(output)
	if err != nil {
		return fail(err)
	}
	if groups > d.MaxGroups() {
		return fail(fmt.Errorf("group count exceeds device limit %d", d.MaxGroups()))
	}
	if groups == 0 {
		return nil
	}

	words := device.DecodeWords(in.data)
	result := device.DecodeWords(out.data)

	switch k {
	case device.KernelGroupSum:
		if uint64(len(result)) < uint64(groups) {
			return fail(fmt.Errorf("output holds %d words, need %d", len(result), groups))
		}
		d.runGroupSum(words, result, groups)
	case device.KernelCopy:
		runCopy(words, result, groups, d.cfg.Parallel)
	default:
		return fail(device.ErrUnknownKernel)
	}

	copy(out.data, device.EncodeWords(result))
	return nil
}

func (d *Device) runGroupSum(input, partials []uint32, groups uint32) {
	switch d.cfg.Mode {
	case ModeLanes:
		parallel.For(int(groups), func(g int) {
			grp := d.groups.Get().(*kernel.Group)
			grp.Run(input, uint32(g), partials)
			d.groups.Put(grp)
		}, d.cfg.Parallel)
	default:
		parallel.For(int(groups), func(g int) {
			kernel.Reduce(input, uint32(g), partials)
		}, d.cfg.Parallel)
	}
}

// runCopy copies input to output, one lane per word. Lanes past the end of
// either buffer do nothing.
func runCopy(input, output []uint32, groups uint32, cfg parallel.Config) {
	n := min(len(input), len(output), int(groups)*kernel.GroupWidth)
	parallel.For(int(groups), func(g int) {
		start := g * kernel.GroupWidth
		end := min(start+kernel.GroupWidth, n)
		if start < end {
			copy(output[start:end], input[start:end])
		}
	}, cfg)
}
