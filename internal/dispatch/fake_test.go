package dispatch

import (
	"math"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
)

// fakeDevice is a scripted device for failure paths.
type fakeDevice struct {
	failAllocAt int   // 1-based Allocate call that fails, 0 = never
	dispatchErr error // returned from Dispatch when set
	truncate    bool  // Download returns one word less than stored
	corruptCopy bool  // copy kernel flips every word

	allocs     int
	frees      int
	dispatches int
}

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Size() uint64 { return uint64(len(b.data)) }

func (f *fakeDevice) Name() string { return "fake" }

func (f *fakeDevice) MaxGroups() uint32 { return math.MaxUint32 }

func (f *fakeDevice) Allocate(size uint64) (device.Buffer, error) {
	f.allocs++
	if f.failAllocAt == f.allocs {
		return nil, &device.AllocationError{Size: size}
	}
	return &fakeBuffer{data: make([]byte, size)}, nil
}

func (f *fakeDevice) Upload(buf device.Buffer, data []byte) error {
	copy(buf.(*fakeBuffer).data, data)
	return nil
}

func (f *fakeDevice) Dispatch(k device.Kernel, input, output device.Buffer, groups uint32) error {
	f.dispatches++
	if f.dispatchErr != nil {
		return &device.ExecutionError{Kernel: k, Groups: groups, Err: f.dispatchErr}
	}
	in := device.DecodeWords(input.(*fakeBuffer).data)
	out := device.DecodeWords(output.(*fakeBuffer).data)
	switch k {
	case device.KernelGroupSum:
		for g := uint32(0); g < groups; g++ {
			kernel.Reduce(in, g, out)
		}
	case device.KernelCopy:
		for i := range out {
			out[i] = in[i]
			if f.corruptCopy {
				out[i] = ^out[i]
			}
		}
	}
	copy(output.(*fakeBuffer).data, device.EncodeWords(out))
	return nil
}

func (f *fakeDevice) Download(buf device.Buffer) ([]byte, error) {
	data := append([]byte(nil), buf.(*fakeBuffer).data...)
	if f.truncate && len(data) >= device.WordSize {
		data = data[:len(data)-device.WordSize]
	}
	return data, nil
}

func (f *fakeDevice) Free(device.Buffer) { f.frees++ }

func (f *fakeDevice) Stats() device.MemoryStats { return device.MemoryStats{} }

func (f *fakeDevice) Release() {}
