package cpu

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
	"github.com/born-ml/parsum/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

func newDevice(t *testing.T, cfg Config) *Device {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func upload(t *testing.T, d *Device, words []uint32) device.Buffer {
	t.Helper()
	buf, err := d.Allocate(uint64(len(words) * device.WordSize))
	require.NoError(t, err)
	require.NoError(t, d.Upload(buf, device.EncodeWords(words)))
	return buf
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New(Config{Mode: "warp"})
	assert.Error(t, err)
}

func TestNew_DefaultsMode(t *testing.T) {
	d := newDevice(t, Config{})
	assert.True(t, strings.Contains(d.Name(), string(ModePhased)))
}

func TestDispatchGroupSum(t *testing.T) {
	for _, mode := range []Mode{ModePhased, ModeLanes} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			d := newDevice(t, cfg)

			const groups = 8
			rng := rand.New(rand.NewSource(5))
			input := make([]uint32, groups*kernel.GroupWidth)
			want := make([]uint32, groups)
			for i := range input {
				input[i] = uint32(rng.Intn(1 << 16))
				want[i/kernel.GroupWidth] += input[i]
			}

			in := upload(t, d, input)
			out, err := d.Allocate(groups * device.WordSize)
			require.NoError(t, err)

			require.NoError(t, d.Dispatch(device.KernelGroupSum, in, out, groups))

			raw, err := d.Download(out)
			require.NoError(t, err)
			assert.Equal(t, want, device.DecodeWords(raw))
		})
	}
}

func TestDispatchGroupSum_Sequential(t *testing.T) {
	cfg := Config{Parallel: parallel.Config{Enabled: false}, Mode: ModeLanes}
	d := newDevice(t, cfg)

	in := upload(t, d, []uint32{3, 5, 7})
	out, err := d.Allocate(device.WordSize)
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(device.KernelGroupSum, in, out, 1))

	raw, err := d.Download(out)
	require.NoError(t, err)
	assert.Equal(t, []uint32{15}, device.DecodeWords(raw))
}

func TestDispatchCopy(t *testing.T) {
	d := newDevice(t, DefaultConfig())

	input := make([]uint32, 200)
	for i := range input {
		input[i] = uint32(i * 3)
	}
	in := upload(t, d, input)
	out, err := d.Allocate(uint64(len(input) * device.WordSize))
	require.NoError(t, err)

	groups := uint32((len(input) + kernel.GroupWidth - 1) / kernel.GroupWidth)
	require.NoError(t, d.Dispatch(device.KernelCopy, in, out, groups))

	raw, err := d.Download(out)
	require.NoError(t, err)
	assert.Equal(t, input, device.DecodeWords(raw))
}

func TestDispatch_OutputTooSmall(t *testing.T) {
	d := newDevice(t, DefaultConfig())
	in := upload(t, d, make([]uint32, 2*kernel.GroupWidth))
	out, err := d.Allocate(device.WordSize)
	require.NoError(t, err)

	err = d.Dispatch(device.KernelGroupSum, in, out, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrDeviceExecution)

	var ee *device.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, uint32(2), ee.Groups)
}

func TestDispatch_UnknownKernel(t *testing.T) {
	d := newDevice(t, DefaultConfig())
	in := upload(t, d, []uint32{1})
	err := d.Dispatch(device.Kernel(9), in, in, 1)
	assert.ErrorIs(t, err, device.ErrUnknownKernel)
	assert.ErrorIs(t, err, device.ErrDeviceExecution)
}

func TestDispatch_GroupLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGroups = 2
	d := newDevice(t, cfg)
	assert.Equal(t, uint32(2), d.MaxGroups())

	in := upload(t, d, make([]uint32, 3*kernel.GroupWidth))
	out, err := d.Allocate(3 * device.WordSize)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Dispatch(device.KernelGroupSum, in, out, 3), device.ErrDeviceExecution)
}

func TestDispatch_ForeignBuffer(t *testing.T) {
	a := newDevice(t, DefaultConfig())
	b := newDevice(t, DefaultConfig())
	in := upload(t, a, []uint32{1})
	out, err := b.Allocate(device.WordSize)
	require.NoError(t, err)

	err = b.Dispatch(device.KernelGroupSum, in, out, 1)
	assert.ErrorIs(t, err, device.ErrForeignBuffer)
}

func TestBuffer_UseAfterFree(t *testing.T) {
	d := newDevice(t, DefaultConfig())
	buf := upload(t, d, []uint32{1, 2})
	out, err := d.Allocate(device.WordSize)
	require.NoError(t, err)
	d.Free(buf)

	err = d.Upload(buf, device.EncodeWords([]uint32{3}))
	assert.ErrorIs(t, err, device.ErrBufferFreed)

	_, err = d.Download(buf)
	assert.ErrorIs(t, err, device.ErrBufferFreed)

	err = d.Dispatch(device.KernelGroupSum, buf, out, 1)
	assert.ErrorIs(t, err, device.ErrBufferFreed)
	assert.ErrorIs(t, err, device.ErrDeviceExecution)
}

func TestAllocate_Limits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBufferSize = 1024
	cfg.MaxMemory = 1536
	d := newDevice(t, cfg)

	_, err := d.Allocate(2048)
	require.ErrorIs(t, err, device.ErrAllocation)
	var ae *device.AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, uint64(1024), ae.Limit)

	first, err := d.Allocate(1024)
	require.NoError(t, err)
	_, err = d.Allocate(1024)
	assert.ErrorIs(t, err, device.ErrAllocation)

	d.Free(first)
	_, err = d.Allocate(1024)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	d := newDevice(t, DefaultConfig())
	a, err := d.Allocate(100)
	require.NoError(t, err)
	b, err := d.Allocate(300)
	require.NoError(t, err)
	d.Free(a)
	d.Free(a) // double free is ignored

	s := d.Stats()
	assert.Equal(t, uint64(300), s.AllocatedBytes)
	assert.Equal(t, uint64(400), s.PeakBytes)
	assert.Equal(t, int64(1), s.ActiveBuffers)

	d.Free(b)
	assert.Equal(t, int64(0), d.Stats().ActiveBuffers)
}

func TestUpload_TooLarge(t *testing.T) {
	d := newDevice(t, DefaultConfig())
	buf, err := d.Allocate(4)
	require.NoError(t, err)
	assert.Error(t, d.Upload(buf, make([]byte, 8)))
}

func TestRelease(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	buf, err := d.Allocate(4)
	require.NoError(t, err)
	d.Release()

	_, err = d.Allocate(4)
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.ErrorIs(t, err, device.ErrReleased)

	_, err = d.Download(buf)
	assert.ErrorIs(t, err, device.ErrReleased)

	err = d.Dispatch(device.KernelGroupSum, buf, buf, 1)
	assert.ErrorIs(t, err, device.ErrDeviceExecution)
}

func BenchmarkDispatchGroupSum(b *testing.B) {
	for _, mode := range []Mode{ModePhased, ModeLanes} {
		b.Run(string(mode), func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			d, err := New(cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer d.Release()

			const groups = 256
			in, _ := d.Allocate(groups * kernel.GroupWidth * device.WordSize)
			out, _ := d.Allocate(groups * device.WordSize)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := d.Dispatch(device.KernelGroupSum, in, out, groups); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
