package reduce

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/parsum/internal/backend/cpu"
	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSummer(t *testing.T, cfg Config, mutate func(*cpu.Config)) *Summer {
	t.Helper()
	dc := cpu.DefaultConfig()
	if mutate != nil {
		mutate(&dc)
	}
	dev, err := cpu.New(dc)
	require.NoError(t, err)
	t.Cleanup(dev.Release)
	return New(dev, cfg)
}

func sequence(n int) []uint32 {
	input := make([]uint32, n)
	for i := range input {
		input[i] = uint32(i + 1)
	}
	return input
}

func TestSum_Empty(t *testing.T) {
	res, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Total)
	assert.Zero(t, res.Groups)
	assert.Zero(t, res.Levels)
}

func TestSum_PartialChunk(t *testing.T) {
	res, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), []uint32{3, 5, 7})
	require.NoError(t, err)
	assert.Equal(t, uint64(15), res.Total)
	assert.Equal(t, []uint32{15}, res.Partials)
	assert.Equal(t, 1, res.Groups)
	assert.False(t, res.OverflowRisk)
}

func TestSum_Sequence(t *testing.T) {
	const n = 16384
	res, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), sequence(n))
	require.NoError(t, err)
	assert.Equal(t, uint64(n)*(n+1)/2, res.Total)
	assert.Equal(t, n/kernel.GroupWidth, res.Groups)
	assert.Equal(t, 1, res.Levels)
}

func TestSum_ArbitraryLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	s := newSummer(t, DefaultConfig(), func(c *cpu.Config) { c.Mode = cpu.ModeLanes })
	for _, n := range []int{1, 2, 63, 64, 65, 128, 129, 1000, 4097} {
		input := make([]uint32, n)
		for i := range input {
			input[i] = uint32(rng.Intn(1 << 20))
		}
		res, err := s.Sum(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, HostSum(input), res.Total, "n=%d", n)
		assert.Equal(t, HostSum(res.Partials), res.Total, "n=%d", n)
	}
}

func TestSum_Recursive(t *testing.T) {
	const n = 3 * kernel.GroupWidth * kernel.GroupWidth
	s := newSummer(t, Config{RecursiveThreshold: 4}, nil)

	res, err := s.Sum(context.Background(), sequence(n))
	require.NoError(t, err)
	assert.Equal(t, uint64(n)*(n+1)/2, res.Total)
	assert.Equal(t, 3*kernel.GroupWidth, res.Groups, "first level partials are kept")
	assert.Equal(t, 2, res.Levels)
}

func TestSum_RecursiveStopsAtOneGroup(t *testing.T) {
	s := newSummer(t, Config{RecursiveThreshold: 1}, nil)
	res, err := s.Sum(context.Background(), sequence(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(200*201/2), res.Total)
	assert.Equal(t, 2, res.Levels)
}

func TestSum_RecursiveKeepsLargePartialsOnHost(t *testing.T) {
	// Second-level partials of 1..=200000 reach ~8e8, past what a 32-bit
	// group can add without wrapping.
	const n = 200000
	s := newSummer(t, Config{RecursiveThreshold: 1}, nil)

	res, err := s.Sum(context.Background(), sequence(n))
	require.NoError(t, err)
	assert.Equal(t, uint64(n)*(n+1)/2, res.Total)
	assert.False(t, res.OverflowRisk)
	assert.Equal(t, 2, res.Levels)

	linear, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), sequence(n))
	require.NoError(t, err)
	assert.Equal(t, linear.Total, res.Total)
}

func TestSum_RecursiveStopsAtOverflowBound(t *testing.T) {
	// Every first-level partial is 64*overflowBound, so nothing is re-dispatched.
	input := make([]uint32, 8*kernel.GroupWidth)
	for i := range input {
		input[i] = overflowBound
	}
	res, err := newSummer(t, Config{RecursiveThreshold: 1}, nil).Sum(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Levels)
	assert.False(t, res.OverflowRisk)
	assert.Equal(t, HostSum(input), res.Total)
}

func TestSum_OverflowRisk(t *testing.T) {
	input := make([]uint32, kernel.GroupWidth)
	for i := range input {
		input[i] = math.MaxUint32
	}
	res, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.OverflowRisk)
	// The group wrapped mod 2^32; the host cannot recover the lost carries.
	assert.Equal(t, uint64(uint32(math.MaxUint32*kernel.GroupWidth%(1<<32))), res.Total)
	assert.NotEqual(t, HostSum(input), res.Total)
}

func TestSum_NoOverflowRiskAtBound(t *testing.T) {
	input := make([]uint32, kernel.GroupWidth)
	for i := range input {
		input[i] = overflowBound
	}
	res, err := newSummer(t, DefaultConfig(), nil).Sum(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, res.OverflowRisk)
	assert.Equal(t, HostSum(input), res.Total)
}

func TestSum_Idempotent(t *testing.T) {
	s := newSummer(t, DefaultConfig(), nil)
	input := sequence(5000)
	a, err := s.Sum(context.Background(), input)
	require.NoError(t, err)
	b, err := s.Sum(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSum_AllocationError(t *testing.T) {
	s := newSummer(t, DefaultConfig(), func(c *cpu.Config) { c.MaxMemory = 64 })
	_, err := s.Sum(context.Background(), sequence(1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.Contains(t, err.Error(), "reduce: level 0")
}

func TestSum_ReleasedDevice(t *testing.T) {
	dev, err := cpu.New(cpu.DefaultConfig())
	require.NoError(t, err)
	dev.Release()

	_, err = New(dev, DefaultConfig()).Sum(context.Background(), sequence(10))
	assert.ErrorIs(t, err, device.ErrReleased)
}

func TestHostSum_Widens(t *testing.T) {
	assert.Equal(t, uint64(2*math.MaxUint32), HostSum([]uint32{math.MaxUint32, math.MaxUint32}))
}

func BenchmarkSum(b *testing.B) {
	dev, err := cpu.New(cpu.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer dev.Release()
	s := New(dev, DefaultConfig())
	input := sequence(1 << 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Sum(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
