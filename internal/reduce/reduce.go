// Package reduce computes the final sum of a uint32 sequence from the
// per-group partial sums produced on a compute device.
//
// Each group accumulates in 32 bits and wraps on overflow, as the device
// does. The host accumulates the partial sums in 64 bits. Result.OverflowRisk
// flags inputs where a group could have wrapped.
package reduce

import (
	"context"
	"fmt"
	"math"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/dispatch"
	"github.com/born-ml/parsum/internal/kernel"
)

// Config controls the final reduction.
type Config struct {
	// RecursiveThreshold re-dispatches the partial sums on the device while
	// their count exceeds it. 0 always sums the partials on the host.
	// Partials large enough to wrap a group are always summed on the host.
	RecursiveThreshold int `yaml:"recursive_threshold"`
}

// DefaultConfig sums partials on the host.
func DefaultConfig() Config {
	return Config{}
}

// Result is the outcome of one reduction.
type Result struct {
	Total    uint64   // Final sum
	Partials []uint32 // Partial sums of the first device level, in group order
	Groups   int      // Execution groups in the first level
	Levels   int      // Device dispatch levels, 0 for empty input
	// OverflowRisk is set when some value fed to a device level exceeded
	// MaxUint32/GroupWidth, so a group total may have wrapped mod 2^32.
	OverflowRisk bool
}

// Summer reduces sequences on one device.
type Summer struct {
	dispatcher *dispatch.Dispatcher
	cfg        Config
}

// New creates a Summer using dev. The caller keeps ownership of dev.
func New(dev device.Device, cfg Config) *Summer {
	return &Summer{dispatcher: dispatch.New(dev), cfg: cfg}
}

// Sum returns the sum of input. An empty input sums to 0 without touching the
// device. Device failures are returned unchanged in kind and never retried.
func (s *Summer) Sum(ctx context.Context, input []uint32) (Result, error) {
	var res Result
	if len(input) == 0 {
		return res, nil
	}

	level := input
	for {
		if maxValue(level) > overflowBound {
			res.OverflowRisk = true
		}
		partials, err := s.dispatcher.Partials(ctx, level)
		if err != nil {
			return Result{}, fmt.Errorf("reduce: level %d: %w", res.Levels, err)
		}
		if res.Levels == 0 {
			res.Partials = partials
			res.Groups = len(partials)
		}
		res.Levels++

		if !s.recurse(len(partials)) || maxValue(partials) > overflowBound {
			res.Total = HostSum(partials)
			return res, nil
		}
		level = partials
	}
}

// recurse reports whether a level with n partial sums goes back to the device.
func (s *Summer) recurse(n int) bool {
	return s.cfg.RecursiveThreshold > 0 && n > s.cfg.RecursiveThreshold && n > 1
}

// overflowBound is the largest element for which a full group cannot wrap.
const overflowBound = math.MaxUint32 / kernel.GroupWidth

// HostSum adds partial sums in 64 bits.
func HostSum(partials []uint32) uint64 {
	var total uint64
	for _, p := range partials {
		total += uint64(p)
	}
	return total
}

func maxValue(values []uint32) uint32 {
	var m uint32
	for _, v := range values {
		m = max(m, v)
	}
	return m
}
