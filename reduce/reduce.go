// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"context"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/dispatch"
	internalreduce "github.com/born-ml/parsum/internal/reduce"
)

// GroupWidth is the number of lanes per execution group and the chunk width.
const GroupWidth = 64

// Device is a compute device a Summer can run on.
type Device = device.Device

// Config controls the final reduction.
type Config = internalreduce.Config

// Result is the outcome of one reduction.
type Result = internalreduce.Result

// Summer reduces sequences on one device.
type Summer = internalreduce.Summer

// AllocationError reports a buffer that could not be allocated.
type AllocationError = device.AllocationError

// ExecutionError reports a kernel that failed to launch or faulted.
type ExecutionError = device.ExecutionError

// Errors matched with errors.Is.
var (
	ErrAllocation      = device.ErrAllocation
	ErrDeviceExecution = device.ErrDeviceExecution
)

// DefaultConfig sums partial sums on the host.
func DefaultConfig() Config {
	return internalreduce.DefaultConfig()
}

// New creates a Summer using dev. The caller keeps ownership of dev and
// must Release it when done.
func New(dev Device, cfg Config) *Summer {
	return internalreduce.New(dev, cfg)
}

// HostSum adds values in 64-bit arithmetic.
func HostSum(values []uint32) uint64 {
	return internalreduce.HostSum(values)
}

// RoundTrip copies data through dev with the copy kernel and returns how
// many words came back different. Use it to check a device before trusting
// its sums.
func RoundTrip(ctx context.Context, dev Device, data []uint32) (int, error) {
	return dispatch.New(dev).RoundTrip(ctx, data)
}
