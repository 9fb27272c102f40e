// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/parsum/internal/backend/cpu"
	"github.com/born-ml/parsum/reduce"
)

// Device represents the simulated compute device.
//
// Execution groups are spread over goroutines. Within a group the lanes run
// either phase by phase on one goroutine (ModePhased) or each on its own
// goroutine with a barrier between phases (ModeLanes).
type Device = internalcpu.Device

// Config controls the simulated device.
type Config = internalcpu.Config

// Mode selects how the lanes of a group are executed.
type Mode = internalcpu.Mode

// Lane execution modes.
const (
	ModePhased = internalcpu.ModePhased
	ModeLanes  = internalcpu.ModeLanes
)

// Compile-time check that Device implements reduce.Device.
var _ reduce.Device = (*Device)(nil)

// DefaultConfig returns a phased device using all CPUs with no memory limits.
func DefaultConfig() Config {
	return internalcpu.DefaultConfig()
}

// New creates a simulated device with the default configuration.
//
// Example:
//
//	dev, _ := cpu.New()
//	defer dev.Release()
//	res, err := reduce.New(dev, reduce.DefaultConfig()).Sum(ctx, values)
func New() (*Device, error) {
	return internalcpu.New(internalcpu.DefaultConfig())
}

// NewWithConfig creates a simulated device with cfg.
func NewWithConfig(cfg Config) (*Device, error) {
	return internalcpu.New(cfg)
}
