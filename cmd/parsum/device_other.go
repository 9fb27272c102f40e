//go:build !windows

package main

import (
	"errors"

	"github.com/born-ml/parsum/reduce"
)

var errNoGPU = errors.New("webgpu backend is not built for this platform")

func gpuAvailable() bool {
	return false
}

func openGPU() (reduce.Device, error) {
	return nil, errNoGPU
}
