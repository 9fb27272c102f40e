//go:build windows

package main

import (
	"github.com/born-ml/parsum/backend/webgpu"
	"github.com/born-ml/parsum/reduce"
)

func gpuAvailable() bool {
	return webgpu.IsAvailable()
}

func openGPU() (reduce.Device, error) {
	dev, err := webgpu.New()
	if err != nil {
		return nil, err
	}
	return dev, nil
}
