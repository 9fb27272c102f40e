//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU compute device.
//
// WebGPU is a cross-platform graphics and compute API that works on:
//   - Windows (via Dawn/D3D12)
//   - macOS (via Dawn/Metal)
//   - Linux (via Dawn/Vulkan)
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    dev, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer dev.Release()
//	    res, err := reduce.New(dev, reduce.DefaultConfig()).Sum(ctx, values)
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/parsum/internal/backend/webgpu"
	"github.com/born-ml/parsum/reduce"
)

// Device represents the WebGPU compute device.
type Device = internalwebgpu.Device

// Compile-time check that Device implements reduce.Device.
var _ reduce.Device = (*Device)(nil)

// New creates a WebGPU device on the high-performance adapter.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
// Call Release() when done to free GPU resources.
func New() (*Device, error) {
	return internalwebgpu.New()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It is useful for graceful fallback to the cpu device.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
