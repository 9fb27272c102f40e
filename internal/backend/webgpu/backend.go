//go:build windows

// Package webgpu implements the compute device on a GPU through WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/born-ml/parsum/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// maxWorkgroupsPerDimension is the WebGPU default limit on
	// DispatchWorkgroups counts.
	maxWorkgroupsPerDimension = 65535
	// maxStorageBufferBindingSize is the WebGPU default limit on a storage
	// buffer binding (128 MiB).
	maxStorageBufferBindingSize = 128 << 20
)

// Device runs kernels on a WebGPU adapter.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache, keyed by kernel
	shaders   map[device.Kernel]*wgpu.ShaderModule
	pipelines map[device.Kernel]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfoGo

	// Readback staging buffers
	staging *StagingPool

	tracker  device.Tracker
	released bool
}

// New creates a WebGPU device on the high-performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New() (d *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", err)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	// Adapter info only feeds Name, so a failed query is not fatal.
	adapterInfo, infoErr := adapter.GetInfo()
	if infoErr != nil {
		adapterInfo = nil
	}

	gpu, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := gpu.GetQueue()
	if queue == nil {
		gpu.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Device{
		instance:    instance,
		adapter:     adapter,
		device:      gpu,
		queue:       queue,
		shaders:     make(map[device.Kernel]*wgpu.ShaderModule),
		pipelines:   make(map[device.Kernel]*wgpu.ComputePipeline),
		adapterInfo: adapterInfo,
		staging:     NewStagingPool(gpu),
	}, nil
}

// Name returns the adapter name.
func (d *Device) Name() string {
	return adapterName(d.adapterInfo)
}

// adapterName formats adapter info as "WebGPU (description, vendor)", leaving
// out empty fields.
func adapterName(info *wgpu.AdapterInfoGo) string {
	if info == nil {
		return "WebGPU"
	}
	var parts []string
	for _, s := range []string{info.Description, info.Vendor} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "WebGPU"
	}
	return "WebGPU (" + strings.Join(parts, ", ") + ")"
}

// MaxGroups returns the per-dimension workgroup limit.
func (d *Device) MaxGroups() uint32 {
	return maxWorkgroupsPerDimension
}

// AdapterInfo returns information about the GPU adapter.
func (d *Device) AdapterInfo() *wgpu.AdapterInfoGo {
	return d.adapterInfo
}

// Stats returns memory usage statistics, including staging pool hits.
func (d *Device) Stats() device.MemoryStats {
	s := d.tracker.Snapshot()
	if d.staging != nil {
		s.PoolHits, s.PoolMisses = d.staging.Stats()
	}
	return s
}

// Release releases all WebGPU resources.
// Must be called when the device is no longer needed.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true

	if d.staging != nil {
		d.staging.Clear()
		d.staging = nil
	}
	for _, p := range d.pipelines {
		p.Release()
	}
	d.pipelines = nil
	for _, s := range d.shaders {
		s.Release()
	}
	d.shaders = nil

	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// isReleased reports whether Release has been called.
func (d *Device) isReleased() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.released
}
