//go:build windows

package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/born-ml/parsum/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// storageUsage is the usage of every buffer handed out by Allocate.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// gpuBuffer is a storage buffer owned by a Device.
type gpuBuffer struct {
	owner *Device
	buf   *wgpu.Buffer
	size  uint64 // requested size
	alloc uint64 // allocated size, a non-zero multiple of 4
	freed bool
}

func (b *gpuBuffer) Size() uint64 { return b.size }

// Allocate creates a storage buffer. Sizes are rounded up to whole words.
func (d *Device) Allocate(size uint64) (buf device.Buffer, err error) {
	if d.isReleased() {
		return nil, &device.AllocationError{Size: size, Err: device.ErrReleased}
	}
	if size > maxStorageBufferBindingSize {
		return nil, &device.AllocationError{Size: size, Limit: maxStorageBufferBindingSize}
	}
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = &device.AllocationError{Size: size, Err: fmt.Errorf("webgpu: %v", r)}
		}
	}()

	alloc := max((size+3)&^3, device.WordSize)
	b := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  alloc,
	})
	if b == nil {
		return nil, &device.AllocationError{Size: size}
	}
	d.tracker.Alloc(alloc)
	return &gpuBuffer{owner: d, buf: b, size: size, alloc: alloc}, nil
}

// Upload writes data to buf through a mapped-at-creation staging buffer.
func (d *Device) Upload(buf device.Buffer, data []byte) (err error) {
	dst, err := d.own(buf)
	if err != nil {
		return err
	}
	if uint64(len(data)) > dst.size {
		return fmt.Errorf("webgpu: upload of %d bytes exceeds buffer size %d", len(data), dst.size)
	}
	if len(data) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webgpu: upload failed: %v", r)
		}
	}()

	size := (uint64(len(data)) + 3) &^ 3
	src := d.createMappedBuffer(data, size, wgpu.BufferUsageCopySrc)
	defer src.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, dst.buf, 0, size)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)
	return nil
}

// createMappedBuffer creates a buffer of the given size holding data.
func (d *Device) createMappedBuffer(data []byte, size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// Dispatch records one compute pass of kernel k over groups workgroups and
// submits it. The queue executes submissions in order, so a later Download
// observes the completed dispatch.
func (d *Device) Dispatch(k device.Kernel, input, output device.Buffer, groups uint32) (err error) {
	fail := func(cause error) error {
		return &device.ExecutionError{Kernel: k, Groups: groups, Err: cause}
	}

	in, err := d.own(input)
	if err != nil {
		return fail(err)
	}
	out, err := d.own(output)
	if err != nil {
		return fail(err)
	}
	if groups > maxWorkgroupsPerDimension {
		return fail(fmt.Errorf("group count exceeds device limit %d", maxWorkgroupsPerDimension))
	}
	if k == device.KernelGroupSum && out.alloc < uint64(groups)*device.WordSize {
		return fail(fmt.Errorf("output holds %d bytes, need %d", out.alloc, uint64(groups)*device.WordSize))
	}
	if groups == 0 {
		return nil
	}

	pipeline, err := d.pipeline(k)
	if err != nil {
		return fail(err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("webgpu: %v", r))
		}
	}()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := d.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, in.buf, 0, in.alloc),
		wgpu.BufferBindingEntry(1, out.buf, 0, out.alloc),
	})
	defer bindGroup.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(groups, 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)
	return nil
}

// Download copies buf into a pooled staging buffer, maps it and returns the
// contents. Mapping waits for all prior submissions to complete.
func (d *Device) Download(buf device.Buffer) (data []byte, err error) {
	src, err := d.own(buf)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("%w: webgpu readback: %v", device.ErrDeviceExecution, r)
		}
	}()

	stagingBuffer := d.staging.Acquire(src.alloc)
	defer d.staging.Release(stagingBuffer, src.alloc)

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src.buf, 0, stagingBuffer, 0, src.alloc)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(d.device, wgpu.MapModeRead, 0, src.alloc); err != nil {
		return nil, fmt.Errorf("%w: failed to map staging buffer: %w", device.ErrDeviceExecution, err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, src.alloc)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), src.alloc)
	result := make([]byte, src.size)
	copy(result, mappedSlice)
	stagingBuffer.Unmap()

	return result, nil
}

// Free releases a buffer.
func (d *Device) Free(buf device.Buffer) {
	b, ok := buf.(*gpuBuffer)
	if !ok || b == nil || b.owner != d || b.freed {
		return
	}
	b.freed = true
	b.buf.Release()
	d.tracker.Free(b.alloc)
}

// own checks that buf is a live buffer of this device.
func (d *Device) own(buf device.Buffer) (*gpuBuffer, error) {
	if d.isReleased() {
		return nil, device.ErrReleased
	}
	b, ok := buf.(*gpuBuffer)
	if !ok || b == nil || b.owner != d {
		return nil, device.ErrForeignBuffer
	}
	if b.freed {
		return nil, device.ErrBufferFreed
	}
	return b, nil
}

// pipeline returns the cached compute pipeline for k, compiling its shader
// on first use.
func (d *Device) pipeline(k device.Kernel) (*wgpu.ComputePipeline, error) {
	d.mu.RLock()
	if p, ok := d.pipelines[k]; ok {
		d.mu.RUnlock()
		return p, nil
	}
	d.mu.RUnlock()

	code, ok := shaderSource(k)
	if !ok {
		return nil, device.ErrUnknownKernel
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipelines[k]; ok {
		return p, nil
	}

	shader := d.device.CreateShaderModuleWGSL(code)
	// Create compute pipeline with auto layout (nil layout)
	p := d.device.CreateComputePipelineSimple(nil, shader, "main")
	d.shaders[k] = shader
	d.pipelines[k] = p
	return p, nil
}
