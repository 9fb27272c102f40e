//go:build windows

package webgpu

import (
	"math/bits"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	// minStagingSize is the smallest staging bucket.
	minStagingSize = 256
	// maxPerBucket caps idle buffers kept per size bucket.
	maxPerBucket = 8
)

// stagingUsage is the usage of readback staging buffers.
const stagingUsage = wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst

// StagingPool reuses MAP_READ staging buffers across downloads.
// Buffers are bucketed by size rounded up to a power of two.
type StagingPool struct {
	device *wgpu.Device

	idle map[uint64][]*wgpu.Buffer
	mu   sync.Mutex

	hits   uint64
	misses uint64
}

// NewStagingPool creates a pool for the given device.
func NewStagingPool(device *wgpu.Device) *StagingPool {
	return &StagingPool{
		device: device,
		idle:   make(map[uint64][]*wgpu.Buffer),
	}
}

// bucketSize returns the staging size used for a request of size bytes.
func bucketSize(size uint64) uint64 {
	if size <= minStagingSize {
		return minStagingSize
	}
	return 1 << bits.Len64(size-1)
}

// Acquire returns a staging buffer of at least size bytes.
func (p *StagingPool) Acquire(size uint64) *wgpu.Buffer {
	bucket := bucketSize(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if list := p.idle[bucket]; len(list) > 0 {
		buf := list[len(list)-1]
		p.idle[bucket] = list[:len(list)-1]
		p.hits++
		return buf
	}

	p.misses++
	return p.device.CreateBuffer(stagingDescriptor(bucket))
}

func stagingDescriptor(size uint64) *wgpu.BufferDescriptor {
	return &wgpu.BufferDescriptor{
		Usage: stagingUsage,
		Size:  size,
	}
}

// Release returns a buffer obtained from Acquire(size). If its bucket is
// full the buffer is released immediately.
func (p *StagingPool) Release(buf *wgpu.Buffer, size uint64) {
	bucket := bucketSize(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle[bucket]) >= maxPerBucket {
		buf.Release()
		return
	}
	p.idle[bucket] = append(p.idle[bucket], buf)
}

// Clear releases all idle buffers.
func (p *StagingPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for bucket, list := range p.idle {
		for _, buf := range list {
			buf.Release()
		}
		delete(p.idle, bucket)
	}
}

// Stats returns the pool hit and miss counts.
func (p *StagingPool) Stats() (hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Idle returns the number of buffers waiting for reuse.
func (p *StagingPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, list := range p.idle {
		n += len(list)
	}
	return n
}
