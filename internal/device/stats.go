package device

import "sync"

// MemoryStats represents device memory usage statistics.
type MemoryStats struct {
	// Bytes currently allocated
	AllocatedBytes uint64
	// Peak of AllocatedBytes since device creation
	PeakBytes uint64
	// Total bytes allocated since device creation
	TotalAllocatedBytes uint64
	// Number of currently live buffers
	ActiveBuffers int64
	// Staging pool statistics, zero for devices without a pool
	PoolHits   uint64
	PoolMisses uint64
}

// Tracker accumulates MemoryStats for a device. The zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	stats MemoryStats
}

// Alloc records a buffer allocation.
func (t *Tracker) Alloc(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.AllocatedBytes += size
	t.stats.TotalAllocatedBytes += size
	t.stats.ActiveBuffers++
	if t.stats.AllocatedBytes > t.stats.PeakBytes {
		t.stats.PeakBytes = t.stats.AllocatedBytes
	}
}

// Free records a buffer release.
func (t *Tracker) Free(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats.AllocatedBytes >= size {
		t.stats.AllocatedBytes -= size
	} else {
		t.stats.AllocatedBytes = 0
	}
	t.stats.ActiveBuffers--
}

// Allocated returns the bytes currently allocated.
func (t *Tracker) Allocated() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.AllocatedBytes
}

// Snapshot returns a copy of the current statistics.
func (t *Tracker) Snapshot() MemoryStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
