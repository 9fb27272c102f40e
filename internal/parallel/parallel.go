// Package parallel provides the goroutine fan-out and barrier primitives used
// to execute compute groups and their lanes on the host.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how independent work items are spread over goroutines.
type Config struct {
	Enabled      bool `yaml:"enabled"`        // Whether parallel execution is enabled.
	NumWorkers   int  `yaml:"num_workers"`    // Number of worker goroutines to use.
	MinChunkSize int  `yaml:"min_chunk_size"` // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// No ordering between items is guaranteed; For returns once every item is done.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Barrier is a reusable rendezvous point for a fixed number of parties.
//
// Wait blocks until all parties have called it, then releases them together
// and resets for the next round. Writes made before Wait are visible to every
// party after Wait returns.
type Barrier struct {
	parties    int
	waiting    int
	generation uint64
	mu         sync.Mutex
	cond       *sync.Cond
}

// NewBarrier creates a barrier for the given number of parties.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		panic("parallel: barrier needs at least one party")
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of goroutines that must reach the barrier.
func (b *Barrier) Parties() int {
	return b.parties
}

// Wait blocks until every party has reached the barrier.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}
