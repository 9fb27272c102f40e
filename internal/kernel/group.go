package kernel

import (
	"sync"

	"github.com/born-ml/parsum/internal/parallel"
)

// Group executes one group invocation with GroupWidth concurrent lanes.
// Lanes share a Scratch and meet at a barrier after the load phase and after
// every tree pass, the same rendezvous points a device workgroup uses.
//
// A Group is not safe for concurrent Run calls; each concurrently running
// group needs its own value.
type Group struct {
	scratch Scratch
	barrier *parallel.Barrier
}

// NewGroup allocates the shared scratch and barrier for one group.
func NewGroup() *Group {
	return &Group{barrier: parallel.NewBarrier(GroupWidth)}
}

// Run reduces chunk number group of input and stores the result in
// out[group]. It returns after every lane has finished.
func (g *Group) Run(input []uint32, group uint32, out []uint32) {
	var wg sync.WaitGroup
	wg.Add(GroupWidth)
	for lane := 0; lane < GroupWidth; lane++ {
		go func(lane int) {
			defer wg.Done()
			g.lane(input, group, lane, out)
		}(lane)
	}
	wg.Wait()
}

func (g *Group) lane(input []uint32, group uint32, lane int, out []uint32) {
	scratch := g.scratch[:]

	LoadLane(scratch, input, group, lane)
	g.barrier.Wait()

	for stride := 1; stride < GroupWidth; stride *= 2 {
		TreeLane(scratch, stride, lane)
		g.barrier.Wait()
	}

	if lane == 0 {
		out[group] = scratch[0]
	}
}
