// Package kernel implements the group-reduction kernel: one execution group of
// GroupWidth lanes reduces one chunk of the input to one partial sum through
// shared scratch memory and a halving-stride binary tree.
//
// The phases are exposed individually so they can be applied to all lanes of
// a group at once (a sequential simulation of the barrier schedule), and are
// also driven lane by lane from real goroutines by Group.
package kernel

import (
	"errors"
	"fmt"
	"math/bits"
)

// GroupWidth is the number of lanes per execution group and the chunk width.
const GroupWidth = 64

// Neutral is the identity element of the reduction operator.
const Neutral uint32 = 0

// ErrWidthNotPowerOfTwo is returned for group widths the stride-doubling
// schedule cannot reduce exactly.
var ErrWidthNotPowerOfTwo = errors.New("kernel: group width must be a power of two")

// Scratch is the shared memory of one execution group.
type Scratch [GroupWidth]uint32

// ValidateWidth reports whether w can be used with the tree schedule.
func ValidateWidth(w int) error {
	if w <= 0 || w&(w-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrWidthNotPowerOfTwo, w)
	}
	return nil
}

// Passes returns the number of tree passes for width w, ceil(log2(w)).
func Passes(w int) int {
	if w <= 1 {
		return 0
	}
	return bits.Len(uint(w - 1))
}

// LoadLane is the load phase of a single lane: it copies the element at
// global position group*len(scratch)+lane into scratch[lane], or the neutral
// element when that position is past the end of input.
func LoadLane(scratch, input []uint32, group uint32, lane int) {
	gid := uint64(group)*uint64(len(scratch)) + uint64(lane)
	if gid < uint64(len(input)) {
		scratch[lane] = input[gid]
	} else {
		scratch[lane] = Neutral
	}
}

// Load applies the load phase for every lane of the group.
func Load(scratch, input []uint32, group uint32) {
	for lane := range scratch {
		LoadLane(scratch, input, group, lane)
	}
}

// TreeLane is one lane's step of a tree pass. Lane L combines slot
// 2*stride*L+stride into slot 2*stride*L when both lie inside scratch.
// It reports whether the lane was active.
func TreeLane(scratch []uint32, stride, lane int) bool {
	index := 2 * stride * lane
	if index+stride < len(scratch) {
		scratch[index] += scratch[index+stride]
		return true
	}
	return false
}

// TreePass applies one pass of the tree schedule for every lane.
func TreePass(scratch []uint32, stride int) {
	for lane := range scratch {
		TreeLane(scratch, stride, lane)
	}
}

// Tree runs all passes of the tree schedule over scratch and returns slot 0.
// len(scratch) must be a power of two.
func Tree(scratch []uint32) uint32 {
	for stride := 1; stride < len(scratch); stride *= 2 {
		TreePass(scratch, stride)
	}
	return scratch[0]
}

// Sequential reduces scratch with sequential addressing: in each pass lane L
// below the stride adds slot L+stride into slot L, with the stride halving
// from len/2 to 1. It returns slot 0.
func Sequential(scratch []uint32) uint32 {
	for stride := len(scratch) / 2; stride > 0; stride >>= 1 {
		for lane := 0; lane < stride; lane++ {
			scratch[lane] += scratch[lane+stride]
		}
	}
	return scratch[0]
}

// ReduceGroup reduces one full chunk with the tree schedule on the calling
// goroutine. The chunk is copied into a private scratch array.
func ReduceGroup(chunk *[GroupWidth]uint32) uint32 {
	scratch := Scratch(*chunk)
	return Tree(scratch[:])
}

// Reduce runs load, tree and writeback for one group against input, writing
// the partial sum to out[group]. Every phase completes for all lanes before
// the next begins.
func Reduce(input []uint32, group uint32, out []uint32) {
	var scratch Scratch
	Load(scratch[:], input, group)
	out[group] = Tree(scratch[:])
}

// ActiveIndices returns the scratch slots written by active lanes in the tree
// pass with the given stride, in lane order.
func ActiveIndices(width, stride int) []int {
	var idx []int
	for lane := 0; lane < width; lane++ {
		index := 2 * stride * lane
		if index+stride < width {
			idx = append(idx, index)
		}
	}
	return idx
}

// CheckCollisionFree verifies that in every tree pass for the given width no
// two active lanes touch the same slot, either as destination or as source.
func CheckCollisionFree(width int) error {
	if err := ValidateWidth(width); err != nil {
		return err
	}
	for stride := 1; stride < width; stride *= 2 {
		owner := make(map[int]int)
		for lane := 0; lane < width; lane++ {
			index := 2 * stride * lane
			if index+stride >= width {
				continue
			}
			for _, slot := range [2]int{index, index + stride} {
				if prev, ok := owner[slot]; ok {
					return fmt.Errorf("kernel: stride %d: lanes %d and %d both touch slot %d", stride, prev, lane, slot)
				}
				owner[slot] = lane
			}
		}
	}
	return nil
}
