//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/parsum/internal/device"
	"github.com/born-ml/parsum/internal/kernel"
)

// WGSL compute shaders, one per kernel. Each source is prefixed with
// wgslHeader, which defines the workgroup width WG.

// workgroupSize is the number of invocations per workgroup.
const workgroupSize = kernel.GroupWidth

// wgslHeader declares WG as a WGSL constant equal to workgroupSize.
var wgslHeader = fmt.Sprintf("const WG: u32 = %du;\n", workgroupSize)

// groupSumShader reduces each WG-word chunk of input to one partial sum.
// Lane L of workgroup G loads input[G*WG+L] (0 past the end of the binding),
// then the tree passes combine slot 2*stride*L+stride into 2*stride*L with a
// barrier after every pass. Lane 0 writes the total to partials[G].
const groupSumShader = `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> partials: array<u32>;

var<workgroup> scratch: array<u32, WG>;

@compute @workgroup_size(WG)
fn main(
    @builtin(local_invocation_id) local_id: vec3<u32>,
    @builtin(workgroup_id) workgroup_id: vec3<u32>
) {
    let lane = local_id.x;
    let gid = workgroup_id.x * WG + lane;

    if (gid < arrayLength(&input)) {
        scratch[lane] = input[gid];
    } else {
        scratch[lane] = 0u;
    }
    workgroupBarrier();

    for (var stride: u32 = 1u; stride < WG; stride = stride * 2u) {
        let index = 2u * stride * lane;
        if (index + stride < WG) {
            scratch[index] = scratch[index] + scratch[index + stride];
        }
        workgroupBarrier();
    }

    if (lane == 0u) {
        partials[workgroup_id.x] = scratch[0];
    }
}
`

// copyShader copies input to output word for word.
const copyShader = `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> output: array<u32>;

@compute @workgroup_size(WG)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < arrayLength(&input) && idx < arrayLength(&output)) {
        output[idx] = input[idx];
    }
}
`

// shaderSource returns the WGSL code for a kernel.
func shaderSource(k device.Kernel) (string, bool) {
	switch k {
	case device.KernelGroupSum:
		return wgslHeader + groupSumShader, true
	case device.KernelCopy:
		return wgslHeader + copyShader, true
	default:
		return "", false
	}
}
