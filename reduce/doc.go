// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package reduce sums large uint32 sequences on a parallel compute device.
//
// # Overview
//
// The input is split into 64-element chunks. Each chunk is reduced by one
// execution group of 64 lanes that cooperate through shared scratch memory
// and a halving-stride tree, leaving one partial sum per chunk. The partial
// sums are read back and added on the host.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/parsum/backend/cpu"
//	    "github.com/born-ml/parsum/reduce"
//	)
//
//	func main() {
//	    dev, err := cpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer dev.Release()
//
//	    res, err := reduce.New(dev, reduce.DefaultConfig()).Sum(ctx, values)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Total)
//	}
//
// # Accumulation Width
//
// Groups add in 32 bits and wrap modulo 2^32, as the device does. The host
// adds partial sums in 64 bits. Result.OverflowRisk reports inputs for which a
// group total may have wrapped.
//
// # Errors
//
// Buffer allocation failures match ErrAllocation and device faults match
// ErrDeviceExecution under errors.Is. Nothing is retried.
package reduce
