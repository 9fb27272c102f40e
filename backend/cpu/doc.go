// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go compute device that runs the group-sum
// kernel on host goroutines.
//
// # Overview
//
// This device is always available and needs no GPU driver. It executes the
// same load, tree-pass and writeback phases as the WebGPU shader, so it
// doubles as a reference for checking GPU results.
//
// # Limits
//
// Config.MaxBufferSize, Config.MaxMemory and Config.MaxGroups emulate device
// limits; exceeding them yields the same errors a GPU reports.
//
// # Thread Safety
//
// The device is safe for concurrent use. Each dispatch owns its scratch
// memory and writes disjoint output slots.
package cpu
