// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runtimex provides processor counts that account for
// all Windows processor groups.
package runtimex

import "runtime"

var ncpu = func() int {
	if n := activeProcessorCount(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}()

// NumCPU returns the number of logical CPUs usable by the current process.
// On Windows, runtime.NumCPU only reports a single processor group (up to 64).
func NumCPU() int {
	return ncpu
}

// Parallelism returns n if it is positive, or NumCPU otherwise.
func Parallelism(n int) int {
	if n > 0 {
		return n
	}
	return ncpu
}
