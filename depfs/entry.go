// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"fmt"
	"io/fs"
	"sync/atomic"
)

// StatusOutcome is a result of a status probe.
type StatusOutcome struct {
	// Status is valid only if Err is nil.
	Status Status
	Err    error
}

func newStatusOutcome(fi fs.FileInfo, err error) *StatusOutcome {
	if err != nil {
		return &StatusOutcome{Err: err}
	}
	if fi == nil {
		panic("depfs: status probe returned neither file info nor error")
	}
	return &StatusOutcome{Status: NewStatus(fi)}
}

// Kind returns the error kind of the outcome.
func (o *StatusOutcome) Kind() ErrorKind { return KindOf(o.Err) }

// Failed reports whether the probe failed.
func (o *StatusOutcome) Failed() bool { return o.Err != nil }

func (o *StatusOutcome) String() string {
	if o == nil {
		return "<not computed>"
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind(), o.Err)
	}
	return o.Status.String()
}

// RealPathOutcome is a result of a real path resolution.
type RealPathOutcome struct {
	// Path is valid only if Err is nil.
	Path string
	Err  error
}

func newRealPathOutcome(name, realpath string, err error) *RealPathOutcome {
	if err != nil {
		return &RealPathOutcome{Err: err}
	}
	if realpath == "" {
		panic(fmt.Sprintf("depfs: real path of %q resolved to empty path without error", name))
	}
	return &RealPathOutcome{Path: realpath}
}

// Kind returns the error kind of the outcome.
func (o *RealPathOutcome) Kind() ErrorKind { return KindOf(o.Err) }

// Failed reports whether the resolution failed.
func (o *RealPathOutcome) Failed() bool { return o.Err != nil }

func (o *RealPathOutcome) String() string {
	if o == nil {
		return "<not computed>"
	}
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Kind(), o.Err)
	}
	return o.Path
}

// Entry is a cached record of one path.
// The status and the real path outcomes are populated independently;
// each is set at most once and never overwritten.
type Entry struct {
	path string

	status   atomic.Pointer[StatusOutcome]
	realPath atomic.Pointer[RealPathOutcome]
}

func newEntry(path string) *Entry {
	return &Entry{path: path}
}

// Path returns the lookup key of the entry.
func (e *Entry) Path() string { return e.path }

// StatusOutcome returns the cached status outcome, or nil if not computed.
func (e *Entry) StatusOutcome() *StatusOutcome { return e.status.Load() }

// RealPathOutcome returns the cached real path outcome, or nil if not computed.
func (e *Entry) RealPathOutcome() *RealPathOutcome { return e.realPath.Load() }

// setStatus stores o unless a status outcome is already set,
// and returns the stored outcome.
func (e *Entry) setStatus(o *StatusOutcome) *StatusOutcome {
	if e.status.CompareAndSwap(nil, o) {
		return o
	}
	return e.status.Load()
}

// setRealPath stores o unless a real path outcome is already set,
// and returns the stored outcome.
func (e *Entry) setRealPath(o *RealPathOutcome) *RealPathOutcome {
	if e.realPath.CompareAndSwap(nil, o) {
		return o
	}
	return e.realPath.Load()
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s status:{%s} realpath:{%s}", e.path, e.StatusOutcome(), e.RealPathOutcome())
}
