// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package iometrics counts filesystem probe operations.
package iometrics

import (
	"fmt"
	"sync"
)

// IOMetrics holds probe metrics of a filesystem.
// A nil *IOMetrics is valid and counts nothing.
type IOMetrics struct {
	name string

	mu sync.Mutex

	statOps      int64
	statErrs     int64
	realPathOps  int64
	realPathErrs int64
	existsOps    int64
}

// New returns new iometrics for name.
func New(name string) *IOMetrics {
	return &IOMetrics{name: name}
}

// StatDone counts when a status probe is done. err is the probe error.
func (m *IOMetrics) StatDone(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statOps++
	if err != nil {
		m.statErrs++
	}
}

// RealPathDone counts when a real path resolution is done.
func (m *IOMetrics) RealPathDone(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realPathOps++
	if err != nil {
		m.realPathErrs++
	}
}

// ExistsDone counts when a standalone existence probe is done.
func (m *IOMetrics) ExistsDone() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsOps++
}

// Name returns the name of the iometrics.
func (m *IOMetrics) Name() string {
	if m == nil {
		return "<nil>"
	}
	return m.name
}

// Stats holds iometrics.
type Stats struct {
	// Number of status probes.
	StatOps int64
	// Number of failed status probes.
	StatErrs int64

	// Number of real path resolutions.
	RealPathOps int64
	// Number of failed real path resolutions.
	RealPathErrs int64

	// Number of standalone existence probes.
	ExistsOps int64
}

func (s Stats) String() string {
	return fmt.Sprintf("stat:%d(err:%d) realpath:%d(err:%d) exists:%d", s.StatOps, s.StatErrs, s.RealPathOps, s.RealPathErrs, s.ExistsOps)
}

// Stats returns the snapshot of the iometrics.
func (m *IOMetrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		StatOps:      m.statOps,
		StatErrs:     m.statErrs,
		RealPathOps:  m.realPathOps,
		RealPathErrs: m.realPathErrs,
		ExistsOps:    m.existsOps,
	}
}
