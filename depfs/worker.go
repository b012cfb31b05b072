// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Option is an option for WorkerFS.
type Option struct {
	// CacheNegativeStats enables caching of failed probes
	// for names with a file name extension.
	CacheNegativeStats bool
}

// Stats holds cache statistics of a WorkerFS.
type Stats struct {
	// Number of lookups answered by the local cache.
	LocalHits int64
	// Number of lookups answered by the shared cache.
	SharedHits int64
	// Number of status probes issued to the underlying filesystem.
	StatCalls int64
	// Number of real path resolutions issued to the underlying filesystem.
	RealPathCalls int64
	// Number of outcomes not stored because the policy rejected them.
	Uncached int64
	// Number of lookups under the bypassed path prefix.
	Bypassed int64
}

func (s Stats) String() string {
	return fmt.Sprintf("local:%d shared:%d stat:%d realpath:%d uncached:%d bypassed:%d", s.LocalHits, s.SharedHits, s.StatCalls, s.RealPathCalls, s.Uncached, s.Bypassed)
}

// Add adds counters of o to s.
func (s *Stats) Add(o Stats) {
	s.LocalHits += o.LocalHits
	s.SharedHits += o.SharedHits
	s.StatCalls += o.StatCalls
	s.RealPathCalls += o.RealPathCalls
	s.Uncached += o.Uncached
	s.Bypassed += o.Bypassed
}

// WorkerFS is a caching filesystem used by one scanning worker.
// It looks up its local cache, then the shared cache, then the
// underlying filesystem.
// It is not safe for concurrent use; create a WorkerFS per worker
// with the same SharedCache to share results.
//
// Concurrent misses of the same path in different workers wait for one
// underlying call. If its outcome is not cacheable, each waiting worker
// probes again with its own context, so an uncached path always gets
// an underlying call of its own.
type WorkerFS struct {
	fsys   FS
	shared *SharedCache
	local  *localCache
	opt    Option

	bypassPrefix string

	stats Stats
}

// NewWorkerFS creates a WorkerFS probing fsys and sharing cache.
func NewWorkerFS(fsys FS, cache *SharedCache, opt Option) *WorkerFS {
	return &WorkerFS{
		fsys:   fsys,
		shared: cache,
		local:  newLocalCache(),
		opt:    opt,
	}
}

// SetBypassedPathPrefix disables caching for names starting with prefix,
// for subsequent calls.
func (w *WorkerFS) SetBypassedPathPrefix(prefix string) {
	w.bypassPrefix = prefix
}

// ResetBypassedPathPrefix restores caching for all names,
// for subsequent calls.
func (w *WorkerFS) ResetBypassedPathPrefix() {
	w.bypassPrefix = ""
}

// BypassedPathPrefix returns the current bypassed path prefix.
func (w *WorkerFS) BypassedPathPrefix() string {
	return w.bypassPrefix
}

// Stats returns cache statistics of the WorkerFS.
func (w *WorkerFS) Stats() Stats {
	return w.stats
}

// Status returns attributes of name.
func (w *WorkerFS) Status(ctx context.Context, name string) (Status, error) {
	o := w.statusOutcome(ctx, name)
	return o.Status, o.Err
}

// Exists reports whether name exists.
// It is answered from Status, and never probes existence separately.
func (w *WorkerFS) Exists(ctx context.Context, name string) bool {
	return !w.statusOutcome(ctx, name).Failed()
}

// RealPath returns the canonical path of name.
func (w *WorkerFS) RealPath(ctx context.Context, name string) (string, error) {
	o := w.realPathOutcome(ctx, name)
	return o.Path, o.Err
}

func (w *WorkerFS) statusOutcome(ctx context.Context, name string) *StatusOutcome {
	prefix := w.bypassPrefix
	if Bypassed(name, prefix) {
		w.stats.Bypassed++
		return w.stat(ctx, name)
	}
	e, ok := w.local.lookup(name)
	if ok {
		if o := e.StatusOutcome(); o != nil {
			w.stats.LocalHits++
			return o
		}
	} else if e, ok = w.shared.Lookup(name); ok {
		if o := e.StatusOutcome(); o != nil {
			w.stats.SharedHits++
			w.local.store(name, e)
			return o
		}
	}
	led := false
	o := w.shared.fill("stat", name, func() any {
		led = true
		if e, ok := w.shared.Lookup(name); ok {
			if o := e.StatusOutcome(); o != nil {
				w.stats.SharedHits++
				return o
			}
		}
		o := w.stat(ctx, name)
		if !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
			return o
		}
		return w.shared.entry(name).setStatus(o)
	}).(*StatusOutcome)
	if !led && !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
		// the shared answer was not cached, e.g. it was aborted by
		// the other worker's context. ask the underlying filesystem again.
		o = w.stat(ctx, name)
		if Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
			o = w.shared.entry(name).setStatus(o)
		}
	}
	if !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
		w.stats.Uncached++
		if log.GetLevel() <= log.DebugLevel {
			log.Debugf("stat %s not cached: %s", name, o)
		}
		return o
	}
	w.local.store(name, w.shared.entry(name))
	return o
}

func (w *WorkerFS) realPathOutcome(ctx context.Context, name string) *RealPathOutcome {
	prefix := w.bypassPrefix
	if Bypassed(name, prefix) {
		w.stats.Bypassed++
		return w.realPath(ctx, name)
	}
	e, ok := w.local.lookup(name)
	if ok {
		if o := e.RealPathOutcome(); o != nil {
			w.stats.LocalHits++
			return o
		}
	} else if e, ok = w.shared.Lookup(name); ok {
		if o := e.RealPathOutcome(); o != nil {
			w.stats.SharedHits++
			w.local.store(name, e)
			return o
		}
	}
	led := false
	o := w.shared.fill("realpath", name, func() any {
		led = true
		if e, ok := w.shared.Lookup(name); ok {
			if o := e.RealPathOutcome(); o != nil {
				w.stats.SharedHits++
				return o
			}
		}
		o := w.realPath(ctx, name)
		if !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
			return o
		}
		return w.shared.entry(name).setRealPath(o)
	}).(*RealPathOutcome)
	if !led && !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
		// the shared answer was not cached, e.g. it was aborted by
		// the other worker's context. ask the underlying filesystem again.
		o = w.realPath(ctx, name)
		if Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
			o = w.shared.entry(name).setRealPath(o)
		}
	}
	if !Cacheable(name, outcomeKindOf(o.Err), prefix, w.opt.CacheNegativeStats) {
		w.stats.Uncached++
		if log.GetLevel() <= log.DebugLevel {
			log.Debugf("realpath %s not cached: %s", name, o)
		}
		return o
	}
	w.local.store(name, w.shared.entry(name))
	return o
}

func (w *WorkerFS) stat(ctx context.Context, name string) *StatusOutcome {
	w.stats.StatCalls++
	fi, err := w.fsys.Stat(ctx, name)
	return newStatusOutcome(fi, err)
}

func (w *WorkerFS) realPath(ctx context.Context, name string) *RealPathOutcome {
	w.stats.RealPathCalls++
	p, err := w.fsys.RealPath(ctx, name)
	return newRealPathOutcome(name, p, err)
}
