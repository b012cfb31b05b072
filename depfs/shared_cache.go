// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"math/bits"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"go.chromium.org/infra/build/depscanfs/runtimex"
)

// SharedCache is a thread-safe table of entries shared by all WorkerFS
// of a scanning service. Entries are never removed.
type SharedCache struct {
	shards []shard
	mask   uint64
}

// shard is a partition of the table to reduce mutex contention
// among workers probing disjoint header sets.
type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	// fills coalesces concurrent underlying calls for the same
	// (operation, path) in this shard.
	fills singleflight.Group
}

// NewSharedCache creates a shared cache with n shards, rounded up to
// a power of two. If n <= 0, it uses a multiple of the number of CPUs.
func NewSharedCache(n int) *SharedCache {
	if n <= 0 {
		n = 4 * runtimex.NumCPU()
	}
	n = 1 << bits.Len(uint(n-1))
	c := &SharedCache{
		shards: make([]shard, n),
		mask:   uint64(n - 1),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]*Entry)
	}
	return c
}

// NumShards returns the number of shards.
func (c *SharedCache) NumShards() int {
	return len(c.shards)
}

func (c *SharedCache) shard(name string) *shard {
	return &c.shards[xxhash.Sum64String(name)&c.mask]
}

// Lookup returns the entry for name.
func (c *SharedCache) Lookup(name string) (*Entry, bool) {
	s := c.shard(name)
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	return e, ok
}

// entry returns the entry for name, creating an empty one if missing.
func (c *SharedCache) entry(name string) *Entry {
	s := c.shard(name)
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok = s.entries[name]
	if !ok {
		e = newEntry(name)
		s.entries[name] = e
	}
	return e
}

// fill runs f at most once at a time for (op, name).
// Concurrent callers for the same key wait for and share its result.
func (c *SharedCache) fill(op, name string, f func() any) any {
	v, _, _ := c.shard(name).fills.Do(op+"\x00"+name, func() (any, error) {
		return f(), nil
	})
	return v
}

// Len returns the number of entries.
func (c *SharedCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Range calls f for each entry until f returns false.
// It visits a snapshot of each shard, so f may probe filesystems
// without blocking workers on the shard lock.
// Entries are visited in path order within a shard.
func (c *SharedCache) Range(f func(e *Entry) bool) {
	var ents []*Entry
	for i := range c.shards {
		s := &c.shards[i]
		ents = ents[:0]
		s.mu.RLock()
		for _, e := range s.entries {
			ents = append(ents, e)
		}
		s.mu.RUnlock()
		sort.Slice(ents, func(i, j int) bool {
			return ents[i].path < ents[j].path
		})
		for _, e := range ents {
			if !f(e) {
				return
			}
		}
	}
}
