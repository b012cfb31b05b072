// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

// localCache is a per-worker view of the shared cache.
// It holds references to shared entries, not copies, so an outcome
// stored later by another worker is visible through it.
// It is not safe for concurrent use.
type localCache struct {
	entries map[string]*Entry
}

func newLocalCache() *localCache {
	return &localCache{
		entries: make(map[string]*Entry),
	}
}

func (c *localCache) lookup(name string) (*Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

func (c *localCache) store(name string, e *Entry) {
	if e.path != name {
		panic("depfs: local cache stores entry " + e.path + " for " + name)
	}
	c.entries[name] = e
}
