// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package service

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscanfs/depfs"
)

// InvalidNegativeStatCachedPaths returns paths cached as not existing
// that exist in fsys now, in sorted order.
// It doesn't modify the cache.
func (s *Service) InvalidNegativeStatCachedPaths(ctx context.Context, fsys depfs.FS) []string {
	var paths []string
	var checked int
	s.shared.Range(func(e *depfs.Entry) bool {
		if ctx.Err() != nil {
			return false
		}
		o := e.StatusOutcome()
		if o == nil || !o.Failed() {
			return true
		}
		checked++
		if _, err := fsys.Stat(ctx, e.Path()); err == nil {
			paths = append(paths, e.Path())
		}
		return true
	})
	if err := ctx.Err(); err != nil {
		log.Warnf("scanning service %s: stale negative stat check interrupted after %d entries: %v", s.id, checked, err)
	}
	slices.Sort(paths)
	log.Infof("scanning service %s: %d of %d negative stat cached paths are stale", s.id, len(paths), checked)
	return paths
}
