// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tracefs provides a filesystem wrapper that counts and logs
// every probe forwarded to the wrapped filesystem.
package tracefs

import (
	"context"
	"io/fs"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/o11y/iometrics"
)

// FS is a tracing filesystem.
type FS struct {
	fsys depfs.FS
	m    *iometrics.IOMetrics
}

var _ depfs.ExistsFS = (*FS)(nil)

// New creates a tracing filesystem named name wrapping fsys.
func New(name string, fsys depfs.FS) *FS {
	return &FS{
		fsys: fsys,
		m:    iometrics.New(name),
	}
}

// Stat returns attributes of name from the wrapped filesystem.
func (t *FS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	fi, err := t.fsys.Stat(ctx, name)
	t.m.StatDone(err)
	log.Debugf("%s: stat %s: %v", t.m.Name(), name, err)
	return fi, err
}

// RealPath returns the canonical path of name from the wrapped filesystem.
func (t *FS) RealPath(ctx context.Context, name string) (string, error) {
	p, err := t.fsys.RealPath(ctx, name)
	t.m.RealPathDone(err)
	log.Debugf("%s: realpath %s -> %q: %v", t.m.Name(), name, p, err)
	return p, err
}

// Exists reports whether name exists in the wrapped filesystem.
func (t *FS) Exists(ctx context.Context, name string) bool {
	t.m.ExistsDone()
	var ok bool
	if efs, isExists := t.fsys.(depfs.ExistsFS); isExists {
		ok = efs.Exists(ctx, name)
	} else {
		_, err := t.fsys.Stat(ctx, name)
		ok = err == nil
	}
	log.Debugf("%s: exists %s: %t", t.m.Name(), name, ok)
	return ok
}

// Metrics returns the probe counters.
func (t *FS) Metrics() *iometrics.IOMetrics {
	return t.m
}

// NumStatusCalls returns the number of status probes.
func (t *FS) NumStatusCalls() int64 {
	return t.m.Stats().StatOps
}

// NumRealPathCalls returns the number of real path resolutions.
func (t *FS) NumRealPathCalls() int64 {
	return t.m.Stats().RealPathOps
}

// NumExistsCalls returns the number of standalone existence probes.
func (t *FS) NumExistsCalls() int64 {
	return t.m.Stats().ExistsOps
}
