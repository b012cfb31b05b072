// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"context"
	"io/fs"
)

// FS is the underlying filesystem probed on cache misses.
// Case and separator normalization of names is its responsibility.
type FS interface {
	// Stat returns attributes of the named file, following symlinks.
	Stat(ctx context.Context, name string) (fs.FileInfo, error)

	// RealPath returns the canonical path of the named file.
	RealPath(ctx context.Context, name string) (string, error)
}

// ExistsFS is an FS with a standalone existence probe.
// WorkerFS never calls Exists; it answers existence from Stat.
type ExistsFS interface {
	FS
	Exists(ctx context.Context, name string) bool
}
