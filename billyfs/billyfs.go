// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package billyfs adapts a go-billy filesystem (e.g. memfs, or an overlay
// of build outputs) as the underlying filesystem of depfs.
package billyfs

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/o11y/iometrics"
)

// Linux imposes a limit of at most 40 symlinks in any one path lookup.
// see: https://lwn.net/Articles/650786/
const maxSymlinks = 40

var errTooManyLinks = errors.New("too many levels of symbolic links")

// FS is a depfs.FS backed by billy.Filesystem.
type FS struct {
	fsys billy.Filesystem

	// IOMetrics stores the metrics of probes on the FS.
	IOMetrics *iometrics.IOMetrics
}

var _ depfs.FS = (*FS)(nil)

// New creates FS on fsys.
func New(fsys billy.Filesystem) *FS {
	return &FS{
		fsys:      fsys,
		IOMetrics: iometrics.New("billyfs"),
	}
}

// Filesystem returns the wrapped filesystem.
func (b *FS) Filesystem() billy.Filesystem {
	return b.fsys
}

// Stat returns attributes of name, following symlinks.
func (b *FS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	fi, err := b.fsys.Stat(name)
	b.IOMetrics.StatDone(err)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: unwrapPathError(err)}
	}
	return fi, nil
}

// RealPath returns the absolute path of name with all symlinks resolved.
func (b *FS) RealPath(ctx context.Context, name string) (string, error) {
	p, err := b.resolve(name)
	b.IOMetrics.RealPathDone(err)
	if err != nil {
		return "", &fs.PathError{Op: "realpath", Path: name, Err: err}
	}
	return p, nil
}

func (b *FS) resolve(name string) (string, error) {
	const sep = string(filepath.Separator)
	root := sep
	sl, ok := b.fsys.(billy.Symlink)
	if !ok {
		p := filepath.Join(root, name)
		_, err := b.fsys.Stat(p)
		return p, unwrapPathError(err)
	}
	resolved := root
	rest := filepath.Clean(name)
	links := 0
	for rest != "" {
		elem, remaining, _ := strings.Cut(strings.TrimPrefix(rest, sep), sep)
		rest = remaining
		switch elem {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}
		p := filepath.Join(resolved, elem)
		fi, err := sl.Lstat(p)
		if err != nil {
			return "", unwrapPathError(err)
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			resolved = p
			continue
		}
		links++
		if links > maxSymlinks {
			return "", errTooManyLinks
		}
		target, err := sl.Readlink(p)
		if err != nil {
			return "", unwrapPathError(err)
		}
		if filepath.IsAbs(target) {
			resolved = root
		}
		if rest != "" {
			target = target + sep + rest
		}
		rest = target
	}
	// realpath requires the final target to exist.
	if _, err := b.fsys.Stat(resolved); err != nil {
		return "", unwrapPathError(err)
	}
	return resolved, nil
}

func unwrapPathError(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Err
	}
	return err
}
