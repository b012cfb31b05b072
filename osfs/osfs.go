// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package osfs provides OS filesystem probes for depfs.
package osfs

import (
	"context"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/o11y/iometrics"
	"go.chromium.org/infra/build/depscanfs/runtimex"
	"go.chromium.org/infra/build/depscanfs/sync/semaphore"
)

// StatSemaphore is a semaphore to control concurrent stat,
// to protect from thread exhaustion while many workers probe
// header search paths.
var StatSemaphore = semaphore.New("osfs-stat", runtimex.NumCPU()*2)

// OSFS provides OS filesystem probes.
// It counts metrics by iometrics.
type OSFS struct {
	*iometrics.IOMetrics

	slowOp time.Duration
}

var _ depfs.FS = (*OSFS)(nil)

// Option is an option for osfs.
type Option struct {
	// SlowOpThreshold is the duration after which a probe is logged as slow.
	// Zero disables slow op logging.
	SlowOpThreshold time.Duration
}

// RegisterFlags registers flags for the option.
func (o *Option) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.DurationVar(&o.SlowOpThreshold, "fs_slow_op_threshold", 1*time.Minute, "log filesystem probes slower than this. 0 to disable")
}

// New creates new OSFS.
func New(name string, opt Option) *OSFS {
	return &OSFS{
		IOMetrics: iometrics.New(name),
		slowOp:    opt.SlowOpThreshold,
	}
}

func (ofs *OSFS) checkSlow(name, op string, started time.Time, err error) {
	if ofs.slowOp <= 0 {
		return
	}
	dur := time.Since(started)
	if dur <= ofs.slowOp {
		return
	}
	buf := make([]byte, 4*1024)
	n := runtime.Stack(buf, false)
	log.Warnf("slow op %s %s: %s %v\n%s", op, name, dur, err, buf[:n])
}

// Stat returns a FileInfo describing the named file, following symlinks.
func (ofs *OSFS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	var fi fs.FileInfo
	started := time.Now()
	err := StatSemaphore.Do(ctx, func() error {
		var err error
		fi, err = os.Stat(name)
		return err
	})
	ofs.StatDone(err)
	ofs.checkSlow(name, "stat", started, err)
	return fi, err
}

// RealPath returns the absolute path of name with all symlinks resolved.
func (ofs *OSFS) RealPath(ctx context.Context, name string) (string, error) {
	var p string
	started := time.Now()
	err := StatSemaphore.Do(ctx, func() error {
		abs, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		p, err = filepath.EvalSymlinks(abs)
		return err
	})
	ofs.RealPathDone(err)
	ofs.checkSlow(name, "realpath", started, err)
	if err != nil {
		return "", err
	}
	return p, nil
}
