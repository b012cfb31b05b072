// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package service

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/depscanfs/depfs"
)

// DumpEntry is a cache entry in a cache dump.
type DumpEntry struct {
	Path string `json:"path"`

	// Status is set when status outcome is cached.
	Status *DumpStatus `json:"status,omitempty"`

	// RealPath is set when real path outcome is cached.
	RealPath *DumpRealPath `json:"realpath,omitempty"`
}

// DumpStatus is a cached status outcome.
type DumpStatus struct {
	Error   string      `json:"error,omitempty"`
	Size    int64       `json:"size,omitempty"`
	Mode    fs.FileMode `json:"mode,omitempty"`
	ModTime time.Time   `json:"mtime,omitzero"`
}

// DumpRealPath is a cached real path outcome.
type DumpRealPath struct {
	Error string `json:"error,omitempty"`
	Path  string `json:"path,omitempty"`
}

func dumpEntry(e *depfs.Entry) DumpEntry {
	d := DumpEntry{Path: e.Path()}
	if o := e.StatusOutcome(); o != nil {
		if o.Failed() {
			d.Status = &DumpStatus{Error: o.Kind().String()}
		} else {
			d.Status = &DumpStatus{
				Size:    o.Status.Size(),
				Mode:    o.Status.Mode(),
				ModTime: o.Status.ModTime(),
			}
		}
	}
	if o := e.RealPathOutcome(); o != nil {
		if o.Err != nil {
			d.RealPath = &DumpRealPath{Error: o.Kind().String()}
		} else {
			d.RealPath = &DumpRealPath{Path: o.Path}
		}
	}
	return d
}

// WriteCacheDump writes the shared cache entries to w as json lines.
// It is for debugging and the dump is never loaded back.
func (s *Service) WriteCacheDump(w io.Writer) error {
	enc := json.NewEncoder(w)
	var err error
	s.shared.Range(func(e *depfs.Entry) bool {
		err = enc.Encode(dumpEntry(e))
		return err == nil
	})
	return err
}

// SaveCacheDump writes the cache dump in fname.
// If fname ends with ".zst", it is compressed by zstd.
func (s *Service) SaveCacheDump(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(fname, ".zst") {
		err = s.WriteCacheDump(f)
		return errors.Join(err, f.Close())
	}
	w, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return err
	}
	err = s.WriteCacheDump(w)
	if err != nil {
		w.Close()
		f.Close()
		return err
	}
	err = w.Close()
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
