// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"fmt"
	"io/fs"
	"time"
)

// Status is an immutable copy of file attributes.
// It implements https://pkg.go.dev/io/fs#FileInfo.
type Status struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewStatus copies the attributes of fi.
func NewStatus(fi fs.FileInfo) Status {
	return Status{
		name:    fi.Name(),
		size:    fi.Size(),
		mode:    fi.Mode(),
		modTime: fi.ModTime(),
	}
}

// Name is a base name of the file.
func (s Status) Name() string { return s.name }

// Size is a size of the file.
func (s Status) Size() int64 { return s.size }

// Mode is a file mode of the file.
func (s Status) Mode() fs.FileMode { return s.mode }

// ModTime is a modification time of the file.
func (s Status) ModTime() time.Time { return s.modTime }

// IsDir returns true if it is the directory.
func (s Status) IsDir() bool { return s.mode.IsDir() }

// Sys returns nil.
func (s Status) Sys() any { return nil }

// Equal reports whether s and t hold the same attributes.
func (s Status) Equal(t Status) bool {
	return s.name == t.name && s.size == t.size && s.mode == t.mode && s.modTime.Equal(t.modTime)
}

func (s Status) String() string {
	return fmt.Sprintf("name:%s size:%d mode:%s mtime:%s", s.name, s.size, s.mode, s.modTime)
}
