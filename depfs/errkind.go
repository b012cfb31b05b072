// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"errors"
	"io/fs"
)

// ErrorKind classifies an underlying filesystem error.
type ErrorKind int

const (
	// NoError is the kind of a successful outcome.
	NoError ErrorKind = iota
	// NotFound means the path does not exist.
	NotFound
	// PermissionDenied means the path is not accessible.
	PermissionDenied
	// NotADirectory means a non-final path component is not a directory.
	NotADirectory
	// IsADirectory means a directory was used where a file is required.
	IsADirectory
	// IOFailure is any other underlying filesystem error.
	IOFailure
)

func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "NoError"
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case NotADirectory:
		return "NotADirectory"
	case IsADirectory:
		return "IsADirectory"
	case IOFailure:
		return "IOFailure"
	}
	return "ErrorKind(?)"
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return NoError
	case isNotDir(err):
		return NotADirectory
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case isDir(err):
		return IsADirectory
	}
	return IOFailure
}
