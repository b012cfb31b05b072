// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package depfs

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

func isNotDir(err error) bool {
	return errors.Is(err, windows.ERROR_DIRECTORY) || errors.Is(err, syscall.ENOTDIR)
}

func isDir(err error) bool {
	return errors.Is(err, syscall.EISDIR)
}
