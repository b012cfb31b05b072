// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package depfs

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isNotDir(err error) bool {
	return errors.Is(err, unix.ENOTDIR)
}

func isDir(err error) bool {
	return errors.Is(err, unix.EISDIR)
}
