// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !unix && !windows

package depfs

func isNotDir(err error) bool { return false }

func isDir(err error) bool { return false }
