// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// OutcomeKind is whether an underlying call succeeded.
// Use outcomeKindOf to classify an error.
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota
	Failed
	// Aborted is a failure caused by the caller's context, which says
	// nothing about the path.
	Aborted
)

func outcomeKindOf(err error) OutcomeKind {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Aborted
	}
	return Failed
}

// Bypassed reports whether name is under the bypassed path prefix.
// An empty prefix bypasses nothing.
func Bypassed(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix)
}

// Cacheable reports whether an outcome of a status probe or a real path
// resolution of name may be stored in the caches.
//
// Nothing under bypassPrefix is cached, nor is an outcome aborted by
// the caller's context. A successful outcome is always cached. A failed
// outcome is cached only if cacheNegative is set and the final component
// of name has a file name extension; extensionless failures are mostly
// directory probes during header search.
func Cacheable(name string, kind OutcomeKind, bypassPrefix string, cacheNegative bool) bool {
	if Bypassed(name, bypassPrefix) {
		return false
	}
	switch kind {
	case Succeeded:
		return true
	case Aborted:
		return false
	}
	return cacheNegative && HasExtension(name)
}

// HasExtension reports whether the final component of name has a
// non-empty extension. Leading dots of the component are not extension
// separators, so ".bashrc" has no extension, and a name ending with a
// path separator names a directory and has no extension.
func HasExtension(name string) bool {
	if name == "" || os.IsPathSeparator(name[len(name)-1]) {
		return false
	}
	base := strings.TrimLeft(filepath.Base(name), ".")
	i := strings.LastIndexByte(base, '.')
	return i >= 0 && i < len(base)-1
}
