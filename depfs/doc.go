// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package depfs provides a caching filesystem layer for dependency scanning.
//
// A dependency scanner probes the same candidate paths (system headers,
// umbrella headers, module maps) for every translation unit it scans.
// depfs memoizes the status and real path of each probed path in two tiers:
//
//   - SharedCache is a sharded, thread-safe table of *Entry shared
//     by every WorkerFS built against the same scanning service.
//   - Each WorkerFS keeps a private local table of references into
//     the SharedCache, consulted first without any synchronization.
//
// Whether a result is stored at all is decided by Cacheable:
// successful probes are always cached, failed probes are cached only
// when negative caching is enabled and the final path component has
// a file name extension, and nothing under the bypassed path prefix
// of a WorkerFS is cached.
//
// Cached entries are never evicted. Failed probes cached as negative
// entries may go stale if the file is created later; the scanning
// service can audit them after the scan.
package depfs
