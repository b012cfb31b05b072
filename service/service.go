// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package service provides the dependency scanning service, which owns
// the cache shared by all scanning workers.
package service

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/tracefs"
)

// Service is a dependency scanning service.
// It is safe for concurrent use. Each worker should use
// its own WorkerFS created by NewWorkerFS.
type Service struct {
	id     string
	cfg    Config
	shared *depfs.SharedCache

	workers atomic.Int32
}

// New creates a new scanning service with cfg.
func New(cfg Config) *Service {
	s := &Service{
		id:     uuid.New().String(),
		cfg:    cfg,
		shared: depfs.NewSharedCache(0),
	}
	log.Infof("scanning service %s: mode=%s format=%s optimize_args=%s cache_negative_stats=%t shards=%d", s.id, cfg.Mode, cfg.Format, cfg.OptimizeArgs, cfg.CacheNegativeStats, s.shared.NumShards())
	return s
}

// ID returns the session id of the service.
func (s *Service) ID() string {
	return s.id
}

// Config returns the configuration of the service.
func (s *Service) Config() Config {
	return s.cfg
}

// SharedCache returns the cache shared by all workers of the service.
func (s *Service) SharedCache() *depfs.SharedCache {
	return s.shared
}

// NewWorkerFS creates a worker filesystem probing fsys.
// When TraceVFS is configured, fsys is wrapped by a tracing filesystem.
func (s *Service) NewWorkerFS(fsys depfs.FS) *depfs.WorkerFS {
	n := s.workers.Add(1)
	if s.cfg.TraceVFS {
		fsys = tracefs.New(fmt.Sprintf("%s/worker-%d", s.id, n), fsys)
	}
	return depfs.NewWorkerFS(fsys, s.shared, depfs.Option{
		CacheNegativeStats: s.cfg.CacheNegativeStats,
	})
}
