// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package semaphore provides named counting semaphores to bound
// concurrent filesystem access.
package semaphore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	mu       sync.Mutex
	registry = map[string]*Semaphore{}
)

// Semaphore is a counting semaphore identified by name.
type Semaphore struct {
	name  string
	slots chan struct{}

	waits    atomic.Int64
	reqs     atomic.Int64
	rejected atomic.Int64
}

// New creates a semaphore with name and capacity n, and registers it
// for Lookup. A later New with the same name replaces the registration.
func New(name string, n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	s := &Semaphore{
		name:  name,
		slots: make(chan struct{}, n),
	}
	mu.Lock()
	registry[name] = s
	mu.Unlock()
	return s
}

// Lookup returns the semaphore registered for name.
func Lookup(name string) (*Semaphore, error) {
	mu.Lock()
	defer mu.Unlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("semaphore %q not found", name)
	}
	return s, nil
}

// Name returns name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Capacity returns capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	if s == nil {
		return 0
	}
	return cap(s.slots)
}

// Acquire blocks until a slot is available or ctx is done.
// The returned func releases the slot. Calling it more than once is a no-op.
func (s *Semaphore) Acquire(ctx context.Context) (func(), error) {
	s.waits.Add(1)
	defer s.waits.Add(-1)
	select {
	case s.slots <- struct{}{}:
		s.reqs.Add(1)
		return s.releaser(), nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// TryAcquire acquires a slot without blocking.
// It reports false if no slot is available.
func (s *Semaphore) TryAcquire() (func(), bool) {
	select {
	case s.slots <- struct{}{}:
		s.reqs.Add(1)
		return s.releaser(), true
	default:
		s.rejected.Add(1)
		return nil, false
	}
}

func (s *Semaphore) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-s.slots })
	}
}

// Do runs f while holding a slot.
func (s *Semaphore) Do(ctx context.Context, f func() error) error {
	release, err := s.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("semaphore %s: %w", s.name, err)
	}
	defer release()
	return f()
}

// Stats is a snapshot of semaphore usage.
type Stats struct {
	Name     string
	Capacity int
	Serving  int
	Waiting  int
	Requests int64
	Rejected int64
}

// Stats returns the current usage of the semaphore.
func (s *Semaphore) Stats() Stats {
	return Stats{
		Name:     s.name,
		Capacity: cap(s.slots),
		Serving:  len(s.slots),
		Waiting:  int(s.waits.Load()),
		Requests: s.reqs.Load(),
		Rejected: s.rejected.Load(),
	}
}
