// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package depfs_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/depscanfs/billyfs"
	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/tracefs"
)

func setupFS(tb testing.TB, files ...string) (billy.Filesystem, *tracefs.FS) {
	tb.Helper()
	mfs := memfs.New()
	for _, fname := range files {
		if err := util.WriteFile(mfs, fname, nil, 0644); err != nil {
			tb.Fatal(err)
		}
	}
	return mfs, tracefs.New(tb.Name(), billyfs.New(mfs))
}

var negativeOpt = depfs.Option{CacheNegativeStats: true}

func TestCacheStatusFailures(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t)
	cache := depfs.NewSharedCache(0)
	wfs := depfs.NewWorkerFS(tfs, cache, negativeOpt)
	wfs2 := depfs.NewWorkerFS(tfs, cache, negativeOpt)

	for _, step := range []struct {
		wfs  *depfs.WorkerFS
		name string
		want int64
	}{
		{wfs, "/foo.c", 1},
		{wfs, "/foo.c", 1},
		{wfs, "/bar.c", 2},
		{wfs2, "/foo.c", 2},
	} {
		_, err := step.wfs.Status(ctx, step.name)
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Status(%q)=_, %v; want %v", step.name, err, fs.ErrNotExist)
		}
		if got := tfs.NumStatusCalls(); got != step.want {
			t.Errorf("after Status(%q): NumStatusCalls=%d; want %d", step.name, got, step.want)
		}
	}
}

func TestCacheStatusHits(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/foo.c", "/bar.c")
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), negativeOpt)

	for _, name := range []string{"/foo.c", "/foo.c", "/bar.c"} {
		st, err := wfs.Status(ctx, name)
		if err != nil {
			t.Fatalf("Status(%q)=_, %v; want nil err", name, err)
		}
		if st.IsDir() {
			t.Errorf("Status(%q).IsDir()=true; want false", name)
		}
	}
	if got := tfs.NumStatusCalls(); got != 2 {
		t.Errorf("NumStatusCalls=%d; want 2", got)
	}
}

func TestCacheGetRealPath(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/foo", "/bar")
	cache := depfs.NewSharedCache(0)
	wfs := depfs.NewWorkerFS(tfs, cache, negativeOpt)
	wfs2 := depfs.NewWorkerFS(tfs, cache, negativeOpt)

	for _, step := range []struct {
		wfs  *depfs.WorkerFS
		name string
		want int64
	}{
		{wfs, "/foo", 1},
		{wfs, "/foo", 1},
		{wfs, "/bar", 2},
		{wfs2, "/foo", 2},
	} {
		p, err := step.wfs.RealPath(ctx, step.name)
		if err != nil || p != step.name {
			t.Errorf("RealPath(%q)=%q, %v; want %q, nil", step.name, p, err, step.name)
		}
		if got := tfs.NumRealPathCalls(); got != step.want {
			t.Errorf("after RealPath(%q): NumRealPathCalls=%d; want %d", step.name, got, step.want)
		}
	}
	if got := tfs.NumStatusCalls(); got != 0 {
		t.Errorf("NumStatusCalls=%d; want 0", got)
	}
}

type entrySnapshot struct {
	Exists      bool
	StatusKind  depfs.ErrorKind
	HasStatus   bool
	Size        int64
	Name        string
	Mode        fs.FileMode
	RealPath    string
	RealKind    depfs.ErrorKind
	HasRealPath bool
}

func snapshot(c *depfs.SharedCache, name string) (entrySnapshot, bool) {
	e, ok := c.Lookup(name)
	if !ok {
		return entrySnapshot{}, false
	}
	var s entrySnapshot
	if o := e.StatusOutcome(); o != nil {
		s.HasStatus = true
		s.Exists = !o.Failed()
		s.StatusKind = o.Kind()
		s.Size = o.Status.Size()
		s.Name = o.Status.Name()
		s.Mode = o.Status.Mode()
	}
	if o := e.RealPathOutcome(); o != nil {
		s.HasRealPath = true
		s.RealPath = o.Path
		s.RealKind = o.Kind()
	}
	return s, true
}

func TestRealPathAndStatusOrder(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/foo.c", "/bar.c")

	statusFirst := depfs.NewSharedCache(0)
	realPathFirst := depfs.NewSharedCache(0)
	wfs1 := depfs.NewWorkerFS(tfs, statusFirst, negativeOpt)
	wfs2 := depfs.NewWorkerFS(tfs, realPathFirst, negativeOpt)

	names := []string{
		// success.
		"/foo.c", "/bar.c",
		// failure, cached.
		"/foo.m", "/bar.m",
		// failure, not cached.
		"/foo", "/bar",
	}
	for _, name := range names {
		wfs1.Status(ctx, name)
		wfs1.RealPath(ctx, name)

		wfs2.RealPath(ctx, name)
		wfs2.Status(ctx, name)
	}

	for _, name := range names {
		s1, ok1 := snapshot(statusFirst, name)
		s2, ok2 := snapshot(realPathFirst, name)
		if ok1 != ok2 {
			t.Errorf("%s: cached status-first=%t realpath-first=%t", name, ok1, ok2)
			continue
		}
		if diff := cmp.Diff(s1, s2); diff != "" {
			t.Errorf("%s: entry diff -status-first +realpath-first:\n%s", name, diff)
		}
	}

	for name, want := range map[string]entrySnapshot{
		"/foo.c": {Exists: true, HasStatus: true, Name: "foo.c", RealPath: "/foo.c", HasRealPath: true},
		"/foo.m": {StatusKind: depfs.NotFound, HasStatus: true, RealKind: depfs.NotFound, HasRealPath: true},
	} {
		got, ok := snapshot(statusFirst, name)
		if !ok {
			t.Errorf("%s: not cached", name)
			continue
		}
		if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(entrySnapshot{}, "Mode")); diff != "" {
			t.Errorf("%s: entry diff -want +got:\n%s", name, diff)
		}
	}
	for _, name := range []string{"/foo", "/bar"} {
		if _, ok := statusFirst.Lookup(name); ok {
			t.Errorf("%s: cached; want not cached", name)
		}
	}
}

func TestCacheStatOnExists(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/foo", "/bar")
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), negativeOpt)

	wfs.Status(ctx, "/foo")
	wfs.Status(ctx, "/foo")
	wfs.Status(ctx, "/bar")
	if got := tfs.NumStatusCalls(); got != 2 {
		t.Errorf("NumStatusCalls=%d; want 2", got)
	}

	if !wfs.Exists(ctx, "/foo") {
		t.Errorf("Exists(/foo)=false; want true")
	}
	if !wfs.Exists(ctx, "/bar") {
		t.Errorf("Exists(/bar)=false; want true")
	}
	if got := tfs.NumStatusCalls(); got != 2 {
		t.Errorf("NumStatusCalls=%d; want 2", got)
	}
	if got := tfs.NumExistsCalls(); got != 0 {
		t.Errorf("NumExistsCalls=%d; want 0", got)
	}
}

func TestCacheStatFailures(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/dir/vector", "/cache/a.pcm")
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), negativeOpt)

	wfs.Status(ctx, "/dir")
	wfs.Status(ctx, "/dir")
	if got := tfs.NumStatusCalls(); got != 1 {
		t.Errorf("NumStatusCalls=%d; want 1", got)
	}

	wfs.Status(ctx, "/dir/vector")
	wfs.Status(ctx, "/dir/vector")
	if got := tfs.NumStatusCalls(); got != 2 {
		t.Errorf("NumStatusCalls=%d; want 2", got)
	}

	wfs.SetBypassedPathPrefix("/cache")
	wfs.Exists(ctx, "/cache/a.pcm")
	if got := tfs.NumStatusCalls(); got != 3 {
		t.Errorf("NumStatusCalls=%d; want 3", got)
	}
	wfs.Exists(ctx, "/cache/a.pcm")
	if got := tfs.NumStatusCalls(); got != 4 {
		t.Errorf("NumStatusCalls=%d; want 4", got)
	}

	wfs.ResetBypassedPathPrefix()
	wfs.Exists(ctx, "/cache/a.pcm")
	wfs.Exists(ctx, "/cache/a.pcm")
	if got := tfs.NumStatusCalls(); got != 5 {
		t.Errorf("NumStatusCalls=%d; want 5", got)
	}
}

func TestBypassRealPath(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/cache/a.pcm")
	cache := depfs.NewSharedCache(0)
	wfs := depfs.NewWorkerFS(tfs, cache, negativeOpt)

	wfs.SetBypassedPathPrefix("/cache")
	if got := wfs.BypassedPathPrefix(); got != "/cache" {
		t.Errorf("BypassedPathPrefix()=%q; want /cache", got)
	}
	for i := 0; i < 3; i++ {
		if p, err := wfs.RealPath(ctx, "/cache/a.pcm"); err != nil || p != "/cache/a.pcm" {
			t.Errorf("RealPath=%q, %v; want /cache/a.pcm, nil", p, err)
		}
		wfs.RealPath(ctx, "/cache/b.pcm")
	}
	if got := tfs.NumRealPathCalls(); got != 6 {
		t.Errorf("NumRealPathCalls=%d; want 6", got)
	}
	if n := cache.Len(); n != 0 {
		t.Errorf("cache.Len()=%d; want 0", n)
	}
	if got := wfs.Stats().Bypassed; got != 6 {
		t.Errorf("Stats().Bypassed=%d; want 6", got)
	}
}

func TestNegativeCachingDisabled(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t)
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), depfs.Option{})

	for i := 0; i < 3; i++ {
		if wfs.Exists(ctx, "/x.c") {
			t.Errorf("Exists(/x.c)=true; want false")
		}
		if _, err := wfs.RealPath(ctx, "/x.c"); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("RealPath(/x.c)=_, %v; want %v", err, fs.ErrNotExist)
		}
	}
	if got := tfs.NumStatusCalls(); got != 3 {
		t.Errorf("NumStatusCalls=%d; want 3", got)
	}
	if got := tfs.NumRealPathCalls(); got != 3 {
		t.Errorf("NumRealPathCalls=%d; want 3", got)
	}
}

func TestExtensionlessFailuresNotCached(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t)
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), negativeOpt)

	for i := 0; i < 3; i++ {
		wfs.Status(ctx, "/x.c")
		wfs.Status(ctx, "/x")
		wfs.RealPath(ctx, "/x.c")
		wfs.RealPath(ctx, "/x")
	}
	if got := tfs.NumStatusCalls(); got != 1+3 {
		t.Errorf("NumStatusCalls=%d; want %d", got, 1+3)
	}
	if got := tfs.NumRealPathCalls(); got != 1+3 {
		t.Errorf("NumRealPathCalls=%d; want %d", got, 1+3)
	}
	want := depfs.Stats{
		LocalHits:     4,
		StatCalls:     4,
		RealPathCalls: 4,
		Uncached:      6,
	}
	if diff := cmp.Diff(want, wfs.Stats()); diff != "" {
		t.Errorf("Stats diff -want +got:\n%s", diff)
	}
}

func TestLocalCacheSeesOtherWorkerUpdates(t *testing.T) {
	ctx := context.Background()
	_, tfs := setupFS(t, "/include/foo.h")
	cache := depfs.NewSharedCache(0)
	wfsA := depfs.NewWorkerFS(tfs, cache, negativeOpt)
	wfsB := depfs.NewWorkerFS(tfs, cache, negativeOpt)

	if !wfsA.Exists(ctx, "/include/foo.h") {
		t.Fatalf("Exists(/include/foo.h)=false; want true")
	}
	if _, err := wfsB.RealPath(ctx, "/include/foo.h"); err != nil {
		t.Fatalf("RealPath(/include/foo.h)=_, %v; want nil err", err)
	}
	// A's local cache refers the shared entry, so the real path
	// computed by B is a local hit for A.
	p, err := wfsA.RealPath(ctx, "/include/foo.h")
	if err != nil || p != "/include/foo.h" {
		t.Errorf("RealPath(/include/foo.h)=%q, %v; want /include/foo.h, nil", p, err)
	}
	if got := tfs.NumRealPathCalls(); got != 1 {
		t.Errorf("NumRealPathCalls=%d; want 1", got)
	}
	if got := wfsA.Stats().LocalHits; got != 1 {
		t.Errorf("A LocalHits=%d; want 1", got)
	}
	if got := wfsB.Stats().StatCalls; got != 0 {
		t.Errorf("B StatCalls=%d; want 0", got)
	}
	// B's local entry already carries the status computed by A.
	wfsB.Status(ctx, "/include/foo.h")
	if got := tfs.NumStatusCalls(); got != 1 {
		t.Errorf("NumStatusCalls=%d; want 1", got)
	}
	if got := wfsB.Stats().LocalHits; got != 1 {
		t.Errorf("B LocalHits=%d; want 1", got)
	}
}

func TestStaleNegativeEntry(t *testing.T) {
	ctx := context.Background()
	mfs, tfs := setupFS(t)
	wfs := depfs.NewWorkerFS(tfs, depfs.NewSharedCache(0), negativeOpt)

	if wfs.Exists(ctx, "/path1.suffix") {
		t.Fatalf("Exists(/path1.suffix)=true; want false")
	}
	if err := util.WriteFile(mfs, "/path1.suffix", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if wfs.Exists(ctx, "/path1.suffix") {
		t.Errorf("Exists(/path1.suffix)=true after create; want cached false")
	}
}

func TestConcurrentWorkers(t *testing.T) {
	ctx := context.Background()
	var files []string
	for i := 0; i < 50; i++ {
		files = append(files, fmt.Sprintf("/usr/include/h%d.h", i))
	}
	_, tfs := setupFS(t, files...)
	cache := depfs.NewSharedCache(8)

	var names []string
	exists := make(map[string]bool)
	for _, dir := range []string{"/src", "/out/gen", "/usr/include"} {
		for i := 0; i < 60; i++ {
			name := fmt.Sprintf("%s/h%d.h", dir, i)
			names = append(names, name)
			exists[name] = dir == "/usr/include" && i < 50
		}
	}

	const workers = 16
	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		wfs := depfs.NewWorkerFS(tfs, cache, negativeOpt)
		eg.Go(func() error {
			for round := 0; round < 3; round++ {
				for i := range names {
					name := names[(i+w*7)%len(names)]
					want := exists[name]
					if got := wfs.Exists(ctx, name); got != want {
						return fmt.Errorf("worker %d: Exists(%q)=%t; want %t", w, name, got, want)
					}
					if _, err := wfs.RealPath(ctx, name); (err == nil) != want {
						return fmt.Errorf("worker %d: RealPath(%q) err=%v; want exists=%t", w, name, err, want)
					}
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if got, want := tfs.NumStatusCalls(), int64(len(names)); got != want {
		t.Errorf("NumStatusCalls=%d; want %d", got, want)
	}
	if got, want := tfs.NumRealPathCalls(), int64(len(names)); got != want {
		t.Errorf("NumRealPathCalls=%d; want %d", got, want)
	}
	if got, want := cache.Len(), len(names); got != want {
		t.Errorf("cache.Len()=%d; want %d", got, want)
	}
}

// ctxFS fails calls whose context is done.
type ctxFS struct {
	depfs.FS
}

func (c ctxFS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return c.FS.Stat(ctx, name)
}

func (c ctxFS) RealPath(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &fs.PathError{Op: "realpath", Path: name, Err: err}
	}
	return c.FS.RealPath(ctx, name)
}

func TestAbortedOutcomeNotCached(t *testing.T) {
	for _, tc := range []struct {
		desc string
		ctx  func() (context.Context, context.CancelFunc)
		want error
	}{
		{
			desc: "canceled",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			want: context.Canceled,
		},
		{
			desc: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithDeadline(context.Background(), time.Unix(0, 0))
			},
			want: context.DeadlineExceeded,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			ctx := context.Background()
			mfs, _ := setupFS(t, "/foo.h")
			tfs := tracefs.New(t.Name(), ctxFS{billyfs.New(mfs)})
			cache := depfs.NewSharedCache(0)
			wfsA := depfs.NewWorkerFS(tfs, cache, negativeOpt)
			wfsB := depfs.NewWorkerFS(tfs, cache, negativeOpt)

			actx, cancel := tc.ctx()
			defer cancel()
			if _, err := wfsA.Status(actx, "/foo.h"); !errors.Is(err, tc.want) {
				t.Errorf("A Status(/foo.h)=_, %v; want %v", err, tc.want)
			}
			if _, err := wfsA.RealPath(actx, "/foo.h"); !errors.Is(err, tc.want) {
				t.Errorf("A RealPath(/foo.h)=_, %v; want %v", err, tc.want)
			}
			if n := cache.Len(); n != 0 {
				t.Errorf("cache.Len()=%d; want 0", n)
			}

			if !wfsB.Exists(ctx, "/foo.h") {
				t.Errorf("B Exists(/foo.h)=false; want true")
			}
			if p, err := wfsB.RealPath(ctx, "/foo.h"); err != nil || p != "/foo.h" {
				t.Errorf("B RealPath(/foo.h)=%q, %v; want /foo.h, nil", p, err)
			}
			// A's local cache holds nothing from the aborted calls.
			if !wfsA.Exists(ctx, "/foo.h") {
				t.Errorf("A Exists(/foo.h)=false; want true")
			}
			if got := tfs.NumStatusCalls(); got != 2 {
				t.Errorf("NumStatusCalls=%d; want 2", got)
			}
			if got := tfs.NumRealPathCalls(); got != 2 {
				t.Errorf("NumRealPathCalls=%d; want 2", got)
			}
			if got := wfsA.Stats().Uncached; got != 2 {
				t.Errorf("A Uncached=%d; want 2", got)
			}
		})
	}
}

// stallFS blocks the first Stat after it has been answered by the
// inner filesystem, until release is closed.
type stallFS struct {
	depfs.FS
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newStallFS(fsys depfs.FS) *stallFS {
	return &stallFS{
		FS:      fsys,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *stallFS) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	fi, err := s.FS.Stat(ctx, name)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	if cerr := ctx.Err(); cerr != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: cerr}
	}
	return fi, err
}

// runStalled starts a Status of name in worker A, and while A's call
// of the underlying filesystem is blocked, runs Exists of name in
// worker B. between runs after A entered the call and before B starts.
func runStalled(t *testing.T, sfs *stallFS, actx context.Context, name string, between func()) (aerr error, bExists bool) {
	t.Helper()
	cache := depfs.NewSharedCache(0)
	wfsA := depfs.NewWorkerFS(sfs, cache, negativeOpt)
	wfsB := depfs.NewWorkerFS(sfs, cache, negativeOpt)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, aerr = wfsA.Status(actx, name)
	}()
	<-sfs.entered
	between()
	go func() {
		defer wg.Done()
		bExists = wfsB.Exists(context.Background(), name)
	}()
	// give B time to wait on A's call.
	time.Sleep(20 * time.Millisecond)
	close(sfs.release)
	wg.Wait()
	return aerr, bExists
}

func TestConcurrentAbortedStatus(t *testing.T) {
	mfs, _ := setupFS(t, "/foo.h")
	sfs := newStallFS(billyfs.New(mfs))
	actx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aerr, bExists := runStalled(t, sfs, actx, "/foo.h", cancel)
	if !errors.Is(aerr, context.Canceled) {
		t.Errorf("A Status(/foo.h)=_, %v; want %v", aerr, context.Canceled)
	}
	if !bExists {
		t.Errorf("B Exists(/foo.h)=false; want true")
	}
}

func TestConcurrentUncachedStatus(t *testing.T) {
	mfs, _ := setupFS(t)
	sfs := newStallFS(billyfs.New(mfs))

	// A sees /x missing, which is not cached since /x has no
	// extension. B asks after /x was created, so it must not take
	// A's answer.
	aerr, bExists := runStalled(t, sfs, context.Background(), "/x", func() {
		if err := util.WriteFile(mfs, "/x", nil, 0644); err != nil {
			t.Error(err)
		}
	})
	if !errors.Is(aerr, fs.ErrNotExist) {
		t.Errorf("A Status(/x)=_, %v; want %v", aerr, fs.ErrNotExist)
	}
	if !bExists {
		t.Errorf("B Exists(/x)=false; want true")
	}
}
