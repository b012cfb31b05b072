// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package probe is probe subcommand to run header search probes
// through the scanning filesystem cache.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/depscanfs/depfs"
	"go.chromium.org/infra/build/depscanfs/osfs"
	"go.chromium.org/infra/build/depscanfs/runtimex"
	"go.chromium.org/infra/build/depscanfs/service"
)

const usage = `run header search probes

 $ depscanfs probe -req '<json probe request>'

<json probe request> is
  {"dirs": ["<search dir>", ...], "names": ["<header>", ...], "units": N}

each of N translation units looks up every header name
in the search dirs in order, as the preprocessor does for
#include, using a worker filesystem of the scanning service.
`

// Request is a probe request.
type Request struct {
	// Dirs are header search dirs in search order.
	Dirs []string `json:"dirs"`
	// Names are header names to look up.
	Names []string `json:"names"`
	// Units is the number of translation units to scan.
	Units int `json:"units"`
}

// Cmd returns the Command for the `probe` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "probe -req <json>",
		ShortDesc: "run header search probes",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	reqString    string
	jobs         int
	bypassPrefix string
	diagnose     bool
	dumpCache    string

	cfg   service.Config
	fsopt osfs.Option
}

func (c *run) init() {
	c.Flags.StringVar(&c.reqString, "req", "", "json format of probe request")
	c.Flags.IntVar(&c.jobs, "j", runtimex.NumCPU(), "number of workers")
	c.Flags.StringVar(&c.bypassPrefix, "bypass_prefix", "", "path prefix not to cache, e.g. module cache dir")
	c.Flags.BoolVar(&c.diagnose, "diagnose", false, "check stale negative stat cache entries after probes")
	c.Flags.StringVar(&c.dumpCache, "dump_cache", "", "filename to dump shared cache entries as json lines after probes. compressed by zstd if it ends with .zst")
	c.cfg = service.DefaultConfig()
	c.cfg.RegisterFlags(&c.Flags)
	c.fsopt.RegisterFlags(&c.Flags)
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, os.Stdout)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// Result is a lookup result of a header name.
type Result struct {
	Name     string
	Path     string
	RealPath string
	Err      error
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s\t%v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s\t%s\t%s", r.Name, r.Path, r.RealPath)
}

func (c *run) run(ctx context.Context, w io.Writer) error {
	if c.reqString == "" {
		return fmt.Errorf("missing req: %w", flag.ErrHelp)
	}
	var req Request
	err := json.Unmarshal([]byte(c.reqString), &req)
	if err != nil {
		return fmt.Errorf("bad req: %w", err)
	}
	if len(req.Dirs) == 0 || len(req.Names) == 0 {
		return fmt.Errorf("no dirs or names in req: %w", flag.ErrHelp)
	}
	if req.Units <= 0 {
		req.Units = 1
	}
	jobs := runtimex.Parallelism(c.jobs)
	log.Infof("request=%#v jobs=%d", req, jobs)

	svc := service.New(c.cfg)
	ofs := osfs.New("probe", c.fsopt)

	workers := make([]*depfs.WorkerFS, jobs)
	pool := make(chan *depfs.WorkerFS, jobs)
	for i := range workers {
		workers[i] = svc.NewWorkerFS(ofs)
		if c.bypassPrefix != "" {
			workers[i].SetBypassedPathPrefix(c.bypassPrefix)
		}
		pool <- workers[i]
	}

	started := time.Now()
	results := make([][]Result, req.Units)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)
	for u := range results {
		eg.Go(func() error {
			wfs := <-pool
			defer func() { pool <- wfs }()
			var err error
			results[u], err = scanUnit(gctx, wfs, req)
			if err != nil {
				return fmt.Errorf("unit %d: %w", u, err)
			}
			return nil
		})
	}
	err = eg.Wait()
	if err != nil {
		return err
	}
	for u := 1; u < len(results); u++ {
		for i := range results[u] {
			if results[u][i].Path != results[0][i].Path || results[u][i].RealPath != results[0][i].RealPath {
				return fmt.Errorf("unit %d: inconsistent result %s; unit 0: %s", u, results[u][i], results[0][i])
			}
		}
	}
	for _, r := range results[0] {
		fmt.Fprintln(w, r)
	}

	var total depfs.Stats
	for i, wfs := range workers {
		log.Infof("worker %d: %s", i, wfs.Stats())
		total.Add(wfs.Stats())
	}
	fmt.Fprintf(w, "# %d units %d names in %s: %s\n", req.Units, len(req.Names), time.Since(started), total)
	fmt.Fprintf(w, "# cache entries=%d shards=%d\n", svc.SharedCache().Len(), svc.SharedCache().NumShards())
	fmt.Fprintf(w, "# %s: %s\n", ofs.Name(), ofs.Stats())

	if c.diagnose {
		stale := svc.InvalidNegativeStatCachedPaths(ctx, ofs)
		for _, p := range stale {
			log.Warnf("%s was cached as not existing, but exists now", p)
		}
		fmt.Fprintf(w, "# stale negative stat cache entries=%d\n", len(stale))
	}
	if c.dumpCache != "" {
		err = svc.SaveCacheDump(c.dumpCache)
		if err != nil {
			return fmt.Errorf("failed to dump cache: %w", err)
		}
		log.Infof("cache dumped in %s", c.dumpCache)
	}
	return nil
}

// scanUnit looks up all names in dirs in order for a translation unit.
func scanUnit(ctx context.Context, wfs *depfs.WorkerFS, req Request) ([]Result, error) {
	results := make([]Result, 0, len(req.Names))
	for _, name := range req.Names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := Result{
			Name: name,
			Err:  fs.ErrNotExist,
		}
		for _, dir := range req.Dirs {
			p := filepath.Join(dir, name)
			if !wfs.Exists(ctx, p) {
				continue
			}
			st, err := wfs.Status(ctx, p)
			if err != nil || st.IsDir() {
				continue
			}
			r.Path = p
			r.RealPath, r.Err = wfs.RealPath(ctx, p)
			break
		}
		results = append(results, r)
	}
	return results, nil
}
