// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package service

import (
	"flag"
	"fmt"
	"strings"
)

// Mode is a scanning mode.
type Mode int

const (
	// DependencyDirectivesScan scans only the preprocessor directives
	// relevant to dependencies.
	DependencyDirectivesScan Mode = iota
	// CanonicalPreprocessing runs the full preprocessor.
	CanonicalPreprocessing
)

var modeNames = []string{
	DependencyDirectivesScan: "preprocess-dependency-directives",
	CanonicalPreprocessing:   "preprocess",
}

// String returns the flag value of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Set sets the mode from the flag value.
func (m *Mode) Set(v string) error {
	for i, name := range modeNames {
		if v == name {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q: want one of %s", v, strings.Join(modeNames, ","))
}

// Format is an output format of scanning results.
type Format int

const (
	// Make is the makefile dependency format.
	Make Format = iota
	// Full is the full dependency graph format with modules.
	Full
	// P1689 is the C++20 modules dependency format.
	P1689
)

var formatNames = []string{
	Make:  "make",
	Full:  "experimental-full",
	P1689: "p1689",
}

// String returns the flag value of the format.
func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Set sets the format from the flag value.
func (f *Format) Set(v string) error {
	for i, name := range formatNames {
		if v == name {
			*f = Format(i)
			return nil
		}
	}
	return fmt.Errorf("unknown format %q: want one of %s", v, strings.Join(formatNames, ","))
}

// OptimizeArgs is a set of command line optimizations applied
// to discovered module builds.
type OptimizeArgs uint8

const (
	OptimizeHeaderSearch OptimizeArgs = 1 << iota
	OptimizeSystemWarnings
	OptimizeVFS
	OptimizeDiagnosticOptions
	OptimizeIgnoreCWD

	OptimizeNone OptimizeArgs = 0
	OptimizeAll               = OptimizeHeaderSearch | OptimizeSystemWarnings | OptimizeVFS | OptimizeDiagnosticOptions | OptimizeIgnoreCWD
	// OptimizeDefault is used unless configured.
	OptimizeDefault = OptimizeAll &^ OptimizeIgnoreCWD
)

var optimizeNames = []struct {
	bit  OptimizeArgs
	name string
}{
	{OptimizeHeaderSearch, "header-search"},
	{OptimizeSystemWarnings, "system-warnings"},
	{OptimizeVFS, "vfs"},
	{OptimizeDiagnosticOptions, "diagnostic-options"},
	{OptimizeIgnoreCWD, "ignore-cwd"},
}

// Has reports whether all bits of o2 are set in o.
func (o OptimizeArgs) Has(o2 OptimizeArgs) bool {
	return o&o2 == o2
}

// String returns optimizations as comma separated values.
func (o OptimizeArgs) String() string {
	switch o {
	case OptimizeNone:
		return "none"
	case OptimizeAll:
		return "all"
	}
	var names []string
	for _, n := range optimizeNames {
		if o.Has(n.bit) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// Set sets optimizations from comma separated values.
// "none", "all" and "default" replace the whole set.
func (o *OptimizeArgs) Set(v string) error {
	var r OptimizeArgs
	for _, s := range strings.Split(v, ",") {
		switch s {
		case "none":
			r = OptimizeNone
			continue
		case "all":
			r = OptimizeAll
			continue
		case "default":
			r = OptimizeDefault
			continue
		}
		found := false
		for _, n := range optimizeNames {
			if s == n.name {
				r |= n.bit
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown optimize arg %q", s)
		}
	}
	*o = r
	return nil
}

// Config is a configuration of the scanning service.
type Config struct {
	Mode         Mode
	Format       Format
	OptimizeArgs OptimizeArgs

	// EagerLoadModules loads module files eagerly rather than on demand.
	EagerLoadModules bool

	// TraceVFS wraps workers' filesystems to count and log probes.
	TraceVFS bool

	// BuildSessionTimestamp is the start of the build session, in
	// seconds since the Unix epoch. Module files older than it are
	// validated against their inputs.
	BuildSessionTimestamp int64

	// CacheNegativeStats caches failed status probes of names with
	// a file name extension.
	CacheNegativeStats bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:               DependencyDirectivesScan,
		Format:             Make,
		OptimizeArgs:       OptimizeDefault,
		CacheNegativeStats: true,
	}
}

// RegisterFlags registers flags for the config.
// Fields not set by flags keep their current values as defaults.
func (c *Config) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.Var(&c.Mode, "mode", "scanning mode. preprocess-dependency-directives or preprocess")
	flagSet.Var(&c.Format, "format", "output format. make, experimental-full or p1689")
	flagSet.Var(&c.OptimizeArgs, "optimize_args", "comma separated module build optimizations. none, all, default, header-search, system-warnings, vfs, diagnostic-options or ignore-cwd")
	flagSet.BoolVar(&c.EagerLoadModules, "eager_load_pcm", c.EagerLoadModules, "load module files eagerly")
	flagSet.BoolVar(&c.TraceVFS, "trace_vfs", c.TraceVFS, "count and log filesystem probes of each worker")
	flagSet.Int64Var(&c.BuildSessionTimestamp, "build_session_timestamp", c.BuildSessionTimestamp, "build session start in seconds since the Unix epoch")
	flagSet.BoolVar(&c.CacheNegativeStats, "cache_negative_stats", c.CacheNegativeStats, "cache failed status probes of names with an extension")
}
