// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package service

import (
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterFlags(t *testing.T) {
	for _, tc := range []struct {
		desc string
		args []string
		want Config
	}{
		{
			desc: "default",
			want: DefaultConfig(),
		},
		{
			desc: "all",
			args: []string{
				"-mode", "preprocess",
				"-format", "p1689",
				"-optimize_args", "header-search,vfs",
				"-eager_load_pcm",
				"-trace_vfs",
				"-build_session_timestamp", "1700000000",
				"-cache_negative_stats=false",
			},
			want: Config{
				Mode:                  CanonicalPreprocessing,
				Format:                P1689,
				OptimizeArgs:          OptimizeHeaderSearch | OptimizeVFS,
				EagerLoadModules:      true,
				TraceVFS:              true,
				BuildSessionTimestamp: 1700000000,
			},
		},
		{
			desc: "optimize none",
			args: []string{"-optimize_args", "none", "-format", "experimental-full"},
			want: Config{
				Mode:               DependencyDirectivesScan,
				Format:             Full,
				OptimizeArgs:       OptimizeNone,
				CacheNegativeStats: true,
			},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := DefaultConfig()
			flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
			cfg.RegisterFlags(flagSet)
			if err := flagSet.Parse(tc.args); err != nil {
				t.Fatalf("Parse(%q)=%v; want nil", tc.args, err)
			}
			if diff := cmp.Diff(tc.want, cfg); diff != "" {
				t.Errorf("config diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestFlagErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-mode", "scan"},
		{"-format", "json"},
		{"-optimize_args", "header-search,unknown"},
	} {
		cfg := DefaultConfig()
		flagSet := flag.NewFlagSet("test", flag.ContinueOnError)
		flagSet.SetOutput(io.Discard)
		cfg.RegisterFlags(flagSet)
		if err := flagSet.Parse(args); err == nil {
			t.Errorf("Parse(%q)=nil; want error", args)
		}
	}
}

func TestOptimizeArgsString(t *testing.T) {
	for _, tc := range []struct {
		o    OptimizeArgs
		want string
	}{
		{OptimizeNone, "none"},
		{OptimizeAll, "all"},
		{OptimizeDefault, "header-search,system-warnings,vfs,diagnostic-options"},
		{OptimizeVFS | OptimizeIgnoreCWD, "vfs,ignore-cwd"},
	} {
		if got := tc.o.String(); got != tc.want {
			t.Errorf("OptimizeArgs(%d).String()=%q; want %q", uint8(tc.o), got, tc.want)
		}
		var o OptimizeArgs
		if err := o.Set(tc.want); err != nil || o != tc.o {
			t.Errorf("Set(%q)=%v; OptimizeArgs=%d; want %d", tc.want, err, uint8(o), uint8(tc.o))
		}
	}
	if !OptimizeDefault.Has(OptimizeHeaderSearch | OptimizeVFS) {
		t.Errorf("OptimizeDefault.Has(header-search,vfs)=false; want true")
	}
	if OptimizeDefault.Has(OptimizeIgnoreCWD) {
		t.Errorf("OptimizeDefault.Has(ignore-cwd)=true; want false")
	}
}

func TestModeFormatString(t *testing.T) {
	if got, want := CanonicalPreprocessing.String(), "preprocess"; got != want {
		t.Errorf("CanonicalPreprocessing.String()=%q; want %q", got, want)
	}
	if got, want := Mode(5).String(), "Mode(5)"; got != want {
		t.Errorf("Mode(5).String()=%q; want %q", got, want)
	}
	if got, want := Make.String(), "make"; got != want {
		t.Errorf("Make.String()=%q; want %q", got, want)
	}
	if got, want := Format(-1).String(), "Format(-1)"; got != want {
		t.Errorf("Format(-1).String()=%q; want %q", got, want)
	}
}
