// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debuginfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookup(t *testing.T) {
	module := &ResolvedModule{
		Path: "libtest.so",
		entries: []lineEntry{
			{start: 0x10, end: 0x18, file: "a.c", line: 3},
			{start: 0x18, end: 0x20, file: "a.c", line: 4},
			{start: 0x30, end: 0x38, file: "b.c", line: 7},
		},
	}
	module.buildIndex()

	type hit struct {
		File string
		Line int
	}
	tests := []struct {
		name   string
		offset uint64
		size   uint16
		want   []hit
	}{
		{
			name:   "exact range",
			offset: 0x10,
			size:   8,
			want:   []hit{{"a.c", 3}},
		},
		{
			name:   "spans two ranges",
			offset: 0x14,
			size:   8,
			want:   []hit{{"a.c", 3}, {"a.c", 4}},
		},
		{
			name:   "block over gap touches both sides",
			offset: 0x18,
			size:   0x20,
			want:   []hit{{"a.c", 4}, {"b.c", 7}},
		},
		{
			name:   "gap only",
			offset: 0x20,
			size:   8,
			want:   nil,
		},
		{
			name:   "before table",
			offset: 0,
			size:   4,
			want:   nil,
		},
		{
			name:   "past table",
			offset: 0x100,
			size:   16,
			want:   nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []hit
			module.Lookup(test.offset, test.size, func(file string, line int) {
				got = append(got, hit{file, line})
			})
			if d := cmp.Diff(test.want, got); d != "" {
				t.Errorf("Lookup(%#x, %d) mismatch (-want +got):\n%s", test.offset, test.size, d)
			}
		})
	}
}

// Inlined and generated code can give a compile unit ranges that overlap
// another unit's, so a wide range may sort before narrower ones that end
// earlier. Lookups past those narrow ends must still see the wide range.
func TestLookupOverlappingRanges(t *testing.T) {
	module := &ResolvedModule{
		Path: "libtest.so",
		entries: []lineEntry{
			{start: 0x10, end: 0x40, file: "a.c", line: 1},
			{start: 0x20, end: 0x28, file: "a.c", line: 2},
			{start: 0x30, end: 0x38, file: "a.c", line: 3},
		},
	}
	module.buildIndex()

	var got []int
	module.Lookup(0x2c, 4, func(file string, line int) {
		got = append(got, line)
	})
	if d := cmp.Diff([]int{1}, got); d != "" {
		t.Errorf("Lookup(0x2c, 4) mismatch (-want +got):\n%s", d)
	}

	got = nil
	module.Lookup(0x24, 0x14, func(file string, line int) {
		got = append(got, line)
	})
	if d := cmp.Diff([]int{1, 2, 3}, got); d != "" {
		t.Errorf("Lookup(0x24, 0x14) mismatch (-want +got):\n%s", d)
	}
}

func TestLinesOf(t *testing.T) {
	module := &ResolvedModule{
		lines: map[string][]int{"a.c": {1, 2, 5}},
	}
	if d := cmp.Diff([]int{1, 2, 5}, module.LinesOf("a.c")); d != "" {
		t.Errorf("LinesOf(a.c) mismatch (-want +got):\n%s", d)
	}
	if got := module.LinesOf("missing.c"); got != nil {
		t.Errorf("LinesOf(missing.c) = %v, want nil", got)
	}
}

func TestDedupInts(t *testing.T) {
	got := dedupInts([]int{1, 1, 2, 3, 3, 3, 9})
	if d := cmp.Diff([]int{1, 2, 3, 9}, got); d != "" {
		t.Errorf("dedupInts mismatch (-want +got):\n%s", d)
	}
}

func TestDebugLinkCandidates(t *testing.T) {
	buildID := []byte{0xab, 0xcd, 0xef}
	got := debugLinkCandidates("/opt/app/libfoo.so", "libfoo.so.debug", [][]byte{buildID})
	want := []string{
		"/usr/lib/debug/.build-id/ab/cdef.debug",
		"/opt/app/libfoo.so.debug",
		"/opt/app/.debug/libfoo.so.debug",
		"/usr/lib/debug/opt/app/libfoo.so.debug",
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("candidate order mismatch (-want +got):\n%s", d)
	}
}

func TestDebugLinkCandidatesAbsolute(t *testing.T) {
	got := debugLinkCandidates("/opt/app/libfoo.so", "/dbg/libfoo.debug", nil)
	if len(got) == 0 || got[0] != "/dbg/libfoo.debug" {
		t.Errorf("absolute link not tried first: %v", got)
	}
}

func TestDwarfError(t *testing.T) {
	err := dwarfError("libfoo.so", fmt.Errorf("line table: unsupported version 6"))
	if !errors.Is(err, ErrUnsupportedDWARFVersion) {
		t.Errorf("dwarfError() = %v, want ErrUnsupportedDWARFVersion", err)
	}
	err = dwarfError("libfoo.so", fmt.Errorf("truncated abbrev table"))
	if errors.Is(err, ErrUnsupportedDWARFVersion) {
		t.Errorf("dwarfError() mapped an unrelated failure to ErrUnsupportedDWARFVersion")
	}
}

func TestResolveMissingModule(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "nope.so"))
	if err == nil {
		t.Fatalf("Resolve() succeeded on a missing module")
	}
}

func TestResolveNotABinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "module.so")
	if err := os.WriteFile(path, []byte("plain text, not a binary"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver()
	ctx := context.Background()
	_, err := r.Resolve(ctx, path)
	if !errors.Is(err, ErrNoDebugInfo) {
		t.Fatalf("Resolve() error = %v, want ErrNoDebugInfo", err)
	}
	// The failure is cached; a second resolve must agree.
	_, again := r.Resolve(ctx, path)
	if !errors.Is(again, ErrNoDebugInfo) {
		t.Errorf("second Resolve() error = %v, want ErrNoDebugInfo", again)
	}
}
