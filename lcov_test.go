// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package drcov2lcov

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteLCOV(t *testing.T) {
	cov := NewCoverage()
	cov.MarkExecuted("src/b.c", 2)
	cov.AddLine("src/b.c", 1)
	cov.AddLine("src/b.c", 4)
	cov.MarkExecuted("src/a.c", 10)
	// Known lines only, nothing executed; must not be emitted.
	cov.AddLine("src/untouched.c", 1)

	var buf strings.Builder
	if err := WriteLCOV(&buf, cov); err != nil {
		t.Fatalf("WriteLCOV() failed: %v", err)
	}
	want := strings.Join([]string{
		"SF:src/a.c",
		"DA:10,1",
		"end_of_record",
		"SF:src/b.c",
		"DA:1,0",
		"DA:2,1",
		"DA:4,0",
		"end_of_record",
		"",
	}, "\n")
	if d := cmp.Diff(want, buf.String()); d != "" {
		t.Errorf("lcov output mismatch (-want +got):\n%s", d)
	}
}

func TestWriteLCOVEmpty(t *testing.T) {
	var buf strings.Builder
	if err := WriteLCOV(&buf, NewCoverage()); err != nil {
		t.Fatalf("WriteLCOV() failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty table produced output: %q", buf.String())
	}
}
