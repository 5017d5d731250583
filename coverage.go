// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package drcov2lcov converts drcov coverage logs into lcov line-coverage
// reports. It ties the log parser, the debug-info resolver and the filters
// together into a parallel conversion pipeline.
package drcov2lcov

import (
	"sort"
)

// Coverage is a per-file, per-line execution table. Lines are boolean
// hit/not-hit; merging is commutative and idempotent.
type Coverage struct {
	files map[string]map[int]bool
}

func NewCoverage() *Coverage {
	return &Coverage{files: make(map[string]map[int]bool)}
}

func (c *Coverage) fileLines(file string) map[int]bool {
	lines, ok := c.files[file]
	if !ok {
		lines = make(map[int]bool)
		c.files[file] = lines
	}
	return lines
}

// MarkExecuted records that the line ran.
func (c *Coverage) MarkExecuted(file string, line int) {
	c.fileLines(file)[line] = true
}

// AddLine records a known, instrumentable line without marking it executed.
// An already executed line stays executed.
func (c *Coverage) AddLine(file string, line int) {
	lines := c.fileLines(file)
	if !lines[line] {
		lines[line] = false
	}
}

// Merge folds other into c with OR semantics.
func (c *Coverage) Merge(other *Coverage) {
	for file, lines := range other.files {
		dst := c.fileLines(file)
		for line, executed := range lines {
			if executed {
				dst[line] = true
			} else if _, ok := dst[line]; !ok {
				dst[line] = false
			}
		}
	}
}

// Files returns every file in the table, sorted.
func (c *Coverage) Files() []string {
	out := make([]string, 0, len(c.files))
	for file := range c.files {
		out = append(out, file)
	}
	sort.Strings(out)
	return out
}

// Lines returns the file's line numbers in ascending order along with a
// lookup for their executed state.
func (c *Coverage) Lines(file string) ([]int, map[int]bool) {
	lines := c.files[file]
	nums := make([]int, 0, len(lines))
	for line := range lines {
		nums = append(nums, line)
	}
	sort.Ints(nums)
	return nums, lines
}

// Executed returns every executed (file, line) pair as a set. This is the
// coverage identity used by reduce-set selection.
func (c *Coverage) Executed() map[FileLine]struct{} {
	out := make(map[FileLine]struct{})
	for file, lines := range c.files {
		for line, executed := range lines {
			if executed {
				out[FileLine{file, line}] = struct{}{}
			}
		}
	}
	return out
}

// FileLine identifies a single source line.
type FileLine struct {
	File string
	Line int
}
