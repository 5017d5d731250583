// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package drcov2lcov

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func executedCov(lines ...FileLine) *Coverage {
	return covFrom(lines, nil)
}

func TestReduceSet(t *testing.T) {
	a := FileLine{"f.c", 1}
	b := FileLine{"f.c", 2}
	c := FileLine{"f.c", 3}
	d := FileLine{"g.c", 1}

	tests := []struct {
		name string
		covs []*Coverage
		want []int
	}{
		{
			name: "superset wins over two partials",
			covs: []*Coverage{
				executedCov(a, b),
				executedCov(b, c),
				executedCov(a, b, c),
			},
			want: []int{2},
		},
		{
			name: "disjoint sets all selected",
			covs: []*Coverage{
				executedCov(a),
				executedCov(b),
				executedCov(c),
			},
			want: []int{0, 1, 2},
		},
		{
			name: "tie broken by lowest index",
			covs: []*Coverage{
				executedCov(a, b),
				executedCov(a, b),
			},
			want: []int{0},
		},
		{
			name: "duplicate log never reselected",
			covs: []*Coverage{
				executedCov(a, b, c),
				executedCov(a, b, c),
				executedCov(d),
			},
			want: []int{0, 2},
		},
		{
			name: "greedy takes largest gain first",
			covs: []*Coverage{
				executedCov(a),
				executedCov(b, c, d),
			},
			want: []int{1, 0},
		},
		{
			name: "empty log never selected",
			covs: []*Coverage{
				executedCov(),
				executedCov(a),
			},
			want: []int{1},
		},
		{
			name: "failed log skipped",
			covs: []*Coverage{
				nil,
				executedCov(a),
			},
			want: []int{1},
		},
		{
			name: "no coverage at all",
			covs: []*Coverage{executedCov()},
			want: nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ReduceSet(test.covs)
			if d := cmp.Diff(test.want, got); d != "" {
				t.Errorf("ReduceSet() mismatch (-want +got):\n%s", d)
			}
		})
	}
}

// The selected logs must preserve the union of executed lines exactly.
func TestReduceSetPreservesUnion(t *testing.T) {
	covs := []*Coverage{
		executedCov(FileLine{"f.c", 1}, FileLine{"f.c", 2}),
		executedCov(FileLine{"f.c", 2}, FileLine{"g.c", 5}),
		executedCov(FileLine{"f.c", 1}),
	}
	union := NewCoverage()
	for _, cov := range covs {
		union.Merge(cov)
	}
	reduced := NewCoverage()
	for _, i := range ReduceSet(covs) {
		reduced.Merge(covs[i])
	}
	if d := cmp.Diff(union.Executed(), reduced.Executed()); d != "" {
		t.Errorf("reduced union differs from full union (-full +reduced):\n%s", d)
	}
}
