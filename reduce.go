// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package drcov2lcov

// ReduceSet selects a sub-collection of the given coverage sets whose union
// of executed lines equals the union over all of them, using the greedy
// set-cover heuristic: repeatedly take the set covering the most still
// uncovered lines, breaking ties by lowest index. Returns the selected
// indices in selection order; nil entries contribute nothing and are never
// selected.
func ReduceSet(covs []*Coverage) []int {
	sets := make([]map[FileLine]struct{}, len(covs))
	uncovered := make(map[FileLine]struct{})
	for i, cov := range covs {
		if cov == nil {
			continue
		}
		sets[i] = cov.Executed()
		for fl := range sets[i] {
			uncovered[fl] = struct{}{}
		}
	}

	var selected []int
	chosen := make([]bool, len(covs))
	for len(uncovered) > 0 {
		best, bestGain := -1, 0
		for i, set := range sets {
			if chosen[i] || set == nil {
				continue
			}
			gain := 0
			for fl := range set {
				if _, ok := uncovered[fl]; ok {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}
		if best < 0 {
			break
		}
		chosen[best] = true
		selected = append(selected, best)
		for fl := range sets[best] {
			delete(uncovered, fl)
		}
	}
	return selected
}
