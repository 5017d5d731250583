// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package drcov2lcov

import (
	"bufio"
	"fmt"
	"io"
)

// WriteLCOV emits the table in lcov tracefile format: files in lexicographic
// order, each as an SF: record with ascending DA:<line>,<hit> lines and an
// end_of_record terminator. Files where nothing executed are omitted.
func WriteLCOV(w io.Writer, cov *Coverage) error {
	bw := bufio.NewWriter(w)
	for _, file := range cov.Files() {
		nums, executed := cov.Lines(file)
		anyHit := false
		for _, line := range nums {
			if executed[line] {
				anyHit = true
				break
			}
		}
		if !anyHit {
			continue
		}
		if _, err := fmt.Fprintf(bw, "SF:%s\n", file); err != nil {
			return err
		}
		for _, line := range nums {
			hit := 0
			if executed[line] {
				hit = 1
			}
			if _, err := fmt.Fprintf(bw, "DA:%d,%d\n", line, hit); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "end_of_record"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
