// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package covfilter implements the module and source-path filtering rules
// applied while converting coverage logs, along with the path remapping that
// rewrites recorded module paths before they are opened for debug info.
package covfilter

import (
	"fmt"
	"regexp"
)

// Filter holds one axis pair of include/exclude patterns. A value matches the
// filter when it matches at least one include pattern (or the include set is
// empty) and matches no exclude pattern. Exclude always wins over include.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFilter compiles the given include and exclude patterns. A nil *Filter is
// valid and matches everything.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range include {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		f.include = append(f.include, re)
	}
	for _, pattern := range exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid skip filter pattern %q: %w", pattern, err)
		}
		f.exclude = append(f.exclude, re)
	}
	return f, nil
}

// Match reports whether s passes the filter.
func (f *Filter) Match(s string) bool {
	if f == nil {
		return true
	}
	for _, re := range f.exclude {
		if re.MatchString(s) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
