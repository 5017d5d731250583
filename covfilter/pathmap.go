// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package covfilter

import (
	"fmt"
	"strings"
)

type pathMapRule struct {
	from string
	to   string
}

// PathMap rewrites module paths according to an ordered list of prefix rules.
// The first rule whose "from" prefix matches wins; a path matching no rule is
// returned unchanged.
type PathMap struct {
	rules []pathMapRule
}

// ParsePathMap builds a PathMap from "old=new" arguments, keeping them in
// the order given.
func ParsePathMap(args []string) (*PathMap, error) {
	m := &PathMap{}
	for _, arg := range args {
		from, to, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pathmap argument %q: no '=' found", arg)
		}
		if from == "" {
			return nil, fmt.Errorf("invalid pathmap argument %q: empty match prefix", arg)
		}
		m.rules = append(m.rules, pathMapRule{from: from, to: to})
	}
	return m, nil
}

// Apply returns path with the first matching rule's prefix substituted, or
// path itself if no rule matches. A nil *PathMap applies no rewrites.
func (m *PathMap) Apply(path string) string {
	if m == nil {
		return path
	}
	for _, rule := range m.rules {
		if strings.HasPrefix(path, rule.from) {
			return rule.to + path[len(rule.from):]
		}
	}
	return path
}
