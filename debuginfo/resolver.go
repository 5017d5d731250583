// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package debuginfo turns binaries into address-to-source-line tables. It
// understands ELF and PE containers, compressed debug sections, detached
// debug files linked via gnu_debuglink, and DWARF versions up to 5. Resolved
// modules are cached so that many coverage logs referencing the same binary
// pay the DWARF walk only once.
package debuginfo

import (
	"context"
	"debug/dwarf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/GeorgeLS/drcov2lcov/atonce"
	"github.com/GeorgeLS/drcov2lcov/logger"
)

var (
	// ErrNoDebugInfo marks a binary with no usable DWARF data.
	ErrNoDebugInfo = errors.New("no debug info")
	// ErrUnsupportedDWARFVersion marks DWARF data newer than the parser
	// understands.
	ErrUnsupportedDWARFVersion = errors.New("unsupported DWARF version")
)

// lineEntry maps a half-open module-relative address range to a source line.
type lineEntry struct {
	start, end uint64
	file       string
	line       int
}

// ResolvedModule is the line table of a single binary, with addresses
// rebased to be module-relative.
type ResolvedModule struct {
	Path    string
	entries []lineEntry
	// maxEnd[i] is the largest end among entries[0..i]. Ranges from
	// different compile units may overlap, so ends alone are not monotone
	// in start order; the running maximum is, which keeps the Lookup
	// binary search valid.
	maxEnd []uint64
	lines  map[string][]int
}

// buildIndex must be called once entries are sorted by start.
func (m *ResolvedModule) buildIndex() {
	m.maxEnd = make([]uint64, len(m.entries))
	var max uint64
	for i, e := range m.entries {
		if e.end > max {
			max = e.end
		}
		m.maxEnd[i] = max
	}
}

// Lookup calls visit for every source line whose address range intersects
// [offset, offset+size). Addresses outside the line table are skipped.
func (m *ResolvedModule) Lookup(offset uint64, size uint16, visit func(file string, line int)) {
	limit := offset + uint64(size)
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.maxEnd[i] > offset
	})
	for ; i < len(m.entries) && m.entries[i].start < limit; i++ {
		if m.entries[i].end > offset {
			visit(m.entries[i].file, m.entries[i].line)
		}
	}
}

// LinesOf returns every line the module's debug info mentions for the file,
// sorted ascending.
func (m *ResolvedModule) LinesOf(file string) []int {
	return m.lines[file]
}

// Resolver resolves and caches modules. The zero value is not usable; use
// NewResolver.
type Resolver struct {
	cache cmap.ConcurrentMap[string, *cacheEntry]
}

type cacheEntry struct {
	module *ResolvedModule
	err    error
}

func NewResolver() *Resolver {
	return &Resolver{cache: cmap.New[*cacheEntry]()}
}

// Resolve returns the line table for the binary at path. Concurrent calls
// for the same binary collapse into a single resolution, and results, both
// successes and failures, stick for the lifetime of the resolver.
func (r *Resolver) Resolve(ctx context.Context, path string) (*ResolvedModule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("module %s unreadable: %w", path, err)
	}
	key := fmt.Sprintf("%s|%d", path, info.ModTime().UnixNano())
	err = atonce.Do("debuginfo.resolve", key, func() error {
		if _, ok := r.cache.Get(key); ok {
			return nil
		}
		module, err := resolveModule(ctx, path)
		r.cache.Set(key, &cacheEntry{module: module, err: err})
		return nil
	})
	if err != nil {
		return nil, err
	}
	entry, ok := r.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("module %s: resolution produced no result", path)
	}
	return entry.module, entry.err
}

func resolveModule(ctx context.Context, path string) (*ResolvedModule, error) {
	data, base, err := openDWARF(ctx, path)
	if err != nil {
		return nil, err
	}
	module := &ResolvedModule{Path: path, lines: make(map[string][]int)}
	if err := module.readLineTables(data, base); err != nil {
		return nil, err
	}
	sort.Slice(module.entries, func(i, j int) bool {
		return module.entries[i].start < module.entries[j].start
	})
	module.buildIndex()
	for file, lines := range module.lines {
		sort.Ints(lines)
		module.lines[file] = dedupInts(lines)
	}
	logger.Debugf(ctx, "resolved %s: %d address ranges across %d files",
		path, len(module.entries), len(module.lines))
	return module, nil
}

// readLineTables walks every compile unit's line program, mapping the
// half-open range between consecutive rows to the earlier row's position.
// base is subtracted from every address to make it module-relative.
func (m *ResolvedModule) readLineTables(data *dwarf.Data, base uint64) error {
	reader := data.Reader()
	for {
		cu, err := reader.Next()
		if err != nil {
			return dwarfError(m.Path, err)
		}
		if cu == nil {
			return nil
		}
		if cu.Tag != dwarf.TagCompileUnit {
			reader.SkipChildren()
			continue
		}
		lr, err := data.LineReader(cu)
		if err != nil {
			return dwarfError(m.Path, err)
		}
		if lr == nil {
			continue
		}
		var prev dwarf.LineEntry
		havePrev := false
		for {
			var row dwarf.LineEntry
			if err := lr.Next(&row); err == io.EOF {
				break
			} else if err != nil {
				return dwarfError(m.Path, err)
			}
			if havePrev && row.Address > prev.Address {
				m.entries = append(m.entries, lineEntry{
					start: prev.Address - base,
					end:   row.Address - base,
					file:  prev.File.Name,
					line:  prev.Line,
				})
			}
			if !row.EndSequence && row.File != nil {
				m.lines[row.File.Name] = append(m.lines[row.File.Name], row.Line)
				prev = row
				havePrev = true
			} else {
				havePrev = false
			}
		}
	}
}

func dedupInts(sorted []int) []int {
	out := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// dwarfError normalizes parse failures, mapping version complaints from
// debug/dwarf onto ErrUnsupportedDWARFVersion.
func dwarfError(path string, err error) error {
	if strings.Contains(err.Error(), "unsupported version") {
		return fmt.Errorf("module %s: %w", path, ErrUnsupportedDWARFVersion)
	}
	return fmt.Errorf("module %s: reading DWARF: %w", path, err)
}
