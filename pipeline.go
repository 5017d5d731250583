// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package drcov2lcov

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/GeorgeLS/drcov2lcov/covfilter"
	"github.com/GeorgeLS/drcov2lcov/debuginfo"
	"github.com/GeorgeLS/drcov2lcov/drcov"
	"github.com/GeorgeLS/drcov2lcov/logger"
)

// Options configures a conversion run. All filter fields hold regular
// expression patterns; PathMap holds "old=new" prefix rules.
type Options struct {
	ModFilter     []string
	ModSkipFilter []string
	SrcFilter     []string
	SrcSkipFilter []string
	PathMap       []string
	// Jobs bounds how many logs are processed concurrently. Values below 1
	// mean one worker per CPU.
	Jobs int
}

// Converter runs the log-to-coverage pipeline. It is safe for use from a
// single Convert call at a time; the module cache inside persists across
// calls.
type Converter struct {
	modFilter *covfilter.Filter
	srcFilter *covfilter.Filter
	pathMap   *covfilter.PathMap
	resolver  *debuginfo.Resolver
	jobs      int
}

func NewConverter(opts Options) (*Converter, error) {
	modFilter, err := covfilter.NewFilter(opts.ModFilter, opts.ModSkipFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid module filter: %w", err)
	}
	srcFilter, err := covfilter.NewFilter(opts.SrcFilter, opts.SrcSkipFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid source filter: %w", err)
	}
	pathMap, err := covfilter.ParsePathMap(opts.PathMap)
	if err != nil {
		return nil, fmt.Errorf("invalid pathmap: %w", err)
	}
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}
	return &Converter{
		modFilter: modFilter,
		srcFilter: srcFilter,
		pathMap:   pathMap,
		resolver:  debuginfo.NewResolver(),
		jobs:      jobs,
	}, nil
}

// LogResult is one input log's outcome. Err is set for per-log recoverable
// failures (unreadable or malformed logs); such logs contribute no coverage.
type LogResult struct {
	Path     string
	Coverage *Coverage
	Err      error
}

// Convert processes every input log, in parallel up to the configured job
// count, and returns the per-log results alongside the merged table. Per-log
// failures are recorded in the results and logged, never returned.
func (c *Converter) Convert(ctx context.Context, inputs []string) ([]LogResult, *Coverage) {
	results := make([]LogResult, len(inputs))
	var eg errgroup.Group
	eg.SetLimit(c.jobs)
	for i, path := range inputs {
		i, path := i, path
		eg.Go(func() error {
			cov, err := c.convertLog(ctx, path)
			if err != nil {
				logger.Warningf(ctx, "skipping log %s: %v", path, err)
			}
			results[i] = LogResult{Path: path, Coverage: cov, Err: err}
			return nil
		})
	}
	// Workers never fail the group; recoverable errors land in results.
	eg.Wait()

	merged := NewCoverage()
	for _, res := range results {
		if res.Err == nil {
			merged.Merge(res.Coverage)
		}
	}
	return results, merged
}

// convertLog parses one log and resolves its block hits to source lines.
func (c *Converter) convertLog(ctx context.Context, path string) (*Coverage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	logger.Debugf(ctx, "parsing %s (%s)", path, humanize.Bytes(uint64(len(data))))
	log, err := drcov.Parse(path, data)
	if err != nil {
		return nil, err
	}

	cov := NewCoverage()
	modules := make([]*debuginfo.ResolvedModule, len(log.Modules))
	resolved := make([]bool, len(log.Modules))
	var skipped error
	touched := make(map[*debuginfo.ResolvedModule]map[string]struct{})
	srcEligible := make(map[string]bool)

	for _, hit := range log.Hits {
		m := &log.Modules[hit.ModuleID]
		if !m.Contains(hit) {
			logger.Tracef(ctx, "%s: dropping hit at %#x+%#x past module %s", path, hit.Offset, hit.Size, m.Path)
			continue
		}
		if !resolved[m.ID] {
			resolved[m.ID] = true
			modules[m.ID], err = c.resolveModule(ctx, m)
			if err != nil {
				skipped = multierr.Append(skipped, err)
			}
		}
		module := modules[m.ID]
		if module == nil {
			continue
		}
		module.Lookup(m.SegmentOffset+uint64(hit.Offset), hit.Size, func(file string, line int) {
			eligible, ok := srcEligible[file]
			if !ok {
				eligible = c.srcFilter.Match(file)
				srcEligible[file] = eligible
			}
			if !eligible {
				return
			}
			cov.MarkExecuted(file, line)
			files := touched[module]
			if files == nil {
				files = make(map[string]struct{})
				touched[module] = files
			}
			files[file] = struct{}{}
		})
	}

	// Executed files also report their unexecuted instrumentable lines, so
	// lcov consumers can compute per-file percentages.
	for module, files := range touched {
		for file := range files {
			for _, line := range module.LinesOf(file) {
				cov.AddLine(file, line)
			}
		}
	}

	if skipped != nil {
		logger.Warningf(ctx, "%s: some modules were not resolved: %v", path, skipped)
	}
	return cov, nil
}

// resolveModule applies the pathmap and module filters, then resolves.
// A nil module with nil error means the module was filtered out.
func (c *Converter) resolveModule(ctx context.Context, m *drcov.Module) (*debuginfo.ResolvedModule, error) {
	path := c.pathMap.Apply(m.Path)
	if !c.modFilter.Match(path) {
		logger.Tracef(ctx, "module %s filtered out", path)
		return nil, nil
	}
	return c.resolver.Resolve(ctx, path)
}
