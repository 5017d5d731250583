// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	drcov2lcov "github.com/GeorgeLS/drcov2lcov"
	"github.com/GeorgeLS/drcov2lcov/color"
	"github.com/GeorgeLS/drcov2lcov/command"
	"github.com/GeorgeLS/drcov2lcov/logger"
	"github.com/GeorgeLS/drcov2lcov/osmisc"
)

var (
	colors        color.EnableColor
	level         logger.LogLevel
	inputs        command.StringsFlag
	inputDir      string
	inputList     string
	output        string
	modFilter     command.StringsFlag
	modSkipFilter command.StringsFlag
	srcFilter     command.StringsFlag
	srcSkipFilter command.StringsFlag
	pathMap       command.StringsFlag
	reduceSet     bool
	reduceSetDir  string
	jobs          int
)

func init() {
	colors = color.ColorAuto
	level = logger.InfoLevel

	flag.Var(&colors, "color", "can be never, auto, always")
	flag.Var(&level, "level", "can be fatal, error, warning, info, debug or trace")
	flag.Var(&inputs, "input", "path to a coverage log; may be repeated")
	flag.Var(&inputs, "i", "alias of -input")
	flag.StringVar(&inputDir, "dir", "", "directory to scan for coverage logs")
	flag.StringVar(&inputList, "list", "", "file containing newline-separated log paths")
	flag.StringVar(&output, "output", "coverage.info", "output file; lcov data, or the selected log paths with -reduce_set")
	flag.Var(&modFilter, "mod_filter", "regex a module path must match to be included; may be repeated")
	flag.Var(&modSkipFilter, "mod_skip_filter", "regex excluding matching module paths; may be repeated")
	flag.Var(&srcFilter, "src_filter", "regex a source path must match to be included; may be repeated")
	flag.Var(&srcSkipFilter, "src_skip_filter", "regex excluding matching source paths; may be repeated")
	flag.Var(&pathMap, "pathmap", "old=new prefix rewrite applied to module paths; may be repeated")
	flag.BoolVar(&reduceSet, "reduce_set", false, "select a minimal subset of logs with the same total coverage instead of emitting lcov data")
	flag.StringVar(&reduceSetDir, "reduce_set_dir", "", "with -reduce_set, also copy the selected logs into this directory")
	flag.IntVar(&jobs, "jobs", 0, "how many logs to process concurrently; 0 means one per CPU")
}

// logNameRE matches the file naming convention of drcov and its bbcov
// derivatives, e.g. drcov.myapp.1234.proc.log.
var logNameRE = regexp.MustCompile(`(dr|bb)cov\..*\.?log`)

// gatherInputs merges -input, -dir and -list into a deduplicated path list,
// preserving first-seen order.
func gatherInputs() ([]string, error) {
	paths := []string(inputs)
	if inputDir != "" {
		if isDir, err := osmisc.IsDir(inputDir); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", inputDir, err)
		} else if !isDir {
			return nil, fmt.Errorf("-dir %s is not a directory", inputDir)
		}
		entries, err := os.ReadDir(inputDir)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", inputDir, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && logNameRE.MatchString(entry.Name()) {
				paths = append(paths, filepath.Join(inputDir, entry.Name()))
			}
		}
	}
	if inputList != "" {
		data, err := os.ReadFile(inputList)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", inputList, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				paths = append(paths, line)
			}
		}
	}
	seen := make(map[string]struct{}, len(paths))
	var unique []string
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		unique = append(unique, path)
	}
	return unique, nil
}

// writeOutput writes via a temporary file and renames, so a failed run never
// leaves a partial output behind.
func writeOutput(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func writeReduceSet(ctx context.Context, results []drcov2lcov.LogResult) error {
	covs := make([]*drcov2lcov.Coverage, len(results))
	for i, res := range results {
		covs[i] = res.Coverage
	}
	selected := drcov2lcov.ReduceSet(covs)
	logger.Infof(ctx, "reduce set: %d of %d logs preserve total coverage", len(selected), len(results))
	err := writeOutput(output, func(f *os.File) error {
		w := bufio.NewWriter(f)
		for _, i := range selected {
			fmt.Fprintln(w, results[i].Path)
		}
		return w.Flush()
	})
	if err != nil {
		return err
	}
	if reduceSetDir == "" {
		return nil
	}
	if err := os.MkdirAll(reduceSetDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", reduceSetDir, err)
	}
	for _, i := range selected {
		dest := filepath.Join(reduceSetDir, filepath.Base(results[i].Path))
		if err := osmisc.CopyFile(results[i].Path, dest); err != nil {
			return fmt.Errorf("copying %s: %w", results[i].Path, err)
		}
	}
	return nil
}

func mainImpl(ctx context.Context) error {
	paths, err := gatherInputs()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no input logs; use -input, -dir or -list")
	}

	converter, err := drcov2lcov.NewConverter(drcov2lcov.Options{
		ModFilter:     modFilter,
		ModSkipFilter: modSkipFilter,
		SrcFilter:     srcFilter,
		SrcSkipFilter: srcSkipFilter,
		PathMap:       pathMap,
		Jobs:          jobs,
	})
	if err != nil {
		return err
	}

	results, merged := converter.Convert(ctx, paths)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("none of the %d input logs could be processed", len(results))
	}
	if failed > 0 {
		logger.Warningf(ctx, "%d of %d logs were skipped", failed, len(results))
	}

	if reduceSet {
		return writeReduceSet(ctx, results)
	}
	return writeOutput(output, func(f *os.File) error {
		return drcov2lcov.WriteLCOV(f, merged)
	})
}

func main() {
	flag.Parse()

	log := logger.NewLogger(level, color.NewColor(colors), os.Stdout, os.Stderr, "drcov2lcov ")
	ctx := logger.WithLogger(context.Background(), log)
	ctx = command.CancelOnSignals(ctx, syscall.SIGINT, syscall.SIGTERM)

	if err := mainImpl(ctx); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
