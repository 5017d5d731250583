// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGatherInputs(t *testing.T) {
	dir := t.TempDir()
	var logs []string
	for _, name := range []string{"drcov.app.1234.proc.log", "bbcov.tool.1.log"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		logs = append(logs, path)
	}
	// Not matching the log naming convention; must be ignored by -dir.
	for _, name := range []string{"notes.txt", "drcov-README.txt", "drcov"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	list := filepath.Join(dir, "list.txt")
	listed := filepath.Join(dir, "extra.log")
	// The list repeats a -dir hit to exercise deduplication.
	if err := os.WriteFile(list, []byte(listed+"\n"+logs[0]+"\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	defer func(oldInputs []string, oldDir, oldList string) {
		inputs, inputDir, inputList = oldInputs, oldDir, oldList
	}([]string(inputs), inputDir, inputList)
	inputs = []string{logs[1]}
	inputDir = dir
	inputList = list

	got, err := gatherInputs()
	if err != nil {
		t.Fatalf("gatherInputs() failed: %v", err)
	}
	want := []string{logs[1], logs[0], listed}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("gatherInputs() mismatch (-want +got):\n%s", d)
	}
}

func TestGatherInputsDirNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "drcov.app.1.log")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	defer func(old string) { inputDir = old }(inputDir)
	inputDir = file
	if _, err := gatherInputs(); err == nil {
		t.Errorf("gatherInputs() accepted a file as -dir")
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.info")

	if err := writeOutput(path, func(f *os.File) error {
		_, err := f.WriteString("SF:a.c\n")
		return err
	}); err != nil {
		t.Fatalf("writeOutput() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "SF:a.c\n" {
		t.Errorf("output = %q", data)
	}
}

func TestWriteOutputFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coverage.info")
	err := writeOutput(path, func(*os.File) error {
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("writeOutput() succeeded despite write failure")
	}
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("failed write left files behind: %v", entries)
	}
}
