// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debuginfo

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"debug/pe"
	"fmt"
	"os"

	"github.com/GeorgeLS/drcov2lcov/elflib"
	"github.com/GeorgeLS/drcov2lcov/logger"
)

// openDWARF loads the DWARF data for the binary at path along with the load
// bias to subtract from its addresses. ELF binaries whose debug info was
// stripped into a separate file are followed through gnu_debuglink; anything
// that is not ELF is tried as PE.
func openDWARF(ctx context.Context, path string) (*dwarf.Data, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("module %s unreadable: %w", path, err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return openPE(path)
	}
	defer ef.Close()

	if elflib.HasDebugInfo(ef) {
		data, err := elflib.NewDWARF(path, f, ef)
		if err != nil {
			return nil, 0, dwarfError(path, err)
		}
		return data, elflib.LoadBase(ef), nil
	}

	debugPath, err := findDebugFile(path, ef)
	if err != nil {
		return nil, 0, err
	}
	if debugPath == "" {
		return nil, 0, fmt.Errorf("module %s: %w", path, ErrNoDebugInfo)
	}
	logger.Debugf(ctx, "module %s: using detached debug file %s", path, debugPath)

	df, err := os.Open(debugPath)
	if err != nil {
		return nil, 0, fmt.Errorf("module %s unreadable: %w", debugPath, err)
	}
	defer df.Close()
	def, err := elf.NewFile(df)
	if err != nil {
		return nil, 0, fmt.Errorf("module %s: %w", debugPath, err)
	}
	defer def.Close()
	if !elflib.HasDebugInfo(def) {
		return nil, 0, fmt.Errorf("module %s: %w", debugPath, ErrNoDebugInfo)
	}
	data, err := elflib.NewDWARF(debugPath, df, def)
	if err != nil {
		return nil, 0, dwarfError(debugPath, err)
	}
	return data, elflib.LoadBase(def), nil
}

// openPE loads DWARF out of a PE binary, as produced by MinGW toolchains.
// Addresses are biased by the image base.
func openPE(path string) (*dwarf.Data, uint64, error) {
	pf, err := pe.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("module %s: not a recognized binary: %w", path, ErrNoDebugInfo)
	}
	defer pf.Close()
	data, err := pf.DWARF()
	if err != nil {
		return nil, 0, dwarfError(path, err)
	}
	var base uint64
	switch hdr := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		base = uint64(hdr.ImageBase)
	case *pe.OptionalHeader64:
		base = hdr.ImageBase
	}
	return data, base, nil
}
