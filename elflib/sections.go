// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package elflib

import (
	"bytes"
	"compress/zlib"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedCompression marks a debug section compressed with a scheme
// this package cannot inflate.
var ErrUnsupportedCompression = errors.New("unsupported debug section compression")

// chdr header sizes per ELF class, including the reserved word on 64-bit.
const (
	chdr32Size = 12
	chdr64Size = 24
)

// SectionData returns a debug section's contents, inflating GNU-style
// .zdebug_ sections and SHF_COMPRESSED sections as needed. The raw bytes are
// read through r rather than the section's own reader so that compressed
// sections can be handled uniformly.
func SectionData(filename string, r io.ReaderAt, f *elf.File, s *elf.Section) ([]byte, error) {
	raw := make([]byte, s.FileSize)
	if _, err := r.ReadAt(raw, int64(s.Offset)); err != nil {
		return nil, fmt.Errorf("error reading section %s of %s: %w", s.Name, filename, err)
	}
	switch {
	case strings.HasPrefix(s.Name, ".zdebug_"):
		return zdebugData(filename, s.Name, raw)
	case s.Flags&elf.SHF_COMPRESSED != 0:
		return compressedData(filename, f, s.Name, raw)
	}
	return raw, nil
}

// zdebugData inflates a GNU-style compressed section: a "ZLIB" magic, a
// big-endian uncompressed size, then a zlib stream.
func zdebugData(filename, name string, raw []byte) ([]byte, error) {
	if len(raw) < 12 || string(raw[:4]) != "ZLIB" {
		return nil, fmt.Errorf("section %s of %s: malformed ZLIB header", name, filename)
	}
	size := binary.BigEndian.Uint64(raw[4:12])
	return inflateZlib(filename, name, raw[12:], size)
}

// compressedData inflates a SHF_COMPRESSED section, whose contents begin
// with an Elf_Chdr describing the scheme and uncompressed size.
func compressedData(filename string, f *elf.File, name string, raw []byte) ([]byte, error) {
	endian := byteOrder(f)
	var ctype elf.CompressionType
	var size uint64
	switch f.Class {
	case elf.ELFCLASS64:
		if len(raw) < chdr64Size {
			return nil, fmt.Errorf("section %s of %s: truncated compression header", name, filename)
		}
		ctype = elf.CompressionType(endian.Uint32(raw[0:4]))
		size = endian.Uint64(raw[8:16])
		raw = raw[chdr64Size:]
	default:
		if len(raw) < chdr32Size {
			return nil, fmt.Errorf("section %s of %s: truncated compression header", name, filename)
		}
		ctype = elf.CompressionType(endian.Uint32(raw[0:4]))
		size = uint64(endian.Uint32(raw[4:8]))
		raw = raw[chdr32Size:]
	}
	switch ctype {
	case elf.COMPRESS_ZLIB:
		return inflateZlib(filename, name, raw, size)
	case elf.COMPRESS_ZSTD:
		return inflateZstd(filename, name, raw, size)
	}
	return nil, fmt.Errorf("section %s of %s: scheme %v: %w", name, filename, ctype, ErrUnsupportedCompression)
}

func inflateZlib(filename, name string, compressed []byte, size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("section %s of %s: %w", name, filename, err)
	}
	defer zr.Close()
	return inflated(filename, name, zr, size)
}

func inflateZstd(filename, name string, compressed []byte, size uint64) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("section %s of %s: %w", name, filename, err)
	}
	defer zr.Close()
	return inflated(filename, name, zr.IOReadCloser(), size)
}

func inflated(filename, name string, r io.Reader, size uint64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("section %s of %s: short decompressed data: %w", name, filename, err)
	}
	return data, nil
}

// NewDWARF assembles DWARF data out of the file's debug sections, handling
// both plain and compressed storage. DWARF 5 auxiliary sections are attached
// when present.
func NewDWARF(filename string, r io.ReaderAt, f *elf.File) (*dwarf.Data, error) {
	load := func(name string) ([]byte, error) {
		s := f.Section(".debug_" + name)
		if s == nil {
			s = f.Section(".zdebug_" + name)
		}
		if s == nil {
			return nil, nil
		}
		return SectionData(filename, r, f, s)
	}
	var sections [5][]byte
	for i, name := range []string{"abbrev", "info", "line", "ranges", "str"} {
		data, err := load(name)
		if err != nil {
			return nil, err
		}
		sections[i] = data
	}
	d, err := dwarf.New(sections[0], nil, nil, sections[1], sections[2], nil, sections[3], sections[4])
	if err != nil {
		return nil, fmt.Errorf("error parsing DWARF in %s: %w", filename, err)
	}
	for _, name := range []string{"line_str", "str_offsets", "addr", "rnglists"} {
		data, err := load(name)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		if err := d.AddSection(".debug_"+name, data); err != nil {
			return nil, fmt.Errorf("error parsing DWARF in %s: %w", filename, err)
		}
	}
	return d, nil
}
