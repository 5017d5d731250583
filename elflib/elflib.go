// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package elflib reads the pieces of ELF binaries that coverage resolution
// needs: GNU build IDs, the gnu_debuglink record and the DWARF debug
// sections, transparently decompressing sections stored compressed.
package elflib

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

const NT_GNU_BUILD_ID uint32 = 3

// rounds 'x' up to the next 'to' aligned value
func alignTo(x, to uint32) uint32 {
	return (x + to - 1) & -to
}

type noteEntry struct {
	noteType uint32
	name     string
	desc     []byte
}

func forEachNote(note []byte, endian binary.ByteOrder, entryFn func(noteEntry)) error {
	for {
		var out noteEntry
		// If there isn't enough to parse set n to nil.
		if len(note) < 12 {
			return nil
		}
		namesz := endian.Uint32(note[0:4])
		descsz := endian.Uint32(note[4:8])
		out.noteType = endian.Uint32(note[8:12])
		if namesz+12 > uint32(len(note)) {
			return fmt.Errorf("invalid name length in note entry")
		}
		out.name = string(note[12 : 12+namesz])
		// We need to account for padding at the end.
		descoff := alignTo(12+namesz, 4)
		if descoff+descsz > uint32(len(note)) {
			return fmt.Errorf("invalid desc length in note entry")
		}
		out.desc = note[descoff : descoff+descsz]
		next := alignTo(descoff+descsz, 4)
		// If the final padding isn't in the entry, don't throw error.
		if next >= uint32(len(note)) {
			note = note[len(note):]
		} else {
			note = note[next:]
		}
		entryFn(out)
	}
}

func byteOrder(f *elf.File) binary.ByteOrder {
	if f.Data == elf.ELFDATA2LSB {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// GetBuildIDs returns every GNU build ID note found in the file. Most
// binaries carry exactly one; stripped binaries keep theirs because the note
// lives outside the debug sections.
func GetBuildIDs(filename string, f *elf.File) ([][]byte, error) {
	endian := byteOrder(f)
	out := [][]byte{}
	// Check every PT_NOTE segment.
	for _, prog := range f.Progs {
		if prog == nil || prog.Type != elf.PT_NOTE {
			continue
		}
		noteBytes := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(noteBytes, 0); err != nil {
			return nil, fmt.Errorf("error reading notes in %s: %w", filename, err)
		}
		err := forEachNote(noteBytes, endian, func(entry noteEntry) {
			if entry.noteType != NT_GNU_BUILD_ID || entry.name != "GNU\000" {
				return
			}
			out = append(out, entry.desc)
		})
		if err != nil {
			return out, err
		}
	}
	// Object files without program headers keep the note in a section.
	if len(out) == 0 {
		for _, section := range f.Sections {
			if section.Type != elf.SHT_NOTE || !strings.HasPrefix(section.Name, ".note") {
				continue
			}
			noteBytes, err := section.Data()
			if err != nil {
				continue
			}
			err = forEachNote(noteBytes, endian, func(entry noteEntry) {
				if entry.noteType != NT_GNU_BUILD_ID || entry.name != "GNU\000" {
					return
				}
				out = append(out, entry.desc)
			})
			if err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// DebugLink returns the filename stored in the .gnu_debuglink section, if
// any. The section holds a NUL-terminated name padded to four bytes followed
// by a CRC of the linked file.
func DebugLink(f *elf.File) (string, bool) {
	section := f.Section(".gnu_debuglink")
	if section == nil {
		return "", false
	}
	data, err := section.Data()
	if err != nil {
		return "", false
	}
	end := bytes.IndexByte(data, 0)
	if end <= 0 {
		return "", false
	}
	return string(data[:end]), true
}

// LoadBase returns the link-time bias of the file: the lowest difference
// between a PT_LOAD segment's virtual address and its file offset. DWARF
// line-table addresses minus this bias give file-relative offsets, which is
// the address space basic-block hits are recorded in.
func LoadBase(f *elf.File) uint64 {
	var base uint64
	found := false
	for _, prog := range f.Progs {
		if prog == nil || prog.Type != elf.PT_LOAD {
			continue
		}
		bias := prog.Vaddr - prog.Off
		if !found || bias < base {
			base = bias
			found = true
		}
	}
	return base
}

// HasDebugInfo reports whether the file carries a DWARF info section in any
// of its encodings.
func HasDebugInfo(f *elf.File) bool {
	return f.Section(".debug_info") != nil || f.Section(".zdebug_info") != nil
}
