// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package drcov parses coverage logs produced by DynamoRIO's drcov tool and
// its derivatives. A log is a text header (format version, flavor, module
// table, basic-block count) followed by a packed array of binary basic-block
// records. All five historical module-table layouts are understood and
// normalized into a single Module shape.
package drcov

import (
	"encoding/binary"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	versionRE         = regexp.MustCompile(`^DRCOV VERSION: (\d+)$`)
	flavorRE          = regexp.MustCompile(`^DRCOV FLAVOR: (\S+)$`)
	moduleHeaderOldRE = regexp.MustCompile(`^Module Table: (\d+)$`)
	moduleHeaderRE    = regexp.MustCompile(`^Module Table: version (\d+), count (\d+)$`)
	moduleV1RE        = regexp.MustCompile(`^\s*(\d+), (\d+), (\S+)$`)
	moduleV2RE        = regexp.MustCompile(`^\s*(\d+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), (?:0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), )?(\S+)$`)
	moduleV3RE        = regexp.MustCompile(`^\s*(\d+), (\d+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), (\S+)$`)
	moduleV4RE        = regexp.MustCompile(`^\s*(\d+), (\d+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), ([0-9a-fA-F]+), (\S+)$`)
	moduleV5RE        = regexp.MustCompile(`^\s*(\d+), (\d+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), ([0-9a-fA-F]+), 0[xX]([0-9a-fA-F]+), (\S+)$`)
	blockHeaderRE     = regexp.MustCompile(`^BB Table: (\d+) bbs$`)
)

// blockRecordSize is the wire size of one basic-block record: a uint32 module
// offset, a uint16 block size and a uint16 module id, all little endian. The
// record layout never changed across format versions.
const blockRecordSize = 8

// MalformedLogError reports a log whose bytes violate the layout expected for
// its declared version. Section and Detail identify what was being parsed.
type MalformedLogError struct {
	File    string
	Section string
	Detail  string
}

func (e *MalformedLogError) Error() string {
	return fmt.Sprintf("%s: malformed drcov log: %s: %s", e.File, e.Section, e.Detail)
}

func malformed(file, section, format string, a ...interface{}) error {
	return &MalformedLogError{File: file, Section: section, Detail: fmt.Sprintf(format, a...)}
}

// Module is one loaded-module entry, normalized across table layouts. Its ID
// is its position in the owning log's table and is only unique within that
// log.
type Module struct {
	ID   int
	Path string
	// Base and End delimit the load-address range. Version 1 tables record
	// only a size; those normalize to Base 0.
	Base uint64
	End  uint64
	// Entry is the module entry point (zero for version 1 tables).
	Entry uint64
	// ContainingID is the id of the module entry owning the file this
	// segment was mapped from, or -1 when the table layout has no such
	// column. Version 3 introduced it for files mapped more than once.
	ContainingID int
	// SegmentOffset is this segment's offset from its containing module's
	// base, resolved once the whole table is known.
	SegmentOffset uint64
}

// Size returns the byte length of the module's address range.
func (m *Module) Size() uint64 {
	return m.End - m.Base
}

// Contains reports whether the hit's byte range lies inside the module's
// mapped range. Capture tools occasionally record blocks past the end of a
// mapping; those hits belong to no code in the module.
func (m *Module) Contains(hit BlockHit) bool {
	return uint64(hit.Offset)+uint64(hit.Size) <= m.Size()
}

// BlockHit records that the byte range [Offset, Offset+Size) inside module
// ModuleID executed at least once.
type BlockHit struct {
	ModuleID uint16
	Offset   uint32
	Size     uint16
}

// Log is one parsed drcov file. It is immutable once returned by Parse.
type Log struct {
	// File is the path the log was read from, or the name given to Parse.
	File string
	// Version is the drcov format revision (1-5).
	Version int
	// Flavor identifies the producing tool (e.g. "drcov").
	Flavor string
	// TableVersion is the module-table layout revision, which is tracked
	// separately from the file version in the header.
	TableVersion int
	Modules      []Module
	Hits         []BlockHit
}

// lineScanner walks the text portion of a log while tracking the byte offset
// just past the last consumed line, so the binary block section can be
// located once the header has been read.
type lineScanner struct {
	data []byte
	pos  int
}

// next returns the next non-empty line with the trailing newline (and any
// carriage return) removed. ok is false at end of input.
func (s *lineScanner) next() (line string, ok bool) {
	for s.pos < len(s.data) {
		start := s.pos
		end := start
		for end < len(s.data) && s.data[end] != '\n' {
			end++
		}
		if end < len(s.data) {
			s.pos = end + 1
		} else {
			s.pos = len(s.data)
		}
		line = strings.TrimSuffix(string(s.data[start:end]), "\r")
		if line != "" {
			return line, true
		}
	}
	return "", false
}

// ParseFile reads and parses a single drcov log.
func ParseFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes the raw bytes of one drcov log. The name is used only for
// error reporting. Parse validates the structure eagerly: a declared block
// count that does not match the bytes available, or a block record naming a
// module id outside the table, fail here rather than during resolution.
func Parse(name string, data []byte) (*Log, error) {
	s := &lineScanner{data: data}
	log := &Log{File: name}

	line, ok := s.next()
	if !ok {
		return nil, malformed(name, "header", "version line missing")
	}
	m := versionRE.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(name, "header", "version line %q does not match the expected format", line)
	}
	log.Version, _ = strconv.Atoi(m[1])
	if log.Version < 1 || log.Version > 5 {
		return nil, malformed(name, "header", "unsupported version %d", log.Version)
	}

	line, ok = s.next()
	if !ok {
		return nil, malformed(name, "header", "flavor line missing")
	}
	m = flavorRE.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(name, "header", "flavor line %q does not match the expected format", line)
	}
	log.Flavor = m[1]

	if err := parseModuleTable(s, log); err != nil {
		return nil, err
	}

	line, ok = s.next()
	if !ok {
		return nil, malformed(name, "block table", "header line missing")
	}
	m = blockHeaderRE.FindStringSubmatch(line)
	if m == nil {
		return nil, malformed(name, "block table", "header line %q does not match the expected format", line)
	}
	count, _ := strconv.Atoi(m[1])

	if err := parseBlockRecords(data[s.pos:], count, log); err != nil {
		return nil, err
	}
	return log, nil
}

func parseModuleTable(s *lineScanner, log *Log) error {
	line, ok := s.next()
	if !ok {
		return malformed(log.File, "module table", "header line missing")
	}

	var count int
	if m := moduleHeaderOldRE.FindStringSubmatch(line); m != nil {
		log.TableVersion = 1
		count, _ = strconv.Atoi(m[1])
	} else if m := moduleHeaderRE.FindStringSubmatch(line); m != nil {
		log.TableVersion, _ = strconv.Atoi(m[1])
		count, _ = strconv.Atoi(m[2])
		// The versioned header is followed by a "Columns:" legend line.
		if _, ok := s.next(); !ok {
			return malformed(log.File, "module table", "columns line missing")
		}
	} else {
		return malformed(log.File, "module table", "header line %q does not match the expected format", line)
	}

	log.Modules = make([]Module, 0, count)
	for i := 0; i < count; i++ {
		line, ok := s.next()
		if !ok {
			return malformed(log.File, "module table", "table truncated: want %d modules, have %d", count, i)
		}
		mod, err := parseModuleLine(log.File, log.TableVersion, line)
		if err != nil {
			return err
		}
		if mod.ID != i {
			return malformed(log.File, "module table", "module id %d at table position %d", mod.ID, i)
		}
		log.Modules = append(log.Modules, mod)
	}

	// Segments recorded with a containing module resolve their offsets
	// against that module's base.
	if log.TableVersion >= 3 {
		for i := range log.Modules {
			mod := &log.Modules[i]
			if mod.ContainingID < 0 || mod.ContainingID == mod.ID {
				continue
			}
			if mod.ContainingID >= len(log.Modules) {
				return malformed(log.File, "module table", "module %d names containing module %d, table has %d entries", mod.ID, mod.ContainingID, len(log.Modules))
			}
			// Version 4 added an explicit offset column; version 3 tables
			// derive the offset from the containing module's base.
			if log.TableVersion == 3 {
				base := log.Modules[mod.ContainingID].Base
				if mod.Base < base {
					return malformed(log.File, "module table", "module %d starts below its containing module %d", mod.ID, mod.ContainingID)
				}
				mod.SegmentOffset = mod.Base - base
			}
		}
	}
	return nil
}

func parseModuleLine(file string, tableVersion int, line string) (Module, error) {
	mod := Module{ContainingID: -1}
	fail := func() (Module, error) {
		return Module{}, malformed(file, "module table", "module line %q is invalid for table version %d", line, tableVersion)
	}

	parseHex := func(s string) uint64 {
		v, _ := strconv.ParseUint(s, 16, 64)
		return v
	}

	switch tableVersion {
	case 1:
		m := moduleV1RE.FindStringSubmatch(line)
		if m == nil {
			return fail()
		}
		mod.ID, _ = strconv.Atoi(m[1])
		size, _ := strconv.ParseUint(m[2], 10, 64)
		mod.End = size
		mod.Path = m[3]
	case 2:
		m := moduleV2RE.FindStringSubmatch(line)
		if m == nil {
			return fail()
		}
		mod.ID, _ = strconv.Atoi(m[1])
		mod.Base = parseHex(m[2])
		mod.End = parseHex(m[3])
		mod.Entry = parseHex(m[4])
		// m[5] and m[6] are the optional checksum and timestamp columns
		// written on some platforms; nothing downstream needs them.
		mod.Path = m[7]
	case 3, 4:
		re := moduleV3RE
		if tableVersion == 4 {
			re = moduleV4RE
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			return fail()
		}
		mod.ID, _ = strconv.Atoi(m[1])
		mod.ContainingID, _ = strconv.Atoi(m[2])
		mod.Base = parseHex(m[3])
		mod.End = parseHex(m[4])
		mod.Entry = parseHex(m[5])
		if tableVersion == 4 {
			mod.SegmentOffset = parseHex(m[6])
			mod.Path = m[7]
		} else {
			mod.Path = m[6]
		}
	default: // 5 and newer
		m := moduleV5RE.FindStringSubmatch(line)
		if m == nil {
			return fail()
		}
		mod.ID, _ = strconv.Atoi(m[1])
		mod.ContainingID, _ = strconv.Atoi(m[2])
		mod.Base = parseHex(m[3])
		mod.End = parseHex(m[4])
		mod.Entry = parseHex(m[5])
		mod.SegmentOffset = parseHex(m[6])
		// m[7] is the preferred base, unused once modules are loaded.
		mod.Path = m[8]
	}

	if mod.End < mod.Base {
		return Module{}, malformed(file, "module table", "module %d has end %#x below base %#x", mod.ID, mod.End, mod.Base)
	}
	return mod, nil
}

func parseBlockRecords(data []byte, count int, log *Log) error {
	if want := count * blockRecordSize; len(data) < want {
		return malformed(log.File, "block table", "truncated: want %d records (%d bytes), have %d bytes", count, want, len(data))
	}
	log.Hits = make([]BlockHit, 0, count)
	for i := 0; i < count; i++ {
		rec := data[i*blockRecordSize:]
		hit := BlockHit{
			Offset:   binary.LittleEndian.Uint32(rec[0:4]),
			Size:     binary.LittleEndian.Uint16(rec[4:6]),
			ModuleID: binary.LittleEndian.Uint16(rec[6:8]),
		}
		if int(hit.ModuleID) >= len(log.Modules) {
			return malformed(log.File, "block table", "record %d references module %d, table has %d entries", i, hit.ModuleID, len(log.Modules))
		}
		log.Hits = append(log.Hits, hit)
	}
	return nil
}
