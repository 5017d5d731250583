// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debuginfo

import (
	"debug/elf"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/GeorgeLS/drcov2lcov/elflib"
	"github.com/GeorgeLS/drcov2lcov/osmisc"
)

// debugFileDir is where distro packages install detached debug info.
const debugFileDir = "/usr/lib/debug"

// debugLinkCandidates lists the places a binary's detached debug file may
// live, in the order GDB searches them. modulePath is the path of the binary
// that carried the .gnu_debuglink section.
func debugLinkCandidates(modulePath, link string, buildIDs [][]byte) []string {
	var candidates []string
	if filepath.IsAbs(link) {
		candidates = append(candidates, link)
	}
	for _, id := range buildIDs {
		if len(id) < 2 {
			continue
		}
		hexID := hex.EncodeToString(id)
		candidates = append(candidates,
			filepath.Join(debugFileDir, ".build-id", hexID[:2], hexID[2:]+".debug"))
	}
	dir := filepath.Dir(modulePath)
	candidates = append(candidates,
		filepath.Join(dir, link),
		filepath.Join(dir, ".debug", link),
		filepath.Join(debugFileDir, dir, link))
	return candidates
}

// findDebugFile resolves the module's gnu_debuglink to an existing file with
// debug info, or returns an empty string if the binary has no link.
func findDebugFile(modulePath string, f *elf.File) (string, error) {
	link, ok := elflib.DebugLink(f)
	if !ok {
		return "", nil
	}
	buildIDs, err := elflib.GetBuildIDs(modulePath, f)
	if err != nil {
		return "", err
	}
	for _, candidate := range debugLinkCandidates(modulePath, link, buildIDs) {
		if exists, err := osmisc.FileExists(candidate); err == nil && exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("module %s: debug link %q not found: %w", modulePath, link, ErrNoDebugInfo)
}
