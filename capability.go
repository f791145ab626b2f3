// Copyright (C) 2023  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package weld

import (
	"shanhu.io/misc/errcode"
)

// Capabilities are named deliverable categories. A dependency declares the
// capability it wants rather than the concrete rule that produces it, so
// that one macro invocation can hand out a different rule per requested
// language. The set of capability names is closed; Graph.Add rejects grants
// outside this registry.
const (
	CapSource = "source"  // Raw input files of a macro.
	CapSchema = "schema"  // Schema source set of a proto macro.
	CapGo     = "go"      // Compiled Go archive.
	CapGoSrc  = "go-src"  // Raw Go source tree.
	CapCC     = "cc"      // Compiled native archive.
	CapCCHdrs = "cc-hdrs" // Generated native headers.
	CapPy     = "py"      // Python library bundle.
	CapJava   = "java"    // Java jar.
	CapJS     = "js"      // JavaScript bundle.
)

var capRegistry = map[string]bool{
	CapSource: true,
	CapSchema: true,
	CapGo:     true,
	CapGoSrc:  true,
	CapCC:     true,
	CapCCHdrs: true,
	CapPy:     true,
	CapJava:   true,
	CapJS:     true,
}

func checkCapability(c string) error {
	if c == "" {
		return errcode.InvalidArgf("capability name is empty")
	}
	if !capRegistry[c] {
		return errcode.InvalidArgf("unknown capability %q", c)
	}
	return nil
}
