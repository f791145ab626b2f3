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

// Build file macro type names.
const (
	macroGoLibrary    = "go_library"
	macroGoBinary     = "go_binary"
	macroGoTest       = "go_test"
	macroCgoLibrary   = "cgo_library"
	macroProtoLibrary = "proto_library"
	macroGrpcLibrary  = "grpc_library"
	macroGoGet        = "go_get"
	macroBundle       = "bundle"
)

func makeBuildFileNode(t string) interface{} {
	switch t {
	case macroGoLibrary:
		return new(GoLibrary)
	case macroGoBinary:
		return new(GoBinary)
	case macroGoTest:
		return new(GoTest)
	case macroCgoLibrary:
		return new(CgoLibrary)
	case macroProtoLibrary:
		return new(ProtoLibrary)
	case macroGrpcLibrary:
		return new(GrpcLibrary)
	case macroGoGet:
		return new(GoGet)
	case macroBundle:
		return new(Bundle)
	}
	return nil
}

// expandMacro expands one parsed build-file declaration into primitive
// rules.
func expandMacro(cfg *Config, v interface{}) ([]*Rule, error) {
	switch m := v.(type) {
	case *GoLibrary:
		return ExpandGoLibrary(cfg, m)
	case *GoBinary:
		return ExpandGoBinary(cfg, m)
	case *GoTest:
		return ExpandGoTest(cfg, m)
	case *CgoLibrary:
		return ExpandCgoLibrary(cfg, m)
	case *ProtoLibrary:
		return ExpandProtoLibrary(cfg, m)
	case *GrpcLibrary:
		return ExpandGrpcLibrary(cfg, m)
	case *GoGet:
		return ExpandGoGet(cfg, m)
	case *Bundle:
		return ExpandBundle(cfg, m)
	}
	return nil, errcode.InvalidArgf("unknown macro type %T", v)
}
