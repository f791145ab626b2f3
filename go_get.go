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
	"fmt"
	"net/url"
	"strings"

	"github.com/kballard/go-shellquote"
	"shanhu.io/misc/errcode"
)

// GoGet declares an external Go package fetch, pinned to a version and a
// checksum.
type GoGet struct {
	Name     string
	Get      string // Module path to fetch.
	Version  string
	Checksum string // "sha256:..." of the module zip.
}

// ExpandGoGet expands an external package fetch into one download rule
// that verifies the pinned checksum and grants the "go" capability.
func ExpandGoGet(cfg *Config, r *GoGet) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("go get has no name")
	}
	if r.Get == "" || r.Version == "" {
		return nil, errcode.InvalidArgf(
			"go get %q needs a module path and a version", r.Name,
		)
	}
	const sha256Prefix = "sha256:"
	if !strings.HasPrefix(r.Checksum, sha256Prefix) {
		return nil, errcode.InvalidArgf(
			"checksum of %q is not sha256", r.Name,
		)
	}
	sum := strings.TrimPrefix(r.Checksum, sha256Prefix)

	u, err := url.Parse(cfg.GoProxy)
	if err != nil {
		return nil, errcode.Annotate(err, "invalid module proxy")
	}
	u.Path = fmt.Sprintf("/%s/@v/%s.zip", r.Get, r.Version)

	out := r.Name + ".zip"
	fetch := shellquote.Join("curl", "-fsSL", "-o", out, u.String())
	verify := shellquote.Join("echo", sum+"  "+out) + " | sha256sum -c -"

	rule := &Rule{
		Name:     r.Name,
		Outs:     []string{out},
		Cmds:     Commands{Optimized: fetch + " && " + verify},
		Tools:    []string{"curl", "sha256sum"},
		Provides: map[string]string{CapGo: r.Name},
	}
	return []*Rule{rule}, nil
}
