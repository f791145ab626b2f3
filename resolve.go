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

// Resolve maps a required capability against a dependency's grant map and
// returns the concrete rule that satisfies it. A dependency with an empty
// grant map satisfies only a direct reference to itself; this is how plain
// file collections are depended on. Resolution is a pure function of graph
// state: the same pair always yields the same rule within one build.
func (g *Graph) Resolve(cap string, dep *Rule) (*Rule, error) {
	if dep == nil {
		return nil, errcode.InvalidArgf("dependency rule is nil")
	}
	if len(dep.Provides) == 0 {
		return dep, nil
	}
	ref, ok := dep.Provides[cap]
	if !ok {
		return nil, &UnsatisfiedCapability{
			Dep:          dep.Name,
			Capabilities: []string{cap},
		}
	}
	r, ok := g.rules[ref]
	if !ok {
		return nil, errcode.Internalf(
			"rule %q grants %q via unknown rule %q", dep.Name, cap, ref,
		)
	}
	return r, nil
}
