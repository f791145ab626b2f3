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
	"path"
	"sort"
	"strings"

	"shanhu.io/misc/errcode"
)

// Patch is the result of a post-build hook. It is applied to the rule the
// hook was registered on, immediately after the rule's first and only
// action execution.
type Patch struct {
	// Outs are newly discovered output paths. Valid only for rules whose
	// outputs were declared pending.
	Outs []string

	// Cmds, when non-nil, replaces the rule's own command set for
	// subsequent builds.
	Cmds Commands

	// Paired, when non-nil, replaces the command set of the rule's
	// declared paired rule. The paired rule directly depends on this
	// one, so it cannot have been scheduled yet.
	Paired Commands
}

// checkOutPath validates the naming convention for output paths: a cleaned,
// slash-separated relative path that stays inside the output tree.
func checkOutPath(p string) error {
	if p == "" {
		return errcode.InvalidArgf("output path is empty")
	}
	if path.IsAbs(p) {
		return errcode.InvalidArgf("output path %q is absolute", p)
	}
	if p != path.Clean(p) {
		return errcode.InvalidArgf("output path %q is not clean", p)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return errcode.InvalidArgf("output path %q escapes the output", p)
	}
	return nil
}

// ParseOutputLines turns raw action output into a set of discovered output
// paths, one per line by convention. Blank lines are dropped, duplicates
// collapse, and the result is sorted, so parsing the same output twice
// always yields the same set.
func ParseOutputLines(lines []string) []string {
	set := make(map[string]bool)
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		set[s] = true
	}
	var outs []string
	for s := range set {
		outs = append(outs, s)
	}
	sort.Strings(outs)
	return outs
}

// runPreBuild executes the rule's pre-build hook, if any. The caller must
// guarantee that every dependency of the rule has already committed, so
// that the label aggregation the hook observes is complete and final.
func (g *Graph) runPreBuild(r *Rule) error {
	if r.PreBuild == nil {
		return nil
	}
	labels, err := g.AggregateLabels(r, r.PreBuildLabels)
	if err != nil {
		return errcode.Annotatef(err, "aggregate labels for %q", r.Name)
	}
	cmds, err := r.PreBuild(r, labels)
	if err != nil {
		return errcode.Annotatef(err, "pre-build of %q", r.Name)
	}
	if cmds != nil {
		r.Cmds = cmds
	}
	return nil
}

// runPostBuild executes the rule's post-build hook, if any, and applies the
// returned patch. It runs exactly once per rule, strictly after the rule's
// action succeeded.
func (g *Graph) runPostBuild(r *Rule, output []string) error {
	if r.PostBuild == nil {
		return nil
	}
	if r.committed {
		return errcode.Internalf("post-build of %q ran twice", r.Name)
	}
	r.committed = true

	p, err := r.PostBuild(r, output)
	if err != nil {
		return errcode.Annotatef(err, "post-build of %q", r.Name)
	}
	if p == nil {
		if r.PendingOuts {
			return errcode.Internalf(
				"outputs of %q are still pending after post-build", r.Name,
			)
		}
		return nil
	}

	if len(p.Outs) > 0 {
		if !r.PendingOuts {
			return errcode.InvalidArgf(
				"post-build of %q adds outputs to a fixed output set",
				r.Name,
			)
		}
		seen := make(map[string]bool)
		for _, out := range p.Outs {
			if seen[out] {
				continue
			}
			seen[out] = true
			if err := g.claimOut(out, r.Name); err != nil {
				return err
			}
			r.Outs = append(r.Outs, out)
		}
	}
	if r.PendingOuts {
		r.PendingOuts = false
	}

	if p.Cmds != nil {
		r.Cmds = p.Cmds
	}
	if p.Paired != nil {
		if r.Paired == "" {
			return errcode.InvalidArgf(
				"post-build of %q rewrites a paired rule, "+
					"but none is declared", r.Name,
			)
		}
		paired := g.rules[r.Paired]
		if paired == nil {
			return errcode.Internalf(
				"paired rule %q of %q not found", r.Paired, r.Name,
			)
		}
		paired.Cmds = p.Paired
	}
	return nil
}
