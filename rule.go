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
	"github.com/kballard/go-shellquote"
)

// Variant selects which of a rule's command lines to execute.
type Variant string

// The supported build variants.
const (
	Debug     Variant = "debug"
	Optimized Variant = "opt"
	Coverage  Variant = "cover"
)

// Commands maps build variants to command lines. A command line is a
// shell-quoted string; steps within one command are joined with " && ".
type Commands map[Variant]string

// For returns the command line for the given variant. When the variant has
// no dedicated command line, it falls back to the optimized one, which is
// the default for rules that do not vary per build variant.
func (c Commands) For(v Variant) string {
	if s, ok := c[v]; ok {
		return s
	}
	return c[Optimized]
}

func (c Commands) clone() Commands {
	if c == nil {
		return nil
	}
	n := make(Commands, len(c))
	for v, s := range c {
		n[v] = s
	}
	return n
}

// SingleCommand returns a command set that runs the same command line under
// every build variant.
func SingleCommand(args ...string) Commands {
	return Commands{Optimized: shellquote.Join(args...)}
}

// PreBuildFunc is a pre-build hook. It runs strictly after every dependency
// of the rule has committed and strictly before the rule's action is
// dispatched. labels is the aggregation of the rule's label namespace over
// its transitive dependency closure. A non-nil result replaces the rule's
// command set. The hook must not touch the rule's inputs or outputs; those
// are already fixed for scheduling.
type PreBuildFunc func(r *Rule, labels []string) (Commands, error)

// PostBuildFunc is a post-build hook. It runs strictly after the rule's
// action exits successfully, exactly once per build, and returns a patch to
// apply to the rule (and possibly to its declared paired rule). A nil patch
// leaves the rule unchanged.
type PostBuildFunc func(r *Rule, output []string) (*Patch, error)

// Rule is a primitive node in the build graph.
type Rule struct {
	// Name uniquely identifies the rule in its graph.
	Name string

	// Ins lists the rule's inputs, in declaration order. An entry that
	// names a registered rule is a dependency reference, subject to
	// capability resolution; any other entry is a plain source file.
	Ins []string

	// Outs lists the rule's output paths. When PendingOuts is set the
	// list starts empty and is populated exactly once by the rule's
	// post-build hook.
	Outs        []string
	PendingOuts bool

	// Cmds holds the command line per build variant. Empty for
	// zero-action rules.
	Cmds Commands

	// Tools lists executables the command needs. An entry that names a
	// registered rule becomes a direct dependency.
	Tools []string

	// Labels are namespaced "namespace:key:value" tags, visible to every
	// rule that transitively depends on this one.
	Labels []string

	// Requires lists the capabilities this rule wants from its rule
	// dependencies.
	Requires []string

	// Provides maps a capability to the name of the rule that satisfies
	// it. An empty map means the rule satisfies only a direct reference
	// to itself.
	Provides map[string]string

	// Paired names the one rule whose command this rule's post-build
	// hook may rewrite. The paired rule must directly depend on this
	// rule.
	Paired string

	// NoAction marks pure aggregation rules, such as facades and source
	// collections. They carry no command and complete immediately.
	NoAction bool

	PreBuild PreBuildFunc
	// PreBuildLabels is the label namespace prefix aggregated for the
	// pre-build hook. Empty aggregates every label.
	PreBuildLabels string

	PostBuild PostBuildFunc

	// committed is set once the post-build patch has been applied. A
	// rule mutates at most once.
	committed bool
}
