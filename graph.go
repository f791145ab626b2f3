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
	"sync"

	"shanhu.io/misc/errcode"
)

// Graph holds the primitive rules of one build. Rules are added while the
// build description is expanded, before anything executes; during execution
// the graph is read-only except for the patches applied by post-build hooks.
type Graph struct {
	rules map[string]*Rule
	names []string // Registration order.

	mu   sync.Mutex
	outs map[string]string // Output path -> producing rule.
}

// NewGraph creates an empty rule graph.
func NewGraph() *Graph {
	return &Graph{
		rules: make(map[string]*Rule),
		outs:  make(map[string]string),
	}
}

// Add registers a rule. It validates the rule's structural invariants and
// claims its declared outputs.
func (g *Graph) Add(r *Rule) error {
	if r.Name == "" {
		return errcode.InvalidArgf("rule name is empty")
	}
	if _, ok := g.rules[r.Name]; ok {
		return errcode.InvalidArgf("rule %q redeclared", r.Name)
	}
	if r.PendingOuts && r.PostBuild == nil {
		return errcode.InvalidArgf(
			"rule %q has pending outputs but no post-build hook", r.Name,
		)
	}
	if r.PendingOuts && len(r.Outs) > 0 {
		return errcode.InvalidArgf(
			"rule %q declares outputs and marks them pending", r.Name,
		)
	}
	if r.Paired != "" && r.PostBuild == nil {
		return errcode.InvalidArgf(
			"rule %q declares a paired rule but no post-build hook", r.Name,
		)
	}
	if r.NoAction && (r.PendingOuts || len(r.Cmds) > 0) {
		return errcode.InvalidArgf(
			"zero-action rule %q carries a command or pending outputs",
			r.Name,
		)
	}
	for cap := range r.Provides {
		if err := checkCapability(cap); err != nil {
			return errcode.Annotatef(err, "provides of rule %q", r.Name)
		}
	}
	for _, cap := range r.Requires {
		if err := checkCapability(cap); err != nil {
			return errcode.Annotatef(err, "requires of rule %q", r.Name)
		}
	}
	for _, l := range r.Labels {
		if err := checkLabel(l); err != nil {
			return errcode.Annotatef(err, "labels of rule %q", r.Name)
		}
	}
	for _, out := range r.Outs {
		if err := g.claimOut(out, r.Name); err != nil {
			return err
		}
	}

	g.rules[r.Name] = r
	g.names = append(g.names, r.Name)
	return nil
}

// AddAll registers a list of rules, stopping at the first error.
func (g *Graph) AddAll(rules []*Rule) error {
	for _, r := range rules {
		if err := g.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// Rule returns the rule of the given name, or nil.
func (g *Graph) Rule(name string) *Rule { return g.rules[name] }

// Rules returns all rules in registration order.
func (g *Graph) Rules() []*Rule {
	var rules []*Rule
	for _, name := range g.names {
		rules = append(rules, g.rules[name])
	}
	return rules
}

func (g *Graph) claimOut(out, rule string) error {
	if err := checkOutPath(out); err != nil {
		return errcode.Annotatef(err, "output of rule %q", rule)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.outs[out]; ok {
		return &DuplicateOutput{Out: out, Rule: rule, Prev: prev}
	}
	g.outs[out] = rule
	return nil
}

// deps returns the resolved rule dependencies of r, in a deterministic
// order. An input that names a registered rule with a grant map is resolved
// through the rule's required capabilities; every other rule input is a
// direct dependency. Tools that name rules are direct dependencies as well.
func (g *Graph) deps(r *Rule) ([]string, error) {
	var deps []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}

	for _, in := range r.Ins {
		d, ok := g.rules[in]
		if !ok {
			continue // Plain source file.
		}
		if len(d.Provides) == 0 || len(r.Requires) == 0 {
			add(d.Name)
			continue
		}
		// At least one of the required capabilities must resolve;
		// every resolving grant contributes an edge.
		matched := false
		for _, cap := range r.Requires {
			ref, err := g.Resolve(cap, d)
			if err != nil {
				continue
			}
			add(ref.Name)
			matched = true
		}
		if !matched {
			return nil, &UnsatisfiedCapability{
				Consumer:     r.Name,
				Dep:          d.Name,
				Capabilities: append([]string{}, r.Requires...),
			}
		}
	}
	for _, t := range r.Tools {
		if _, ok := g.rules[t]; ok {
			add(t)
		}
	}
	return deps, nil
}

// Check validates the graph as a whole: capability grants point at
// registered rules, required capabilities resolve, paired rules directly
// depend on their mutators, and the dependency relation is acyclic.
func (g *Graph) Check() error {
	for _, name := range g.names {
		r := g.rules[name]
		for cap, ref := range r.Provides {
			if _, ok := g.rules[ref]; !ok {
				return errcode.InvalidArgf(
					"rule %q grants %q via unknown rule %q",
					r.Name, cap, ref,
				)
			}
		}
		if _, err := g.deps(r); err != nil {
			return err
		}
		if r.Paired != "" {
			p, ok := g.rules[r.Paired]
			if !ok {
				return errcode.InvalidArgf(
					"paired rule %q of %q not found", r.Paired, r.Name,
				)
			}
			deps, err := g.deps(p)
			if err != nil {
				return err
			}
			if !contains(deps, r.Name) {
				return errcode.InvalidArgf(
					"paired rule %q does not depend on %q",
					r.Paired, r.Name,
				)
			}
		}
	}
	return g.checkCycles()
}

// checkCycles walks the dependency relation depth-first, keeping the
// current path so that a cycle is reported with its full trace.
func (g *Graph) checkCycles() error {
	done := make(map[string]bool)
	tracer := newDepTracer()

	var visit func(name string) error
	visit = func(name string) error {
		if done[name] {
			return nil
		}
		if !tracer.push(name) {
			return errcode.InvalidArgf(
				"circular dependency: %s", tracer.cycle(name),
			)
		}
		defer tracer.pop()

		deps, err := g.deps(g.rules[name])
		if err != nil {
			return err
		}
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		done[name] = true
		return nil
	}

	for _, name := range g.names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
