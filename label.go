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
	"sort"
	"strings"

	"shanhu.io/misc/errcode"
)

// Labels have the form "namespace:key:value". They are attached to a rule
// when it is declared and are visible to every rule that transitively
// depends on it, never the other way around.
func checkLabel(s string) error {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return errcode.InvalidArgf("label %q is not namespace:key:value", s)
	}
	for _, p := range parts[:2] {
		if p == "" {
			return errcode.InvalidArgf("label %q has an empty part", s)
		}
	}
	return nil
}

// AggregateLabels computes the set of labels visible across the transitive
// dependency closure of r, with r itself excluded. Labels are filtered by
// the namespace prefix, which is stripped from the returned values, and
// deduplicated.
//
// The result is ordered lexicographically on the full label string. This,
// not declaration order, is the canonical order: command lines synthesized
// from an aggregation must be reproducible no matter how the graph was
// declared. The function has no side effects and may run concurrently for
// independent rules.
func (g *Graph) AggregateLabels(r *Rule, prefix string) ([]string, error) {
	set := make(map[string]bool)
	seen := make(map[string]bool)

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		d := g.rules[name]
		for _, l := range d.Labels {
			if strings.HasPrefix(l, prefix) {
				set[l] = true
			}
		}
		deps, err := g.deps(d)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	deps, err := g.deps(r)
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		if err := visit(dep); err != nil {
			return nil, err
		}
	}

	var labels []string
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	if prefix != "" {
		for i, l := range labels {
			labels[i] = strings.TrimPrefix(l, prefix)
		}
	}
	return labels, nil
}
