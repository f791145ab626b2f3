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
	"strings"
)

// UnsatisfiedCapability reports that a consumer requested capabilities
// absent from a dependency's grant map. Capabilities lists everything the
// consumer tried against the dependency. It is detected when the graph is
// constructed, never at run time.
type UnsatisfiedCapability struct {
	Consumer     string // Name of the requesting rule; may be empty.
	Dep          string // Name of the dependency that lacks the grant.
	Capabilities []string
}

func (e *UnsatisfiedCapability) Error() string {
	caps := strings.Join(e.Capabilities, ", ")
	if e.Consumer == "" {
		return fmt.Sprintf(
			"dependency %q does not provide capability %q", e.Dep, caps,
		)
	}
	return fmt.Sprintf(
		"rule %q requires %s, but dependency %q provides none of it",
		e.Consumer, caps, e.Dep,
	)
}

// UnknownLanguage reports a macro invocation naming an unsupported target
// language. It is detected before any rule is emitted.
type UnknownLanguage struct {
	Name string // Name of the macro invocation.
	Lang string
}

func (e *UnknownLanguage) Error() string {
	return fmt.Sprintf("rule %q requests unknown language %q", e.Name, e.Lang)
}

// DuplicateOutput reports two rules claiming the same output path, either at
// declaration time or when a post-build hook discovers outputs.
type DuplicateOutput struct {
	Out  string
	Rule string // The rule whose claim failed.
	Prev string // The rule that already owns the output.
}

func (e *DuplicateOutput) Error() string {
	return fmt.Sprintf(
		"output %q of rule %q already produced by %q",
		e.Out, e.Rule, e.Prev,
	)
}

// ActionFailure wraps a failed tool invocation. The failure is fatal for the
// rule and propagates to its entire transitive dependent closure.
type ActionFailure struct {
	Rule string
	Err  error
}

func (e *ActionFailure) Error() string {
	return fmt.Sprintf("action of rule %q failed: %s", e.Rule, e.Err)
}

func (e *ActionFailure) Unwrap() error { return e.Err }
