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
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
)

// Action is one primitive tool invocation, handed to a Runner once the
// rule's pre-build hook has committed the final command line.
type Action struct {
	Rule  string
	Cmd   string // Shell command line for the selected variant.
	Ins   []string
	Outs  []string
	Tools []string
}

// Result carries the textual output of a finished action. Post-build hooks
// read it to discover outputs or rewrite commands.
type Result struct {
	Out []string // Standard output, one entry per line.
}

// Runner executes actions. Implementations must be safe for concurrent use;
// the executor dispatches independent rules in parallel.
type Runner interface {
	Run(ctx context.Context, a *Action) (*Result, error)
}

// ExecRunner runs actions locally through the shell.
type ExecRunner struct {
	Dir string // Working directory; empty for the current one.
}

// Run executes the action's command line with "sh -c" and captures its
// standard output.
func (x *ExecRunner) Run(ctx context.Context, a *Action) (*Result, error) {
	if a.Cmd == "" {
		return nil, errcode.InvalidArgf("action of %q has no command", a.Rule)
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", a.Cmd)
	cmd.Dir = x.Dir

	out := new(bytes.Buffer)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	osutil.CmdCopyEnv(cmd, "HOME")
	osutil.CmdCopyEnv(cmd, "PATH")

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return &Result{Out: splitOutputLines(out.String())}, nil
}

func splitOutputLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
