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
	"context"
	"os"
	"path"
	"path/filepath"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/tarutil"
	"shanhu.io/virgo/dock"
)

// DockRunner runs actions inside a toolchain container, so builds do not
// depend on the tools installed on the host.
type DockRunner struct {
	client *dock.Client
	image  string
	srcDir string // Host directory holding source inputs.
	outDir string // Host directory receiving outputs.
}

const (
	dockWorkDir = "/weld"
	dockOutFile = "/tmp/weld.stdout"
)

// dockShellCmd wraps a command line so that its standard output lands in a
// file rather than the container log stream. Container logs multiplex
// stdout and stderr, and post-build hooks parse action output line by
// line, so a tool warning must never leak into it.
func dockShellCmd(cmd string) []string {
	return []string{"/bin/sh", "-c", "exec >" + dockOutFile + "; " + cmd}
}

// NewDockRunner creates a runner that executes each action in a fresh
// container of the given image.
func NewDockRunner(client *dock.Client, image, srcDir, outDir string) *DockRunner {
	return &DockRunner{
		client: client,
		image:  image,
		srcDir: srcDir,
		outDir: outDir,
	}
}

// Run copies the action's inputs into a new container, runs the command
// line, streams its logs, and copies the declared outputs back out.
func (d *DockRunner) Run(ctx context.Context, a *Action) (*Result, error) {
	if a.Cmd == "" {
		return nil, errcode.InvalidArgf("action of %q has no command", a.Rule)
	}

	contConfig := &dock.ContConfig{
		Cmd:     dockShellCmd(a.Cmd),
		WorkDir: dockWorkDir,
	}
	cont, err := dock.CreateCont(d.client, d.image, contConfig)
	if err != nil {
		return nil, errcode.Annotate(err, "create container")
	}
	defer cont.Drop()

	if len(a.Ins) > 0 {
		ts := tarutil.NewStream()
		for _, in := range a.Ins {
			f := filepath.Join(d.srcDir, filepath.FromSlash(in))
			ts.AddFile(path.Join(dockWorkDir, in), new(tarutil.Meta), f)
		}
		if err := dock.CopyInTarStream(cont, ts, "/"); err != nil {
			return nil, errcode.Annotate(err, "copy input")
		}
	}

	if err := cont.Start(); err != nil {
		return nil, errcode.Annotate(err, "start container")
	}

	// Logs now carry only stderr; forward them for display.
	if err := cont.FollowLogs(os.Stderr); err != nil {
		return nil, errcode.Annotate(err, "stream logs")
	}
	status, err := cont.Wait(dock.NotRunning)
	if err != nil {
		return nil, errcode.Annotate(err, "wait container")
	}
	if status != 0 {
		return nil, errcode.Internalf("exit with %d", status)
	}

	for _, out := range a.Outs {
		to := filepath.Join(d.outDir, filepath.FromSlash(out))
		from := path.Join(dockWorkDir, out)
		if err := cont.CopyOutFile(from, to); err != nil {
			return nil, errcode.Annotatef(err, "copy %s", out)
		}
	}

	stdout, err := d.copyOutStdout(cont)
	if err != nil {
		return nil, errcode.Annotate(err, "copy action output")
	}
	return &Result{Out: splitOutputLines(stdout)}, nil
}

func (d *DockRunner) copyOutStdout(cont *dock.Cont) (string, error) {
	tmp, err := os.CreateTemp("", "weld-stdout-*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := cont.CopyOutFile(dockOutFile, name); err != nil {
		return "", err
	}
	bs, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
