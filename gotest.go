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
	"strings"

	"github.com/kballard/go-shellquote"
	"shanhu.io/misc/errcode"
)

// GoTest declares a test binary for a Go library. The library is recompiled
// together with the test sources under a distinct output name, and a test
// entry-point file is synthesized.
type GoTest struct {
	Name string
	Srcs []string // Test sources.
	Lib  string   // The library macro under test.
	Deps []string `json:",omitempty"`

	// Package is the declared package identity of the recompiled
	// library. Defaults to the base name of Lib. The real identity is
	// discovered from the entry-point generator's output; on a mismatch
	// the link commands are reissued with a rename step.
	Package string `json:",omitempty"`

	// Mock weakens the symbols of the recompiled archive so that tests
	// can override them.
	Mock bool `json:",omitempty"`
}

// ExpandGoTest expands a Go test macro into the library recompile, the
// entry-point synthesis, and the test binary link.
func ExpandGoTest(cfg *Config, r *GoTest) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("go test has no name")
	}
	if r.Lib == "" {
		return nil, errcode.InvalidArgf("go test %q has no library", r.Name)
	}
	declared := r.Package
	if declared == "" {
		declared = path.Base(r.Lib)
	}

	// Recompile the library together with the test sources under a
	// distinct output name. The library's raw sources arrive through its
	// "go-src" grant, and their names through the source bundle's labels;
	// the full compile line is synthesized in the pre-build hook, once
	// the closure is committed and the label aggregation is final.
	libName := r.Name + "_lib"
	libOut := libName + ".a"
	lib := &Rule{
		Name: libName,
		Ins: append(append(append([]string{},
			r.Srcs...), r.Lib), r.Deps...),
		Outs:           []string{libOut},
		Cmds:           goTestLibCmds(cfg, declared, libOut, r.Srcs, r.Mock),
		Tools:          []string{cfg.GoTool},
		Requires:       []string{CapGoSrc, CapGo},
		PreBuild:       goTestRecompile(cfg, declared, libOut, r.Srcs, r.Mock),
		PreBuildLabels: goSrcNS + ":" + r.Lib + ":",
	}
	if r.Mock {
		lib.Tools = append(lib.Tools, cfg.Objcopy)
	}

	// The test binary: compile the synthesized entry point and link it
	// against the recompiled archive.
	obj := r.Name + "_main.o"
	mainOut := r.Name + "_testmain.go"
	compile := func(flags ...string) string {
		args := []string{
			cfg.GoTool, "tool", "compile", "-p", "main", "-o", obj, "-I", ".",
		}
		args = append(args, flags...)
		args = append(args, mainOut)
		return shellquote.Join(args...)
	}
	link := func() string {
		return shellquote.Join(
			cfg.GoTool, "tool", "link", "-L", ".", "-o", r.Name, obj, libOut,
		)
	}
	binCmds := Commands{
		Debug:     compile("-N", "-l") + " && " + link(),
		Optimized: compile() + " && " + link(),
		Coverage:  compile("-cover") + " && " + link(),
	}

	// Synthesize the entry point. The generator reports the package
	// identity it found in the test sources with a "Package: <name>"
	// line; the post-build hook compares it against the declared
	// identity and, if they differ, reissues its own command and the
	// paired link command with the corrected name.
	mainName := r.Name + "_main"
	mainArgs := []string{cfg.TestMain, "-o", mainOut, "-p", declared}
	mainArgs = append(mainArgs, r.Srcs...)
	main := &Rule{
		Name:      mainName,
		Ins:       append(append([]string{}, r.Srcs...), libName),
		Outs:      []string{mainOut},
		Cmds:      Commands{Optimized: shellquote.Join(mainArgs...)},
		Tools:     []string{cfg.TestMain},
		Paired:    r.Name,
		PostBuild: goTestPackageFix(declared, libOut, binCmds.clone()),
	}

	bin := &Rule{
		Name:  r.Name,
		Ins:   []string{libName, mainName},
		Outs:  []string{r.Name, obj},
		Cmds:  binCmds,
		Tools: []string{cfg.GoTool},
	}
	return []*Rule{lib, main, bin}, nil
}

// goTestLibCmds builds the recompile command set for a test library
// archive, with the optional symbol-weakening step for mock overrides.
func goTestLibCmds(
	cfg *Config, pkg, out string, srcs []string, mock bool,
) Commands {
	cmds := goCompileCmds(cfg, pkg, out, srcs)
	if mock {
		weaken := shellquote.Join(cfg.Objcopy, "--weaken", out)
		for v, c := range cmds {
			cmds[v] = c + " && " + weaken
		}
	}
	return cmds
}

// goTestRecompile is the pre-build hook of the recompile rule. The
// library's own source files are known only through the labels of its
// source bundle, so the final compile line, covering the library sources
// and the test sources together, is committed here.
func goTestRecompile(
	cfg *Config, pkg, out string, testSrcs []string, mock bool,
) PreBuildFunc {
	return func(r *Rule, labels []string) (Commands, error) {
		if len(labels) == 0 {
			return nil, nil
		}
		srcs := append(append([]string{}, labels...), testSrcs...)
		return goTestLibCmds(cfg, pkg, out, srcs, mock), nil
	}
}

// goTestPackageFix is the canonical post-build command rewrite: the
// entry-point generator is the only place the recompiled library's real
// package identity surfaces, and by then both the generator's own command
// and the paired binary's link command were synthesized from the declared
// identity.
func goTestPackageFix(
	declared, libOut string, binCmds Commands,
) PostBuildFunc {
	return func(r *Rule, output []string) (*Patch, error) {
		pkg := ""
		for _, line := range output {
			if s := strings.TrimPrefix(line, "Package: "); s != line {
				pkg = strings.TrimSpace(s)
			}
		}
		if pkg == "" {
			return nil, errcode.InvalidArgf(
				"action of %q did not report the test package", r.Name,
			)
		}
		if pkg == declared {
			return nil, nil
		}

		own := make(Commands, len(r.Cmds))
		for v, c := range r.Cmds {
			own[v] = strings.ReplaceAll(c, "-p "+declared, "-p "+pkg)
		}

		fixed := pkg + ".a"
		rename := shellquote.Join("mv", libOut, fixed)
		paired := make(Commands, len(binCmds))
		for v, c := range binCmds {
			paired[v] = rename + " && " + strings.ReplaceAll(c, libOut, fixed)
		}
		return &Patch{Cmds: own, Paired: paired}, nil
	}
}
