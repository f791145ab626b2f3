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

	"github.com/kballard/go-shellquote"
	"shanhu.io/misc/errcode"
)

// GoLibrary declares a Go package compiled into an archive.
type GoLibrary struct {
	Name string
	Srcs []string
	Deps []string `json:",omitempty"`

	// ImportPath of the compiled package. Defaults to the workspace
	// import base joined with the rule name.
	ImportPath string `json:",omitempty"`
}

// GoBinary declares a linked Go executable.
type GoBinary struct {
	Name string
	Srcs []string
	Deps []string `json:",omitempty"`
}

// CgoLibrary declares a Go package with native interop: wrapped sources
// compile through the native compiler into an object file, the managed
// sources compile into an archive, and a merge rule folds the object into
// the archive so that downstream linking needs no awareness of the native
// step.
type CgoLibrary struct {
	Name  string
	Srcs  []string // Go sources.
	CSrcs []string // Native sources.
	Hdrs  []string `json:",omitempty"`
	Deps  []string `json:",omitempty"`
}

// goSrcNS is the label namespace where a library's source bundle
// publishes its own file list, keyed by the macro name. A test macro
// recompiles the library from these labels; see ExpandGoTest.
const goSrcNS = "go-src"

func goSrcLabels(name string, srcs []string) []string {
	var labels []string
	for _, src := range srcs {
		labels = append(labels, goSrcNS+":"+name+":"+src)
	}
	return labels
}

// goCompileCmds builds the per-variant compile command set for a Go
// archive.
func goCompileCmds(cfg *Config, imp, out string, srcs []string) Commands {
	join := func(flags ...string) string {
		args := []string{cfg.GoTool, "tool", "compile", "-p", imp, "-o", out}
		args = append(args, flags...)
		args = append(args, srcs...)
		return shellquote.Join(args...)
	}
	return Commands{
		Debug:     join("-N", "-l"),
		Optimized: join("-trimpath", "."),
		Coverage:  join("-cover"),
	}
}

// ExpandGoLibrary expands a Go library macro: a compile rule granting the
// "go" capability, plus a source bundle granting "go-src".
func ExpandGoLibrary(cfg *Config, r *GoLibrary) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("go library has no name")
	}
	if len(r.Srcs) == 0 {
		return nil, errcode.InvalidArgf("go library %q has no sources", r.Name)
	}
	imp := r.ImportPath
	if imp == "" {
		imp = path.Join(cfg.GoImportBase, r.Name)
	}

	srcName := r.Name + "_src"
	src := &Rule{
		Name:     srcName,
		Ins:      append([]string{}, r.Srcs...),
		Labels:   goSrcLabels(r.Name, r.Srcs),
		NoAction: true,
	}

	out := r.Name + ".a"
	lib := &Rule{
		Name:     r.Name,
		Ins:      append(append([]string{}, r.Srcs...), r.Deps...),
		Outs:     []string{out},
		Cmds:     goCompileCmds(cfg, imp, out, r.Srcs),
		Tools:    []string{cfg.GoTool},
		Requires: []string{CapGo},
		Provides: map[string]string{
			CapGo:    r.Name,
			CapGoSrc: srcName,
		},
	}
	return []*Rule{src, lib}, nil
}

// ExpandGoBinary expands a Go binary macro into a single compile-and-link
// rule. The rule requires the "go" capability from each dependency; which
// concrete rule delivers the archive is the dependency's business.
func ExpandGoBinary(cfg *Config, r *GoBinary) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("go binary has no name")
	}
	if len(r.Srcs) == 0 {
		return nil, errcode.InvalidArgf("go binary %q has no sources", r.Name)
	}

	obj := r.Name + ".o"
	compile := func(flags ...string) string {
		args := []string{
			cfg.GoTool, "tool", "compile", "-p", "main", "-o", obj,
		}
		args = append(args, flags...)
		args = append(args, r.Srcs...)
		return shellquote.Join(args...)
	}
	link := func(flags ...string) string {
		args := []string{cfg.GoTool, "tool", "link", "-o", r.Name}
		args = append(args, flags...)
		args = append(args, obj)
		return shellquote.Join(args...)
	}

	bin := &Rule{
		Name: r.Name,
		Ins:  append(append([]string{}, r.Srcs...), r.Deps...),
		Outs: []string{r.Name, obj},
		Cmds: Commands{
			Debug:     compile("-N", "-l") + " && " + link(),
			Optimized: compile("-trimpath", ".") + " && " + link("-s", "-w"),
			Coverage:  compile("-cover") + " && " + link(),
		},
		Tools:    []string{cfg.GoTool},
		Requires: []string{CapGo},
	}
	return []*Rule{bin}, nil
}

// ExpandCgoLibrary expands a native-interop Go library macro into three
// build rules plus a source bundle: the native object compile, the managed
// archive compile, and the merge that folds the object into the archive.
// The merge rule is the one granting "go", so consumers link the combined
// archive without knowing the native step exists.
func ExpandCgoLibrary(cfg *Config, r *CgoLibrary) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("cgo library has no name")
	}
	if len(r.Srcs) == 0 || len(r.CSrcs) == 0 {
		return nil, errcode.InvalidArgf(
			"cgo library %q needs both managed and native sources", r.Name,
		)
	}
	imp := path.Join(cfg.GoImportBase, r.Name)

	srcName := r.Name + "_src"
	var allSrcs []string
	allSrcs = append(allSrcs, r.Srcs...)
	allSrcs = append(allSrcs, r.CSrcs...)
	allSrcs = append(allSrcs, r.Hdrs...)
	src := &Rule{
		Name:     srcName,
		Ins:      allSrcs,
		Labels:   goSrcLabels(r.Name, r.Srcs),
		NoAction: true,
	}

	ccName := r.Name + "_c"
	ccOut := r.Name + "_c.o"
	ccCompile := func(flags ...string) string {
		args := []string{cfg.CC}
		args = append(args, flags...)
		args = append(args, "-c", "-o", ccOut)
		args = append(args, r.CSrcs...)
		return shellquote.Join(args...)
	}
	cc := &Rule{
		Name: ccName,
		Ins:  append(append([]string{}, r.CSrcs...), r.Hdrs...),
		Outs: []string{ccOut},
		Cmds: Commands{
			Debug:     ccCompile("-g"),
			Optimized: ccCompile("-O2"),
			Coverage:  ccCompile("--coverage"),
		},
		Tools: []string{cfg.CC},
	}

	goName := r.Name + "_go"
	goOut := r.Name + "_go.a"
	goRule := &Rule{
		Name:     goName,
		Ins:      append(append([]string{}, r.Srcs...), r.Deps...),
		Outs:     []string{goOut},
		Cmds:     goCompileCmds(cfg, imp, goOut, r.Srcs),
		Tools:    []string{cfg.GoTool},
		Requires: []string{CapGo},
	}

	out := r.Name + ".a"
	merge := &Rule{
		Name: r.Name,
		Ins:  []string{goName, ccName},
		Outs: []string{out},
		Cmds: Commands{Optimized: shellquote.Join("cp", goOut, out) +
			" && " + shellquote.Join(cfg.AR, "r", out, ccOut)},
		Tools: []string{cfg.AR},
		Provides: map[string]string{
			CapGo:    r.Name,
			CapGoSrc: srcName,
		},
	}
	return []*Rule{src, cc, goRule, merge}, nil
}
