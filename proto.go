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
	"path"
	"strings"

	"github.com/kballard/go-shellquote"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/strutil"
)

// Schema compilation target languages.
const (
	LangCC   = "cc"
	LangGo   = "go"
	LangJS   = "js"
	LangJava = "java"
	LangPy   = "py"
)

var protoLangs = map[string]bool{
	LangCC:   true,
	LangGo:   true,
	LangJS:   true,
	LangJava: true,
	LangPy:   true,
}

// protoSuffixes is the closed per-language table of generated-file suffixes
// the schema compiler emits. This table is part of the external contract; a
// nil entry means the language's output filenames depend on the package
// declared inside the schema and are discovered post-build.
var protoSuffixes = map[string][]string{
	LangCC:   {".pb.cc", ".pb.h"},
	LangGo:   {".pb.go"},
	LangJS:   {"_pb.js"},
	LangJava: nil,
	LangPy:   {"_pb2.py"},
}

// ProtoGenSuffixes returns the generated-file suffixes for a language, and
// whether the language's outputs are statically known. The returned slice
// must not be modified.
func ProtoGenSuffixes(lang string) (suffixes []string, static bool) {
	s, ok := protoSuffixes[lang]
	return s, ok && s != nil
}

var protoOutFlags = map[string]string{
	LangCC:   "--cpp_out",
	LangGo:   "--go_out",
	LangJS:   "--js_out",
	LangJava: "--java_out",
	LangPy:   "--python_out",
}

// protoGoMapNS is the label namespace that schema-bearing rules use to
// publish the mapping from their schema path to the import path of their
// generated Go package.
const protoGoMapNS = "proto:go-map:"

// ProtoLibrary declares a schema library compiled into one or more target
// languages.
type ProtoLibrary struct {
	Name string

	// Srcs are the schema source files.
	Srcs []string

	// Languages to compile for. Empty means every language enabled in
	// the workspace.
	Languages []string `json:",omitempty"`

	// Deps name other schema macros this one imports from.
	Deps []string `json:",omitempty"`

	// LangDeps adds per-language dependencies to the compiled artifact.
	LangDeps map[string][]string `json:",omitempty"`
}

// GrpcLibrary is a ProtoLibrary whose generated code includes RPC service
// stubs. It differs from the plain schema macro only in wiring the
// per-language codegen plugin into the schema compiler.
type GrpcLibrary struct {
	Name      string
	Srcs      []string
	Languages []string            `json:",omitempty"`
	Deps      []string            `json:",omitempty"`
	LangDeps  map[string][]string `json:",omitempty"`
}

// ExpandProtoLibrary expands a schema library macro into primitive rules.
// The last rule returned is the facade.
func ExpandProtoLibrary(cfg *Config, r *ProtoLibrary) ([]*Rule, error) {
	return expandProto(
		cfg, r.Name, r.Srcs, r.Languages, r.Deps, r.LangDeps, nil,
	)
}

// ExpandGrpcLibrary expands a schema+RPC library macro. The expansion is
// the shared schema one; each language's toolchain additionally carries the
// workspace's codegen plugin for that language.
func ExpandGrpcLibrary(cfg *Config, r *GrpcLibrary) ([]*Rule, error) {
	return expandProto(
		cfg, r.Name, r.Srcs, r.Languages, r.Deps, r.LangDeps,
		cfg.GrpcPlugins,
	)
}

func expandProto(
	cfg *Config, name string, srcs, langs, deps []string,
	langDeps map[string][]string, plugins map[string]string,
) ([]*Rule, error) {
	if name == "" {
		return nil, errcode.InvalidArgf("proto rule has no name")
	}
	if len(srcs) == 0 {
		return nil, errcode.InvalidArgf("proto rule %q has no sources", name)
	}
	if len(langs) == 0 {
		langs = cfg.Languages
	}
	// Deduplicate and order the language set, so that expansion does not
	// depend on declaration order.
	langs = strutil.SortedList(strutil.MakeSet(langs))
	for _, lang := range langs {
		if !protoLangs[lang] {
			return nil, &UnknownLanguage{Name: name, Lang: lang}
		}
	}

	imp := path.Join(cfg.GoImportBase, name)

	// The schema source bundle aggregates this macro's schemas with the
	// schema bundles of its dependencies; the compiler needs the whole
	// transitive schema set. The bundle also publishes this macro's
	// schema-to-Go-import mapping, so that any Go-targeted rule
	// downstream can synthesize its import remapping table without
	// knowing this rule exists.
	srcName := name + "_src"
	var goMap []string
	for _, src := range srcs {
		if !strings.HasSuffix(src, ".proto") {
			return nil, errcode.InvalidArgf(
				"schema source %q of %q is not a .proto file", src, name,
			)
		}
		goMap = append(goMap, protoGoMapNS+src+"="+imp)
	}
	srcRule := &Rule{
		Name:     srcName,
		Ins:      append(append([]string{}, srcs...), deps...),
		Requires: []string{CapSchema},
		Labels:   goMap,
		NoAction: true,
	}

	rules := []*Rule{srcRule}
	provides := map[string]string{
		CapSource: srcName,
		CapSchema: srcName,
	}

	for _, lang := range langs {
		genName := fmt.Sprintf("%s_%s_pb", name, lang)
		libName := fmt.Sprintf("%s_%s", name, lang)

		gen, err := protoGenRule(cfg, genName, lang, srcs, srcName,
			plugins[lang])
		if err != nil {
			return nil, err
		}

		var extra []string
		extra = append(extra, deps...)
		extra = append(extra, langDeps[lang]...)
		extra = append(extra, cfg.ProtoDeps[lang]...)
		lib, err := protoLibRule(cfg, libName, lang, imp, gen, extra)
		if err != nil {
			return nil, err
		}

		provides[lang] = libName
		switch lang {
		case LangCC:
			// Header-only grant for native interop: the generation
			// rule owns the .pb.h files.
			provides[CapCCHdrs] = genName
		case LangGo:
			// Raw-source-tree grant for tools that want the
			// generated files rather than the compiled archive.
			provides[CapGoSrc] = genName
		}
		rules = append(rules, gen, lib)
	}

	var facadeIns []string
	facadeIns = append(facadeIns, srcName)
	for _, lang := range langs {
		facadeIns = append(facadeIns, fmt.Sprintf("%s_%s", name, lang))
	}
	facade := &Rule{
		Name:     name,
		Ins:      facadeIns,
		NoAction: true,
		Provides: provides,
	}
	return append(rules, facade), nil
}

// protoGenRule builds the generation rule for one language: schema sources
// in, language-specific generated sources out.
func protoGenRule(
	cfg *Config, name, lang string, srcs []string, srcRule, plugin string,
) (*Rule, error) {
	args := []string{cfg.Protoc, protoOutFlags[lang] + "=."}
	tools := []string{cfg.Protoc}
	if plugin != "" {
		args = append(args,
			fmt.Sprintf("--plugin=protoc-gen-grpc-%s=%s", lang, plugin),
			fmt.Sprintf("--grpc-%s_out=.", lang),
		)
		tools = append(tools, plugin)
	}
	args = append(args, srcs...)
	cmd := shellquote.Join(args...)

	r := &Rule{
		Name:     name,
		Ins:      []string{srcRule},
		Cmds:     Commands{Optimized: cmd},
		Tools:    tools,
		Requires: []string{CapSchema},
	}

	suffixes, static := ProtoGenSuffixes(lang)
	if !static {
		// Generated filenames derive from the package declaration
		// embedded in the schema. The action lists what it wrote, one
		// path per line, and the post-build hook populates the real
		// output set.
		r.PendingOuts = true
		r.Cmds = Commands{
			Optimized: cmd + " && " + shellquote.Join(
				"find", ".", "-name", "*.java",
			),
		}
		r.PostBuild = protoDiscoverOuts(".java")
		return r, nil
	}

	for _, src := range srcs {
		base := strings.TrimSuffix(src, ".proto")
		for _, suf := range suffixes {
			r.Outs = append(r.Outs, base+suf)
		}
	}
	if lang == LangGo {
		// The output argument is finalized only once the whole
		// dependency closure is known; see goProtoPreBuild.
		r.PreBuild = goProtoPreBuild()
		r.PreBuildLabels = protoGoMapNS
	}
	return r, nil
}

// protoDiscoverOuts returns a post-build hook that populates a pending
// output set from the action's output lines.
func protoDiscoverOuts(suffix string) PostBuildFunc {
	return func(r *Rule, output []string) (*Patch, error) {
		var outs []string
		for _, out := range ParseOutputLines(output) {
			out = strings.TrimPrefix(out, "./")
			if !strings.HasSuffix(out, suffix) {
				return nil, errcode.InvalidArgf(
					"discovered output %q does not end in %q",
					out, suffix,
				)
			}
			outs = append(outs, out)
		}
		return &Patch{Outs: outs}, nil
	}
}

// goProtoPreBuild returns the pre-build hook of a Go-targeted generation
// rule. It aggregates the schema-to-import-path labels visible across the
// rule's transitive dependency closure (which includes the rule's own
// schema bundle) and rewrites the generator's output argument so that
// cross-package imports in the generated code resolve, without any rule
// knowing about any other rule at declaration time.
func goProtoPreBuild() PreBuildFunc {
	return func(r *Rule, labels []string) (Commands, error) {
		if len(labels) == 0 {
			return nil, nil
		}
		var ms []string
		for _, l := range labels {
			ms = append(ms, "M"+l)
		}
		mapping := strings.Join(ms, ",")

		cmds := make(Commands, len(r.Cmds))
		for v, c := range r.Cmds {
			cmds[v] = strings.Replace(
				c, "--go_out=.", "--go_out="+mapping+":.", 1,
			)
		}
		return cmds, nil
	}
}

// protoLibRule wraps generated sources with the language's native library
// primitive.
func protoLibRule(
	cfg *Config, name, lang, imp string, gen *Rule, deps []string,
) (*Rule, error) {
	ins := append([]string{gen.Name}, deps...)
	r := &Rule{
		Name:     name,
		Ins:      ins,
		Requires: []string{lang},
		Provides: map[string]string{lang: name},
	}

	switch lang {
	case LangGo:
		out := name + ".a"
		r.Outs = []string{out}
		r.Cmds = goCompileCmds(cfg, imp, out, gen.Outs)
		r.Tools = []string{cfg.GoTool}
	case LangCC:
		out := name + ".a"
		obj := name + ".o"
		var ccSrcs []string
		for _, o := range gen.Outs {
			if strings.HasSuffix(o, ".pb.cc") {
				ccSrcs = append(ccSrcs, o)
			}
		}
		compile := shellquote.Join(append(
			[]string{cfg.CC, "-c", "-o", obj}, ccSrcs...,
		)...)
		archive := shellquote.Join(cfg.AR, "rc", out, obj)
		r.Outs = []string{out}
		r.Cmds = Commands{Optimized: compile + " && " + archive}
		r.Tools = []string{cfg.CC, cfg.AR}
	case LangPy:
		out := name + ".zip"
		r.Outs = []string{out}
		r.Cmds = Commands{Optimized: shellquote.Join(append(
			[]string{"zip", "-q", out}, gen.Outs...,
		)...)}
		r.Tools = []string{"zip"}
	case LangJS:
		out := name + ".tgz"
		r.Outs = []string{out}
		r.Cmds = Commands{Optimized: shellquote.Join(append(
			[]string{"tar", "czf", out}, gen.Outs...,
		)...)}
		r.Tools = []string{"tar"}
	case LangJava:
		// The generated sources are discovered only after the
		// generation rule runs, so the compile step globs them.
		out := name + ".jar"
		classes := name + "_classes"
		r.Outs = []string{out}
		r.Cmds = Commands{Optimized: fmt.Sprintf(
			"javac -d %s $(find . -name '*.java') && "+
				"jar cf %s -C %s .",
			classes, out, classes,
		)}
		r.Tools = []string{"javac", "jar"}
	default:
		return nil, errcode.Internalf("no library primitive for %q", lang)
	}
	return r, nil
}
