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
	"shanhu.io/misc/jsonx"
)

// Config is the workspace configuration for macro expansion. It is loaded
// once from the workspace file and passed by value into each expansion;
// there is no process-wide configuration state.
type Config struct {
	// Platform identifies the build platform, e.g. "linux_amd64".
	Platform string `json:",omitempty"`

	// Toolchain paths.
	GoTool   string `json:",omitempty"` // The go command.
	CC       string `json:",omitempty"` // Native compiler.
	AR       string `json:",omitempty"` // Native archiver.
	Objcopy  string `json:",omitempty"` // Symbol editor, for test mocking.
	Protoc   string `json:",omitempty"` // Schema compiler.
	TestMain string `json:",omitempty"` // Test entry-point generator.

	// GoImportBase is the import path prefix of generated Go packages.
	GoImportBase string `json:",omitempty"`

	// GoProxy is the module proxy used by external package fetches.
	GoProxy string `json:",omitempty"`

	// Languages lists the schema target languages enabled for this
	// workspace. Proto macros that do not name languages expand to
	// exactly this set.
	Languages []string `json:",omitempty"`

	// ProtoDeps lists default per-language dependencies added to every
	// compiled schema artifact, such as the language's proto runtime.
	ProtoDeps map[string][]string `json:",omitempty"`

	// GrpcPlugins maps a language to the codegen plugin executable (a
	// tool path or the name of a rule that fetches it) wired into the
	// schema compiler for RPC service stubs.
	GrpcPlugins map[string]string `json:",omitempty"`
}

const workspaceFile = "WORKSPACE.weld"

// DefaultConfig returns the built-in workspace configuration.
func DefaultConfig() *Config {
	return &Config{
		Platform:     "linux_amd64",
		GoTool:       "go",
		CC:           "cc",
		AR:           "ar",
		Objcopy:      "objcopy",
		Protoc:       "protoc",
		TestMain:     "weld-testmain",
		GoImportBase: "weld",
		GoProxy:      "https://proxy.golang.org",
		Languages:    []string{LangCC, LangGo, LangJS, LangJava, LangPy},
		GrpcPlugins: map[string]string{
			LangCC:   "grpc_cpp_plugin",
			LangGo:   "protoc-gen-go-grpc",
			LangJava: "protoc-gen-grpc-java",
			LangJS:   "protoc-gen-grpc-js",
			LangPy:   "grpc_python_plugin",
		},
	}
}

// ReadConfig reads the workspace file, layered over the defaults.
func ReadConfig(f string) (*Config, error) {
	c := DefaultConfig()
	if err := jsonx.ReadFile(f, c); err != nil {
		return nil, err
	}
	for _, lang := range c.Languages {
		if !protoLangs[lang] {
			return nil, &UnknownLanguage{Name: workspaceFile, Lang: lang}
		}
	}
	return c, nil
}
