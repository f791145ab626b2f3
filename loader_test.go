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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeBuildFileNode(t *testing.T) {
	for typ, want := range map[string]interface{}{
		macroGoLibrary:    new(GoLibrary),
		macroGoBinary:     new(GoBinary),
		macroGoTest:       new(GoTest),
		macroCgoLibrary:   new(CgoLibrary),
		macroProtoLibrary: new(ProtoLibrary),
		macroGrpcLibrary:  new(GrpcLibrary),
		macroGoGet:        new(GoGet),
		macroBundle:       new(Bundle),
	} {
		require.IsType(t, want, makeBuildFileNode(typ), "type %q", typ)
	}
	require.Nil(t, makeBuildFileNode("nonsense"))
}

func TestExpandMacro(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("Dispatch", func(t *testing.T) {
		rules, err := expandMacro(cfg, &GoLibrary{
			Name: "x", Srcs: []string{"x.go"},
		})
		require.NoError(t, err)
		require.Len(t, rules, 2)

		rules, err = expandMacro(cfg, &Bundle{Name: "all"})
		require.NoError(t, err)
		require.Len(t, rules, 1)
		require.True(t, rules[0].NoAction)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := expandMacro(cfg, struct{}{})
		require.Error(t, err)
	})
}

func TestExpandBundle(t *testing.T) {
	cfg := DefaultConfig()
	rules, err := ExpandBundle(cfg, &Bundle{
		Name: "all",
		Deps: []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	r := rules[0]
	require.Equal(t, "all", r.Name)
	require.Equal(t, []string{"a", "b"}, r.Ins)
	require.True(t, r.NoAction)
	require.Equal(t, map[string]string{CapSource: "all"}, r.Provides)

	_, err = ExpandBundle(cfg, new(Bundle))
	require.Error(t, err)
}

func TestLoaderCheckSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "have.go"), []byte("package x\n"), 0600,
	))

	mkLoader := func(t *testing.T, ins []string) *loader {
		t.Helper()
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name: "lib",
			Ins:  ins,
			Outs: []string{"lib.a"},
			Cmds: SingleCommand("true"),
		}))
		return newLoader(DefaultConfig(), g, dir)
	}

	t.Run("AllPresent", func(t *testing.T) {
		l := mkLoader(t, []string{"have.go"})
		l.checkSources()
		require.Empty(t, l.errs())
	})

	t.Run("Missing", func(t *testing.T) {
		l := mkLoader(t, []string{"have.go", "missing.go"})
		l.checkSources()
		require.NotEmpty(t, l.errs())
	})

	t.Run("RuleRefsNotFiles", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{Name: "dep", NoAction: true}))
		require.NoError(t, g.Add(&Rule{
			Name: "lib",
			Ins:  []string{"dep"},
			Outs: []string{"lib.a"},
			Cmds: SingleCommand("true"),
		}))
		l := newLoader(DefaultConfig(), g, dir)
		l.checkSources()
		require.Empty(t, l.errs())
	})
}

func TestLoadBuildFileMissing(t *testing.T) {
	g := NewGraph()
	errs := LoadBuildFile(
		DefaultConfig(), g,
		filepath.Join(t.TempDir(), "BUILD.weld"), "",
	)
	require.NotEmpty(t, errs)
}
