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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandGoLibrary(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("Expansion", func(t *testing.T) {
		rules, err := ExpandGoLibrary(cfg, &GoLibrary{
			Name: "netutil",
			Srcs: []string{"dial.go", "listen.go"},
		})
		require.NoError(t, err)
		require.Len(t, rules, 2)

		src, lib := rules[0], rules[1]
		require.Equal(t, "netutil_src", src.Name)
		require.True(t, src.NoAction)

		require.Equal(t, "netutil", lib.Name)
		require.Equal(t, []string{"netutil.a"}, lib.Outs)
		require.Equal(t, map[string]string{
			CapGo:    "netutil",
			CapGoSrc: "netutil_src",
		}, lib.Provides)

		opt := lib.Cmds.For(Optimized)
		require.Contains(t, opt, "-p weld/netutil")
		require.Contains(t, lib.Cmds[Debug], "-N")
		require.Contains(t, lib.Cmds[Coverage], "-cover")
	})

	t.Run("NoSources", func(t *testing.T) {
		_, err := ExpandGoLibrary(cfg, &GoLibrary{Name: "empty"})
		require.Error(t, err)
	})

	t.Run("CustomImportPath", func(t *testing.T) {
		rules, err := ExpandGoLibrary(cfg, &GoLibrary{
			Name:       "netutil",
			Srcs:       []string{"dial.go"},
			ImportPath: "example.com/net",
		})
		require.NoError(t, err)
		require.Contains(t,
			rules[1].Cmds.For(Optimized), "-p example.com/net")
	})
}

func TestExpandGoBinary(t *testing.T) {
	cfg := DefaultConfig()
	rules, err := ExpandGoBinary(cfg, &GoBinary{
		Name: "tool",
		Srcs: []string{"main.go"},
		Deps: []string{"netutil"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)

	bin := rules[0]
	require.Equal(t, []string{"tool", "tool.o"}, bin.Outs)
	require.Equal(t, []string{CapGo}, bin.Requires)

	opt := bin.Cmds.For(Optimized)
	require.Contains(t, opt, "go tool compile")
	require.Contains(t, opt, "go tool link")
	require.Contains(t, opt, "-s -w")
	require.NotContains(t, bin.Cmds[Debug], "-s -w")
}

func TestExpandCgoLibrary(t *testing.T) {
	cfg := DefaultConfig()

	rules, err := ExpandCgoLibrary(cfg, &CgoLibrary{
		Name:  "crypto",
		Srcs:  []string{"crypto.go"},
		CSrcs: []string{"aes.c"},
		Hdrs:  []string{"aes.h"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 4)

	byName := make(map[string]*Rule)
	for _, r := range rules {
		byName[r.Name] = r
	}

	cc := byName["crypto_c"]
	require.Equal(t, []string{"crypto_c.o"}, cc.Outs)
	require.Contains(t, cc.Cmds[Debug], "-g")
	require.Contains(t, cc.Cmds[Optimized], "-O2")

	goRule := byName["crypto_go"]
	require.Equal(t, []string{"crypto_go.a"}, goRule.Outs)

	merge := byName["crypto"]
	require.Equal(t, []string{"crypto.a"}, merge.Outs)
	require.Equal(t, []string{"crypto_go", "crypto_c"}, merge.Ins)
	require.Equal(t, map[string]string{
		CapGo:    "crypto",
		CapGoSrc: "crypto_src",
	}, merge.Provides)

	// The merge command folds the native object into a copy of the
	// managed archive.
	cmd := merge.Cmds.For(Optimized)
	require.Contains(t, cmd, "cp crypto_go.a crypto.a")
	require.Contains(t, cmd, "ar r crypto.a crypto_c.o")

	t.Run("BinaryUnaware", func(t *testing.T) {
		// A binary depending on the macro resolves its "go" grant to the
		// merged archive; the native compile never appears in its deps.
		g := NewGraph()
		require.NoError(t, g.AddAll(rules))

		bins, err := ExpandGoBinary(cfg, &GoBinary{
			Name: "app",
			Srcs: []string{"main.go"},
			Deps: []string{"crypto"},
		})
		require.NoError(t, err)
		require.NoError(t, g.AddAll(bins))
		require.NoError(t, g.Check())

		deps, err := g.deps(g.Rule("app"))
		require.NoError(t, err)
		require.Equal(t, []string{"crypto"}, deps)
	})

	t.Run("NeedsBothSourceKinds", func(t *testing.T) {
		_, err := ExpandCgoLibrary(cfg, &CgoLibrary{
			Name: "x", Srcs: []string{"x.go"},
		})
		require.Error(t, err)
		_, err = ExpandCgoLibrary(cfg, &CgoLibrary{
			Name: "x", CSrcs: []string{"x.c"},
		})
		require.Error(t, err)
	})
}

func TestExpandGoGet(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("Expansion", func(t *testing.T) {
		rules, err := ExpandGoGet(cfg, &GoGet{
			Name:     "testify",
			Get:      "github.com/stretchr/testify",
			Version:  "v1.7.1",
			Checksum: "sha256:deadbeef",
		})
		require.NoError(t, err)
		require.Len(t, rules, 1)

		r := rules[0]
		require.Equal(t, []string{"testify.zip"}, r.Outs)
		require.Equal(t, map[string]string{CapGo: "testify"}, r.Provides)

		cmd := r.Cmds.For(Optimized)
		require.True(t, strings.Contains(cmd,
			"https://proxy.golang.org/github.com/stretchr/testify/@v/v1.7.1.zip"))
		require.Contains(t, cmd, "sha256sum -c -")
		require.Contains(t, cmd, "deadbeef")
	})

	t.Run("ChecksumRequired", func(t *testing.T) {
		_, err := ExpandGoGet(cfg, &GoGet{
			Name:    "testify",
			Get:     "github.com/stretchr/testify",
			Version: "v1.7.1",
		})
		require.Error(t, err)

		_, err = ExpandGoGet(cfg, &GoGet{
			Name:     "testify",
			Get:      "github.com/stretchr/testify",
			Version:  "v1.7.1",
			Checksum: "md5:deadbeef",
		})
		require.Error(t, err)
	})
}
