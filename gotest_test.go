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
	"testing"

	"github.com/stretchr/testify/require"
)

func goTestGraph(t *testing.T, mock bool) *Graph {
	t.Helper()
	cfg := DefaultConfig()
	g := NewGraph()

	libRules, err := ExpandGoLibrary(cfg, &GoLibrary{
		Name: "netutil",
		Srcs: []string{"dial.go"},
	})
	require.NoError(t, err)
	require.NoError(t, g.AddAll(libRules))

	testRules, err := ExpandGoTest(cfg, &GoTest{
		Name: "netutil_test",
		Srcs: []string{"dial_test.go"},
		Lib:  "netutil",
		Mock: mock,
	})
	require.NoError(t, err)
	require.NoError(t, g.AddAll(testRules))
	require.NoError(t, g.Check())
	return g
}

func TestExpandGoTest(t *testing.T) {
	g := goTestGraph(t, false)

	lib := g.Rule("netutil_test_lib")
	require.NotNil(t, lib)
	require.Equal(t, []string{CapGoSrc, CapGo}, lib.Requires)
	require.Equal(t, []string{"netutil_test_lib.a"}, lib.Outs)

	main := g.Rule("netutil_test_main")
	require.NotNil(t, main)
	require.Equal(t, "netutil_test", main.Paired)
	require.NotNil(t, main.PostBuild)
	require.Contains(t, main.Cmds.For(Optimized), "-p netutil")

	bin := g.Rule("netutil_test")
	require.NotNil(t, bin)
	require.Contains(t, bin.Ins, "netutil_test_lib")
	require.Contains(t, bin.Ins, "netutil_test_main")

	t.Run("Mock", func(t *testing.T) {
		g := goTestGraph(t, true)
		lib := g.Rule("netutil_test_lib")
		require.Contains(t, lib.Cmds.For(Optimized), "objcopy --weaken")
	})
}

func TestGoTestRecompileSources(t *testing.T) {
	g := goTestGraph(t, false)
	lib := g.Rule("netutil_test_lib")
	require.NoError(t, g.runPreBuild(lib))

	// The committed compile line carries the library's own sources
	// together with the test sources.
	cmd := lib.Cmds.For(Optimized)
	require.Contains(t, cmd, "dial.go dial_test.go")

	t.Run("Mock", func(t *testing.T) {
		g := goTestGraph(t, true)
		lib := g.Rule("netutil_test_lib")
		require.NoError(t, g.runPreBuild(lib))

		cmd := lib.Cmds.For(Optimized)
		require.Contains(t, cmd, "dial.go dial_test.go")
		require.Contains(t, cmd, "objcopy --weaken")
	})

	t.Run("NoSourceLabels", func(t *testing.T) {
		// A library whose "go-src" bundle publishes no sources keeps the
		// declared command.
		g := goTestGraph(t, false)
		lib := g.Rule("netutil_test_lib")
		lib.PreBuildLabels = goSrcNS + ":absent:"
		before := lib.Cmds.For(Optimized)
		require.NoError(t, g.runPreBuild(lib))
		require.Equal(t, before, lib.Cmds.For(Optimized))
	})
}

func TestGoTestPackageFix(t *testing.T) {
	t.Run("MatchLeavesCommands", func(t *testing.T) {
		g := goTestGraph(t, false)
		main := g.Rule("netutil_test_main")
		bin := g.Rule("netutil_test")
		before := bin.Cmds.For(Optimized)

		require.NoError(t, g.runPostBuild(main, []string{
			"Package: netutil",
		}))
		require.Equal(t, before, bin.Cmds.For(Optimized))
	})

	t.Run("MismatchRewritesBoth", func(t *testing.T) {
		g := goTestGraph(t, false)
		main := g.Rule("netutil_test_main")
		bin := g.Rule("netutil_test")

		require.NoError(t, g.runPostBuild(main, []string{
			"generated netutil_test_testmain.go",
			"Package: netutil_x",
		}))

		// The generator's own command now carries the discovered
		// identity, for replays under other variants.
		require.Contains(t, main.Cmds.For(Optimized), "-p netutil_x")

		// The paired link renames the archive before linking.
		linkCmd := bin.Cmds.For(Optimized)
		require.Contains(t, linkCmd,
			"mv netutil_test_lib.a netutil_x.a")
		require.Contains(t, linkCmd, "netutil_x.a")
		require.NotContains(t, linkCmd, "netutil_test_lib.a && ")
	})

	t.Run("MissingReport", func(t *testing.T) {
		g := goTestGraph(t, false)
		main := g.Rule("netutil_test_main")
		require.Error(t, g.runPostBuild(main, []string{"no package line"}))
	})
}

func TestGoTestEndToEnd(t *testing.T) {
	g := goTestGraph(t, false)
	runner := newFakeRunner()
	runner.out["netutil_test_main"] = []string{"Package: netutil_x"}

	x := NewExecutor(g, &ExecutorConfig{Runner: runner, Jobs: 2})
	require.NoError(t, x.Run(context.Background(), []string{"netutil_test"}))

	// The entry-point generator runs before the test binary, so the link
	// command the runner received is the rewritten one.
	runner.ranBefore(t, "netutil_test_main", "netutil_test")
	require.Contains(t,
		runner.cmds["netutil_test"], "mv netutil_test_lib.a netutil_x.a")

	// The recompile the runner received covers the library sources.
	require.Contains(t, runner.cmds["netutil_test_lib"], "dial.go")
}
