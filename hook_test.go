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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOutputLines(t *testing.T) {
	out := ParseOutputLines([]string{
		"  b.java ",
		"a.java",
		"",
		"b.java",
		"   ",
	})
	require.Equal(t, []string{"a.java", "b.java"}, out)

	// Parsing is idempotent: feeding the result back yields the same set.
	require.Equal(t, out, ParseOutputLines(out))
}

func TestRunPreBuild(t *testing.T) {
	t.Run("ReplacesCommands", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddAll([]*Rule{
			{
				Name:     "dep",
				NoAction: true,
				Labels:   []string{"ns:k:v"},
			},
			{
				Name: "r",
				Ins:  []string{"dep"},
				Cmds: SingleCommand("old"),
				PreBuild: func(r *Rule, labels []string) (Commands, error) {
					require.Equal(t, []string{"k:v"}, labels)
					return SingleCommand("new"), nil
				},
				PreBuildLabels: "ns:",
			},
		}))
		r := g.Rule("r")
		require.NoError(t, g.runPreBuild(r))
		require.Equal(t, "new", r.Cmds.For(Optimized))
	})

	t.Run("NilKeepsCommands", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name: "r",
			Cmds: SingleCommand("old"),
			PreBuild: func(r *Rule, labels []string) (Commands, error) {
				return nil, nil
			},
		}))
		r := g.Rule("r")
		require.NoError(t, g.runPreBuild(r))
		require.Equal(t, "old", r.Cmds.For(Optimized))
	})
}

func TestRunPostBuild(t *testing.T) {
	t.Run("PopulatesPendingOuts", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name:        "r",
			PendingOuts: true,
			Cmds:        SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				return &Patch{Outs: ParseOutputLines(output)}, nil
			},
		}))
		r := g.Rule("r")
		require.NoError(t, g.runPostBuild(r, []string{"b.gen", "a.gen"}))
		require.Equal(t, []string{"a.gen", "b.gen"}, r.Outs)
		require.False(t, r.PendingOuts)
	})

	t.Run("RunsAtMostOnce", func(t *testing.T) {
		g := NewGraph()
		calls := 0
		require.NoError(t, g.Add(&Rule{
			Name: "r",
			Cmds: SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				calls++
				return nil, nil
			},
		}))
		r := g.Rule("r")
		require.NoError(t, g.runPostBuild(r, nil))
		require.Error(t, g.runPostBuild(r, nil))
		require.Equal(t, 1, calls)
	})

	t.Run("OutsOnFixedSetRejected", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name: "r",
			Outs: []string{"fixed.a"},
			Cmds: SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				return &Patch{Outs: []string{"extra.a"}}, nil
			},
		}))
		require.Error(t, g.runPostBuild(g.Rule("r"), nil))
	})

	t.Run("PendingStillPendingRejected", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name:        "r",
			PendingOuts: true,
			Cmds:        SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				return nil, nil
			},
		}))
		require.Error(t, g.runPostBuild(g.Rule("r"), nil))
	})

	t.Run("DiscoveredOutputCollision", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name: "owner",
			Outs: []string{"x.gen"},
			Cmds: SingleCommand("true"),
		}))
		require.NoError(t, g.Add(&Rule{
			Name:        "r",
			PendingOuts: true,
			Cmds:        SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				return &Patch{Outs: []string{"x.gen"}}, nil
			},
		}))
		require.Error(t, g.runPostBuild(g.Rule("r"), nil))
	})

	t.Run("RewritesPairedCommand", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddAll([]*Rule{
			{
				Name:   "mutator",
				Cmds:   SingleCommand("true"),
				Paired: "target",
				PostBuild: func(r *Rule, output []string) (*Patch, error) {
					return &Patch{Paired: SingleCommand("rewritten")}, nil
				},
			},
			{
				Name: "target",
				Ins:  []string{"mutator"},
				Cmds: SingleCommand("original"),
			},
		}))
		require.NoError(t, g.runPostBuild(g.Rule("mutator"), nil))
		require.Equal(t, "rewritten", g.Rule("target").Cmds.For(Optimized))
	})

	t.Run("PairedPatchWithoutDeclaration", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(&Rule{
			Name: "r",
			Cmds: SingleCommand("true"),
			PostBuild: func(r *Rule, output []string) (*Patch, error) {
				return &Patch{Paired: SingleCommand("x")}, nil
			},
		}))
		require.Error(t, g.runPostBuild(g.Rule("r"), nil))
	})
}
