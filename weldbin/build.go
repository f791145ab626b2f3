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

package weldbin

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"shanhu.io/misc/errcode"
	"shanhu.io/misc/osutil"
	"shanhu.io/text/lexing"
	"shanhu.io/virgo/dock"
	"shanhu.io/weld"
)

func parseVariant(s string) (weld.Variant, error) {
	switch s {
	case "debug":
		return weld.Debug, nil
	case "opt", "optimized", "":
		return weld.Optimized, nil
	case "cover", "coverage":
		return weld.Coverage, nil
	}
	return "", errcode.InvalidArgf("unknown build variant %q", s)
}

func loadGraph(opts *buildOptions) (*weld.Config, *weld.Graph, error) {
	config := weld.DefaultConfig()
	ok, err := osutil.IsRegular(opts.workspace)
	if err != nil {
		return nil, nil, errcode.Annotate(err, "check workspace file")
	}
	if ok {
		c, err := weld.ReadConfig(opts.workspace)
		if err != nil {
			return nil, nil, errcode.Annotate(err, "read workspace")
		}
		config = c
	}

	g := weld.NewGraph()
	if errs := weld.LoadBuildFile(
		config, g, opts.buildFile, opts.src,
	); errs != nil {
		lexing.FprintErrs(os.Stderr, errs, "")
		return nil, nil, errcode.InvalidArgf(
			"load build got %d errors", len(errs),
		)
	}
	return config, g, nil
}

func cmdBuild(args []string) error {
	opts := new(buildOptions)
	flags := cmdFlags.New()
	declareBuildFlags(flags, opts)
	args = flags.ParseArgs(args)

	variant, err := parseVariant(opts.variant)
	if err != nil {
		return err
	}

	_, g, err := loadGraph(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0700); err != nil {
		return errcode.Annotate(err, "make output dir")
	}

	var runner weld.Runner
	if opts.dockImage != "" {
		client := dock.NewUnixClient("")
		runner = weld.NewDockRunner(
			client, opts.dockImage, opts.src, opts.out,
		)
	} else {
		runner = &weld.ExecRunner{Dir: opts.src}
	}

	var cache *weld.ActionCache
	if opts.cache != "" {
		c, err := weld.OpenActionCache(opts.cache)
		if err != nil {
			return errcode.Annotate(err, "open action cache")
		}
		defer c.Close()
		cache = c
	}

	x := weld.NewExecutor(g, &weld.ExecutorConfig{
		Runner:  runner,
		Variant: variant,
		SrcDir:  opts.src,
		Cache:   cache,
		Jobs:    opts.jobs,
	})
	return x.Run(context.Background(), args)
}

func cmdQuery(args []string) error {
	opts := new(buildOptions)
	flags := cmdFlags.New()
	declareBuildFlags(flags, opts)
	args = flags.ParseArgs(args)

	_, g, err := loadGraph(opts)
	if err != nil {
		return err
	}

	rules := g.Rules()
	if len(args) > 0 {
		want := make(map[string]bool)
		for _, a := range args {
			want[a] = true
		}
		var filtered []*weld.Rule
		for _, r := range rules {
			if want[r.Name] {
				filtered = append(filtered, r)
			}
		}
		rules = filtered
	}

	for _, r := range rules {
		fmt.Println(r.Name)
		if len(r.Outs) > 0 {
			fmt.Printf("  outs: %s\n", strings.Join(r.Outs, " "))
		}
		if len(r.Provides) > 0 {
			var caps []string
			for c := range r.Provides {
				caps = append(caps, c)
			}
			sort.Strings(caps)
			for _, c := range caps {
				fmt.Printf("  %s: %s\n", c, r.Provides[c])
			}
		}
		if len(r.Labels) > 0 {
			fmt.Printf("  labels: %s\n", strings.Join(r.Labels, " "))
		}
	}
	return nil
}
