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
	"shanhu.io/misc/flagutil"
)

var cmdFlags = flagutil.NewFactory("weld")

type buildOptions struct {
	src       string
	out       string
	buildFile string
	workspace string
	variant   string
	jobs      int
	cache     string
	dockImage string
}

func declareBuildFlags(flags *flagutil.FlagSet, opts *buildOptions) {
	flags.StringVar(&opts.src, "src", ".", "source directory")
	flags.StringVar(&opts.out, "out", "out", "output directory")
	flags.StringVar(
		&opts.buildFile, "build", "BUILD.weld", "build file to load",
	)
	flags.StringVar(
		&opts.workspace, "workspace", "WORKSPACE.weld",
		"workspace configuration file",
	)
	flags.StringVar(
		&opts.variant, "variant", "optimized",
		"build variant: debug, optimized or coverage",
	)
	flags.IntVar(&opts.jobs, "jobs", 0, "parallel jobs; 0 for CPU count")
	flags.StringVar(
		&opts.cache, "cache", "", "action cache database file; empty disables",
	)
	flags.StringVar(
		&opts.dockImage, "docker", "",
		"run actions in containers of this image",
	)
}
