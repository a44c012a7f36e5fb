// Copyright 2024 The wmgr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmdinit contains the init command
package cmdinit

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/types"
	"github.com/tk-aria/wmgr-sub001/internal/util/initialize"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
)

// NewRunner returns a command runner
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "init [MANIFEST_URL|MANIFEST_PATH]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Initialize a workspace from a manifest",
		Long: `Initialize a workspace in the current directory from a manifest
repository URL or a local manifest file. With no argument and --seed a
starter manifest is written instead.`,
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringVar(&r.branch, "branch", "",
		"branch of the manifest repository to track")
	c.Flags().StringSliceVar(&r.groups, "group", nil,
		"repo groups the workspace syncs; may be repeated")
	c.Flags().BoolVar(&r.shallow, "shallow", false,
		"make every clone shallow")
	c.Flags().BoolVar(&r.cloneAll, "clone-all", false,
		"sync every repository regardless of groups")
	c.Flags().BoolVar(&r.seed, "seed", false,
		"write a starter manifest when no source is given")
	return r
}

func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function
type Runner struct {
	ctx     context.Context
	Command *cobra.Command
	Init    initialize.Command

	branch   string
	groups   []string
	shallow  bool
	cloneAll bool
	seed     bool
}

func (r *Runner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdinit.preRunE"
	cwd, err := os.Getwd()
	if err != nil {
		return errors.E(op, errors.FileSystem, err)
	}
	r.Init = initialize.Command{
		Root:           cwd,
		ManifestBranch: r.branch,
		Groups:         r.groups,
		Shallow:        r.shallow,
		CloneAll:       r.cloneAll,
		Seed:           r.seed,
	}
	if len(args) == 1 {
		r.Init.ManifestSource = args[0]
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdinit.runE"
	w, err := r.Init.Run(r.ctx)
	if err != nil {
		return errors.E(op, err)
	}
	root := types.UniquePath(w.Root)
	display, rerr := root.RelativePath()
	if rerr != nil || display == "" {
		display = root.String()
	}
	printer.FromContextOrDie(r.ctx).Printf(
		"Initialized workspace at %s (%d repositories)\n", display, len(w.Repositories))
	return nil
}
