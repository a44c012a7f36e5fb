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

// Package cmdmanifest contains the dump-manifest and apply-manifest
// commands
package cmdmanifest

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
	"github.com/tk-aria/wmgr-sub001/internal/util/cmdutil"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
	"gopkg.in/yaml.v3"
)

// NewDumpRunner returns a command runner for dump-manifest
func NewDumpRunner(ctx context.Context) *DumpRunner {
	r := &DumpRunner{ctx: ctx}
	c := &cobra.Command{
		Use:     "dump-manifest",
		Args:    cobra.NoArgs,
		Short:   "Write the workspace's pinned manifest",
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringVarP(&r.output, "output", "o", "",
		"write to this file instead of stdout")
	return r
}

func NewDumpCommand(ctx context.Context) *cobra.Command {
	return NewDumpRunner(ctx).Command
}

// DumpRunner contains the run function for dump-manifest
type DumpRunner struct {
	ctx     context.Context
	Command *cobra.Command

	workspace *workspace.Workspace
	output    string
}

func (r *DumpRunner) preRunE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdmanifest.dump.preRunE"
	w, err := cmdutil.WorkspaceFromCwd()
	if err != nil {
		return errors.E(op, err)
	}
	r.workspace = w
	return nil
}

func (r *DumpRunner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdmanifest.dump.runE"
	pr := printer.FromContextOrDie(r.ctx)

	data, err := yaml.Marshal(r.workspace.Manifest)
	if err != nil {
		return errors.E(op, errors.Serialization, err)
	}
	if r.output == "" {
		fmt.Fprint(pr.OutStream(), string(data))
		return nil
	}
	if err := os.WriteFile(r.output, data, 0644); err != nil {
		return errors.E(op, errors.FileSystem, err)
	}
	pr.Printf("Manifest written to %s\n", r.output)
	return nil
}

// NewApplyRunner returns a command runner for apply-manifest
func NewApplyRunner(ctx context.Context) *ApplyRunner {
	r := &ApplyRunner{ctx: ctx}
	c := &cobra.Command{
		Use:   "apply-manifest PATH",
		Args:  cobra.ExactArgs(1),
		Short: "Replace the workspace's pinned manifest",
		Long: `Validate the manifest at PATH and store it as the workspace's pinned
manifest. The previous manifest is kept as a numbered backup. Run
'wmgr sync' afterwards to apply it to the checkouts.`,
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	return r
}

func NewApplyCommand(ctx context.Context) *cobra.Command {
	return NewApplyRunner(ctx).Command
}

// ApplyRunner contains the run function for apply-manifest
type ApplyRunner struct {
	ctx     context.Context
	Command *cobra.Command

	workspace *workspace.Workspace
	manifest  *manifest.Manifest
}

func (r *ApplyRunner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdmanifest.apply.preRunE"
	w, err := cmdutil.WorkspaceFromCwd()
	if err != nil {
		return errors.E(op, err)
	}
	m, err := manifest.Load(args[0])
	if err != nil {
		return errors.E(op, err)
	}
	r.workspace = w
	r.manifest = m
	return nil
}

func (r *ApplyRunner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdmanifest.apply.runE"
	pr := printer.FromContextOrDie(r.ctx)

	if err := r.workspace.SaveManifest(r.manifest); err != nil {
		return errors.E(op, err)
	}
	pr.Printf("Manifest applied (%d repositories); run 'wmgr sync' to update checkouts\n",
		len(r.workspace.Repositories))
	return nil
}
