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

// Package cmdstatus contains the status command
package cmdstatus

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/util/cmdutil"
	"github.com/tk-aria/wmgr-sub001/internal/util/status"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
)

// NewRunner returns a command runner
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:     "status",
		Args:    cobra.NoArgs,
		Short:   "Show the state of every repository",
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringSliceVar(&r.groups, "group", nil,
		"inspect only these repo groups; may be repeated")
	c.Flags().BoolVar(&r.branch, "branch", false,
		"include current and wanted branch columns")
	c.Flags().BoolVar(&r.compact, "compact", false,
		"print only repositories that need attention")
	c.Flags().IntVarP(&r.jobs, "jobs", "j", 4,
		"how many repositories to probe at once")
	return r
}

func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function
type Runner struct {
	ctx     context.Context
	Command *cobra.Command
	Status  status.Command

	groups  []string
	branch  bool
	compact bool
	jobs    int
}

func (r *Runner) preRunE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdstatus.preRunE"
	w, err := cmdutil.WorkspaceFromCwd()
	if err != nil {
		return errors.E(op, err)
	}
	r.Status = status.Command{
		Workspace:   w,
		Groups:      r.groups,
		MaxParallel: r.jobs,
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdstatus.runE"
	pr := printer.FromContextOrDie(r.ctx)

	res, err := r.Status.Run(r.ctx)
	if err != nil {
		return errors.E(op, err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(pr.OutStream())
	t.SetStyle(table.StyleLight)
	header := table.Row{"REPOSITORY", "STATE", "CHANGES", "AHEAD/BEHIND"}
	if r.branch {
		header = append(header, "BRANCH", "WANTED")
	}
	t.AppendHeader(header)
	for _, st := range res.Statuses {
		if r.compact && st.State == status.Clean {
			continue
		}
		changes := ""
		if n := st.Staged + st.Modified + st.Untracked; n > 0 {
			changes = fmt.Sprintf("+%d ~%d ?%d", st.Staged, st.Modified, st.Untracked)
		}
		divergence := ""
		if st.Ahead != 0 || st.Behind != 0 {
			divergence = fmt.Sprintf("%d/%d", st.Ahead, st.Behind)
		}
		row := table.Row{st.Dest, st.State.String(), changes, divergence}
		if r.branch {
			row = append(row, st.Branch, st.ExpectedBranch)
		}
		t.AppendRow(row)
	}
	t.Render()

	pr.Printf("%d clean, %d dirty, %d wrong branch, %d out of sync, %d missing, %d errors\n",
		res.CleanCount, res.DirtyCount, res.WrongBranch, res.OutOfSync,
		res.MissingCount, res.ErrorCount)
	if !res.AllClean() {
		return errors.E(op, fmt.Errorf("%d repositories need attention",
			len(res.Statuses)-res.CleanCount))
	}
	return nil
}
