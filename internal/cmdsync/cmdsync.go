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

// Package cmdsync contains the sync command
package cmdsync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/util/cmdutil"
	"github.com/tk-aria/wmgr-sub001/internal/util/sync"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
)

// NewRunner returns a command runner
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "sync",
		Args:  cobra.NoArgs,
		Short: "Bring every repository in line with the manifest",
		Long: `Clone missing repositories, fetch and fast-forward existing ones,
correct branches and remote URLs, and apply the manifest's file
operations. Repositories fail independently; the exit code is non-zero
when any of them failed.`,
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringSliceVar(&r.groups, "group", nil,
		"sync only these repo groups; may be repeated")
	c.Flags().BoolVar(&r.force, "force", false,
		"correct branches even over a dirty work tree")
	c.Flags().BoolVar(&r.noCorrectBranch, "no-correct-branch", false,
		"leave checkouts on their current branch")
	c.Flags().IntVarP(&r.jobs, "jobs", "j", 4,
		"how many repositories to sync at once")
	c.Flags().DurationVar(&r.timeout, "timeout", 0,
		"per-command timeout, e.g. 90s; 0 means none")
	return r
}

func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function
type Runner struct {
	ctx     context.Context
	Command *cobra.Command
	Sync    sync.Command

	groups          []string
	force           bool
	noCorrectBranch bool
	jobs            int
	timeout         time.Duration
}

func (r *Runner) preRunE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdsync.preRunE"
	w, err := cmdutil.WorkspaceFromCwd()
	if err != nil {
		return errors.E(op, err)
	}
	r.Sync = sync.Command{
		Workspace:       w,
		Groups:          r.groups,
		Force:           r.force,
		NoCorrectBranch: r.noCorrectBranch,
		MaxParallel:     r.jobs,
		Timeout:         r.timeout,
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdsync.runE"
	pr := printer.FromContextOrDie(r.ctx)

	res, err := r.Sync.Run(r.ctx)
	if err != nil {
		return errors.E(op, err)
	}

	pr.Printf("\n%d cloned, %d updated, %d up to date, %d failed\n",
		res.Cloned, res.Updated, res.Skipped, len(res.Errors))
	if !res.Success() {
		for _, out := range res.Errors {
			pr.OptPrintf(printer.NewOpt().Repo(out.Dest), "%v\n", out.Err)
			if hint := execHint(out.Err); hint != "" {
				pr.OptPrintf(printer.NewOpt().Repo(out.Dest), "%s\n", hint)
			}
		}
		return errors.E(op, fmt.Errorf("%d repositories failed to sync", len(res.Errors)))
	}
	return nil
}

// execHint turns a classified git failure into a corrective message.
func execHint(err error) string {
	var execErr *gitutil.ExecError
	if !errors.As(err, &execErr) {
		return ""
	}
	switch execErr.Type {
	case gitutil.HTTPSAuthRequired:
		return "authentication required; configure a credential helper or use an ssh url"
	case gitutil.RepositoryNotFound:
		return fmt.Sprintf("repository %q not found; check the manifest url", execErr.Repo)
	case gitutil.RepositoryUnavailable:
		return "remote is unreachable; check your network and the manifest url"
	case gitutil.UnknownReference:
		return fmt.Sprintf("ref %q does not exist; check the manifest branch, tag or sha1", execErr.Ref)
	}
	return ""
}
