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

// Package cmdforeach contains the foreach command
package cmdforeach

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/util/cmdutil"
	"github.com/tk-aria/wmgr-sub001/internal/util/foreach"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
)

// NewRunner returns a command runner
func NewRunner(ctx context.Context) *Runner {
	r := &Runner{ctx: ctx}
	c := &cobra.Command{
		Use:   "foreach -- COMMAND [ARGS...]",
		Args:  cobra.MinimumNArgs(1),
		Short: "Run a command in every repository",
		Long: `Run an arbitrary command in every repository of the workspace. The
command sees WMGR_DEST and WMGR_WORKSPACE in its environment. A failing
repository never stops the others; the exit code is non-zero when any
command failed.`,
		RunE:    r.runE,
		PreRunE: r.preRunE,
	}
	r.Command = c
	c.Flags().StringSliceVar(&r.groups, "group", nil,
		"run only in these repo groups; may be repeated")
	c.Flags().BoolVar(&r.parallel, "parallel", false,
		"run the commands concurrently")
	c.Flags().IntVarP(&r.jobs, "jobs", "j", 4,
		"how many commands to run at once with --parallel")
	c.Flags().DurationVar(&r.timeout, "timeout", 0,
		"per-command timeout, e.g. 90s; 0 means none")
	c.Flags().BoolVar(&r.continueOnError, "continue-on-error", true,
		"keep going after a repository fails")
	return r
}

func NewCommand(ctx context.Context) *cobra.Command {
	return NewRunner(ctx).Command
}

// Runner contains the run function
type Runner struct {
	ctx     context.Context
	Command *cobra.Command
	Foreach foreach.Command

	groups          []string
	parallel        bool
	jobs            int
	timeout         time.Duration
	continueOnError bool

	argv []string
}

func (r *Runner) preRunE(_ *cobra.Command, args []string) error {
	const op errors.Op = "cmdforeach.preRunE"
	w, err := cmdutil.WorkspaceFromCwd()
	if err != nil {
		return errors.E(op, err)
	}
	jobs := 1
	if r.parallel {
		jobs = r.jobs
	}
	r.Foreach = foreach.Command{
		Workspace:   w,
		Groups:      r.groups,
		MaxParallel: jobs,
		Timeout:     r.timeout,
		StopOnError: !r.continueOnError && !r.parallel,
	}
	if len(args) == 1 {
		// A single argument may be a full quoted command line.
		r.argv, err = foreach.Parse(args[0])
		if err != nil {
			return errors.E(op, err)
		}
	} else {
		r.argv = args
	}
	return nil
}

func (r *Runner) runE(_ *cobra.Command, _ []string) error {
	const op errors.Op = "cmdforeach.runE"
	pr := printer.FromContextOrDie(r.ctx)

	res, err := r.Foreach.Run(r.ctx, r.argv)
	if err != nil {
		return errors.E(op, err)
	}

	dests := make([]string, 0, len(res.Results))
	for dest := range res.Results {
		dests = append(dests, dest)
	}
	sort.Strings(dests)
	for _, dest := range dests {
		tr := res.Results[dest]
		opt := printer.NewOpt().Repo(dest)
		switch {
		case tr.Err != nil:
			pr.OptPrintf(opt, "error: %v\n", tr.Err)
		case !tr.Result.Success():
			pr.OptPrintf(opt, "exit %d\n%s", tr.Result.ExitCode,
				indent(tr.Result.Stderr))
		default:
			pr.OptPrintf(opt, "ok\n")
			if tr.Result.Stdout != "" {
				fmt.Fprint(pr.OutStream(), tr.Result.Stdout)
			}
		}
	}

	pr.Printf("\n%d succeeded, %d failed (%.1fs)\n",
		res.SuccessCount, res.FailureCount, res.Elapsed.Seconds())
	if res.FailureCount > 0 {
		return errors.E(op, fmt.Errorf("command failed in %d repositories", res.FailureCount))
	}
	return nil
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
	}
	return strings.Join(lines, "\n") + "\n"
}
