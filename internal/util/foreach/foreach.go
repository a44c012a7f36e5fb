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

// Package foreach runs an arbitrary command in every repository of a
// workspace.
package foreach

import (
	"context"
	"time"

	"github.com/google/shlex"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/exec"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
)

// Environment variables injected into every spawned command.
const (
	// EnvDest is the manifest dest of the repository the command runs
	// in.
	EnvDest = "WMGR_DEST"
	// EnvWorkspace is the absolute workspace root.
	EnvWorkspace = "WMGR_WORKSPACE"
)

// Command runs a shell command in the filtered repositories.
type Command struct {
	Workspace *workspace.Workspace
	// Groups overrides the workspace's configured groups when non-empty.
	Groups []string
	// MaxParallel bounds concurrent commands. One serializes them.
	MaxParallel int
	// Timeout bounds each command. Zero means no bound.
	Timeout time.Duration
	// StopOnError runs the repositories one at a time and stops at the
	// first failure. Repositories never reached are absent from the
	// results.
	StopOnError bool
}

// Parse splits a shell-quoted command line into argv.
func Parse(cmdline string) ([]string, error) {
	const op errors.Op = "foreach.Parse"
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, errors.E(op, errors.InvalidParam, err)
	}
	if len(argv) == 0 {
		return nil, errors.E(op, errors.InvalidParam, "empty command")
	}
	return argv, nil
}

// Run executes argv in every selected repository and returns the
// aggregated results keyed by dest. A failing repository never stops
// its siblings.
func (c *Command) Run(ctx context.Context, argv []string) (*exec.ParallelResult, error) {
	const op errors.Op = "foreach.Run"
	if c.Workspace == nil || !c.Workspace.IsInitialized() {
		return nil, errors.E(op, errors.Workspace, "workspace is not initialized")
	}
	if len(argv) == 0 {
		return nil, errors.E(op, errors.InvalidParam, "empty command")
	}

	repos := c.Workspace.FilterReposByGroups(c.Groups)
	tasks := make([]exec.Task, 0, len(repos))
	for _, r := range repos {
		dest := r.Dest.String()
		tasks = append(tasks, exec.Task{
			ID:   dest,
			Argv: argv,
			Config: exec.Config{
				Dir: c.Workspace.RepoPath(dest),
				Env: []string{
					EnvDest + "=" + dest,
					EnvWorkspace + "=" + c.Workspace.Root,
				},
				Timeout:    c.Timeout,
				InheritEnv: true,
			},
		})
	}
	if c.StopOnError {
		return runSerial(ctx, tasks), nil
	}
	res, err := exec.RunParallel(ctx, tasks, exec.ParallelConfig{MaxConcurrency: c.MaxParallel})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return res, nil
}

// runSerial executes the tasks one by one and stops at the first
// failure.
func runSerial(ctx context.Context, tasks []exec.Task) *exec.ParallelResult {
	out := &exec.ParallelResult{Results: make(map[string]exec.TaskResult, len(tasks))}
	start := time.Now()
	for _, t := range tasks {
		res, err := exec.Run(ctx, t.Argv, t.Config)
		tr := exec.TaskResult{Result: res, Err: err}
		out.Results[t.ID] = tr
		if tr.Success() {
			out.SuccessCount++
		} else {
			out.FailureCount++
			break
		}
	}
	out.Elapsed = time.Since(start)
	return out
}
