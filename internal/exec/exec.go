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

// Package exec runs external commands for the sync, status and foreach
// engines: single commands with timeouts and process-group cleanup,
// and batches under a concurrency bound.
package exec

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"os"
	osexec "os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"golang.org/x/sync/errgroup"
)

// Config controls how a single command runs.
type Config struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env entries are appended to the environment in KEY=VALUE form.
	Env []string
	// Timeout bounds the run. Zero means no bound beyond the context.
	Timeout time.Duration
	// InheritEnv includes the parent process environment. Config.Env
	// entries win on conflict.
	InheritEnv bool
}

// Result is the outcome of a completed command. A Result exists only
// for commands that ran to termination; spawn failures and timeouts
// surface as errors instead.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Run executes argv and captures its output. The child runs in its own
// process group; when the timeout or ctx expires the whole group is
// killed and Run returns a Timeout- or Canceled-kind error with no
// partial Result.
func Run(ctx context.Context, argv []string, cfg Config) (*Result, error) {
	const op errors.Op = "exec.Run"
	if len(argv) == 0 {
		return nil, errors.E(op, errors.InvalidParam, fmt.Errorf("empty argv"))
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cfg.Dir
	if cfg.InheritEnv {
		cmd.Env = append(os.Environ(), cfg.Env...)
	} else {
		// An empty non-nil slice keeps os/exec from falling back to the
		// parent environment.
		cmd.Env = append([]string{}, cfg.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Each child gets its own process group so an expired deadline
	// takes its descendants down with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := errors.Canceled
		if ctxErr == context.DeadlineExceeded {
			kind = errors.Timeout
		}
		return nil, errors.E(op, kind,
			fmt.Errorf("%s: %w after %v", argv[0], ctxErr, elapsed.Round(time.Millisecond)))
	}
	if err != nil {
		var exitErr *osexec.ExitError
		if goerrors.As(err, &exitErr) {
			return &Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				Duration: elapsed,
			}, nil
		}
		return nil, errors.E(op, errors.Exec, fmt.Errorf("starting %s: %w", argv[0], err))
	}
	return &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

// Task is one command in a parallel batch. IDs must be unique within
// the batch.
type Task struct {
	ID     string
	Argv   []string
	Config Config
}

// TaskResult pairs a task's Result with the error that replaced it.
// Exactly one of the fields is set.
type TaskResult struct {
	Result *Result
	Err    error
}

// Success reports whether the task ran and exited zero.
func (t TaskResult) Success() bool {
	return t.Err == nil && t.Result != nil && t.Result.Success()
}

// ParallelConfig controls a RunParallel batch.
type ParallelConfig struct {
	// MaxConcurrency bounds how many tasks run at once. Zero or
	// negative means 4.
	MaxConcurrency int
}

const defaultConcurrency = 4

// ParallelResult aggregates a completed batch. SuccessCount plus
// FailureCount always equals the number of tasks submitted.
type ParallelResult struct {
	Results      map[string]TaskResult
	SuccessCount int
	FailureCount int
	Elapsed      time.Duration
}

// RunParallel executes every task under the concurrency bound. A
// failing task is recorded in its TaskResult and never disturbs its
// siblings; RunParallel itself only errors on duplicate task IDs.
func RunParallel(ctx context.Context, tasks []Task, cfg ParallelConfig) (*ParallelResult, error) {
	const op errors.Op = "exec.RunParallel"

	limit := cfg.MaxConcurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	out := &ParallelResult{Results: make(map[string]TaskResult, len(tasks))}
	for _, t := range tasks {
		if _, dup := out.Results[t.ID]; dup {
			return nil, errors.E(op, errors.InvalidParam, fmt.Errorf("duplicate task id %q", t.ID))
		}
		out.Results[t.ID] = TaskResult{}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	start := time.Now()
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			res, err := Run(gctx, t.Argv, t.Config)
			mu.Lock()
			out.Results[t.ID] = TaskResult{Result: res, Err: err}
			mu.Unlock()
			// Task failures are per-task data, not group errors.
			return nil
		})
	}
	_ = g.Wait()
	out.Elapsed = time.Since(start)

	for _, tr := range out.Results {
		if tr.Success() {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	return out, nil
}
