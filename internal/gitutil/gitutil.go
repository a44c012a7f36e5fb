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

// Package gitutil drives the git command-line client for the sync and
// status engines. All repository access goes through the external git
// binary; nothing here links a git implementation.
package gitutil

import (
	"context"
	"fmt"
	osexec "os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/exec"
	"github.com/tk-aria/wmgr-sub001/internal/types"
)

// NewRunner returns a Runner for the repository at dir.
func NewRunner(dir string) (*Runner, error) {
	const op errors.Op = "gitutil.NewRunner"
	p, err := osexec.LookPath("git")
	if err != nil {
		return nil, errors.E(op, errors.Git,
			fmt.Errorf("no 'git' program on path: %w", err))
	}
	return &Runner{gitPath: p, Dir: dir}, nil
}

// Runner runs git commands in a local git repo.
type Runner struct {
	// Path to the git executable.
	gitPath string

	// Dir is the directory the commands are run in.
	Dir string

	// Timeout bounds each command. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

type RunResult struct {
	Stdout string
	Stderr string
}

// Run runs a git command in the runner's directory. Omit the 'git'
// part of the command.
func (g *Runner) Run(ctx context.Context, args ...string) (RunResult, error) {
	return g.RunWithTimeout(ctx, g.Timeout, args...)
}

// RunWithTimeout runs a git command under an explicit timeout.
func (g *Runner) RunWithTimeout(ctx context.Context, timeout time.Duration, args ...string) (RunResult, error) {
	const op errors.Op = "gitutil.Run"

	argv := append([]string{g.gitPath}, args...)
	res, err := exec.Run(ctx, argv, exec.Config{
		Dir:        g.Dir,
		Timeout:    timeout,
		InheritEnv: true,
	})
	if err != nil {
		return RunResult{}, errors.E(op, errors.Git, err)
	}
	if !res.Success() {
		return RunResult{}, errors.E(op, errors.Git, &ExecError{
			Type:   classifyExecError(res.Stderr),
			Args:   args,
			Err:    fmt.Errorf("git exited %d", res.ExitCode),
			StdOut: res.Stdout,
			StdErr: res.Stderr,
		})
	}
	return RunResult{Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(ctx context.Context, dir string) bool {
	g, err := NewRunner(dir)
	if err != nil {
		return false
	}
	rr, err := g.Run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(rr.Stdout) == "true"
}

// CurrentBranch returns the checked-out branch, or "" when HEAD is
// detached.
func (g *Runner) CurrentBranch(ctx context.Context) (string, error) {
	rr, err := g.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(rr.Stdout)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// HeadSHA returns the full commit hash of HEAD.
func (g *Runner) HeadSHA(ctx context.Context) (string, error) {
	rr, err := g.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// ResolveSHA expands ref into a full commit hash.
func (g *Runner) ResolveSHA(ctx context.Context, ref string) (string, error) {
	rr, err := g.Run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// StatusCounts summarizes `git status --porcelain` output.
type StatusCounts struct {
	Staged    int
	Modified  int
	Untracked int
}

// Clean reports whether the work tree has no changes of any kind.
func (s StatusCounts) Clean() bool {
	return s.Staged == 0 && s.Modified == 0 && s.Untracked == 0
}

// Status counts the work tree's staged, modified and untracked entries.
func (g *Runner) Status(ctx context.Context) (StatusCounts, error) {
	rr, err := g.Run(ctx, "status", "--porcelain")
	if err != nil {
		return StatusCounts{}, err
	}
	return parsePorcelain(rr.Stdout), nil
}

func parsePorcelain(out string) StatusCounts {
	var counts StatusCounts
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 2 {
			continue
		}
		x, y := line[0], line[1]
		if x == '?' && y == '?' {
			counts.Untracked++
			continue
		}
		if x != ' ' && x != '?' {
			counts.Staged++
		}
		if y != ' ' && y != '?' {
			counts.Modified++
		}
	}
	return counts
}

// AheadBehind counts the commits HEAD is ahead of and behind its
// upstream. No upstream and a detached HEAD both yield zeros.
func (g *Runner) AheadBehind(ctx context.Context) (ahead, behind int, err error) {
	rr, err := g.Run(ctx, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) &&
			(strings.Contains(execErr.StdErr, "no upstream") ||
				strings.Contains(execErr.StdErr, "does not point to a branch")) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	fields := strings.Fields(rr.Stdout)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", rr.Stdout)
	}
	ahead, _ = strconv.Atoi(fields[0])
	behind, _ = strconv.Atoi(fields[1])
	return ahead, behind, nil
}

// RemoteURL returns the fetch URL of the named remote.
func (g *Runner) RemoteURL(ctx context.Context, name string) (string, error) {
	rr, err := g.Run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rr.Stdout), nil
}

// CloneOptions select how Clone materializes a repository.
type CloneOptions struct {
	// URL to clone from.
	URL types.GitURL
	// Dest is the absolute directory to clone into.
	Dest string
	// Branch checks out a branch instead of the remote HEAD.
	Branch string
	// RemoteName names the primary remote. Empty means origin.
	Remote string
	// Shallow truncates history to a single commit.
	Shallow bool
	// Bare clones without a work tree.
	Bare bool
	// ExtraArgs are appended to the clone invocation verbatim, before
	// the URL.
	ExtraArgs []string
}

// Clone clones a repository. The runner's Dir is the parent the clone
// command runs from; opts.Dest is where the checkout lands.
func (g *Runner) Clone(ctx context.Context, opts CloneOptions) error {
	args := []string{"clone"}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	if opts.Remote != "" {
		args = append(args, "--origin", opts.Remote)
	}
	if opts.Shallow {
		args = append(args, "--depth", "1")
	}
	if opts.Bare {
		args = append(args, "--bare")
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.URL.CloneURL(), opts.Dest)
	_, err := g.Run(ctx, args...)
	return err
}

// Fetch updates the named remote.
func (g *Runner) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	_, err := g.Run(ctx, "fetch", "--tags", remote)
	return err
}

// Checkout switches the work tree to branch.
func (g *Runner) Checkout(ctx context.Context, branch string) error {
	_, err := g.Run(ctx, "checkout", branch)
	return err
}

// CheckoutDetached detaches HEAD at ref. Used for entries pinned to a
// commit or tag.
func (g *Runner) CheckoutDetached(ctx context.Context, ref string) error {
	_, err := g.Run(ctx, "checkout", "--detach", ref)
	return err
}

// MergeFastForward merges the upstream of the current branch,
// fast-forward only.
func (g *Runner) MergeFastForward(ctx context.Context) error {
	_, err := g.Run(ctx, "merge", "--ff-only", "@{upstream}")
	return err
}

// AddRemote registers a new remote.
func (g *Runner) AddRemote(ctx context.Context, name string, url types.GitURL) error {
	_, err := g.Run(ctx, "remote", "add", name, url.CloneURL())
	return err
}

// SetRemoteURL repoints an existing remote.
func (g *Runner) SetRemoteURL(ctx context.Context, name string, url types.GitURL) error {
	_, err := g.Run(ctx, "remote", "set-url", name, url.CloneURL())
	return err
}
