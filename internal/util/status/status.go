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

// Package status inspects every repository of a workspace and reduces
// each one to a single state.
package status

import (
	"context"
	"os"
	"sync"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/repo"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// State is the single classification of a repository checkout.
type State int

// States in decreasing precedence. When several apply, the
// highest-precedence one wins.
const (
	// Missing means the checkout directory or its SCM metadata does not
	// exist.
	Missing State = iota
	// Error means a probe command failed.
	Error
	// WrongBranch means the checkout is on a different branch than the
	// manifest wants.
	WrongBranch
	// Dirty means the work tree has staged, modified or untracked
	// entries.
	Dirty
	// OutOfSync means the branch and tree are right but HEAD diverges
	// from upstream.
	OutOfSync
	// Clean means nothing to do.
	Clean
)

func (s State) String() string {
	switch s {
	case Missing:
		return "missing"
	case Error:
		return "error"
	case WrongBranch:
		return "wrong branch"
	case Dirty:
		return "dirty"
	case OutOfSync:
		return "out of sync"
	default:
		return "clean"
	}
}

// probe carries everything classify needs about one checkout.
type probe struct {
	exists         bool
	err            error
	currentBranch  string
	expectedBranch string
	fixedRef       bool
	counts         gitutil.StatusCounts
	ahead          int
	behind         int
}

// classify reduces a probe to a State. Precedence: Missing, Error,
// WrongBranch, Dirty, OutOfSync, Clean; the first that applies wins.
// Fixed-ref checkouts are never WrongBranch.
func classify(p probe) State {
	switch {
	case !p.exists:
		return Missing
	case p.err != nil:
		return Error
	case !p.fixedRef && p.expectedBranch != "" && p.currentBranch != p.expectedBranch:
		return WrongBranch
	case !p.counts.Clean():
		return Dirty
	case p.ahead != 0 || p.behind != 0:
		return OutOfSync
	default:
		return Clean
	}
}

// RepositoryStatus is the probed state of one repository.
type RepositoryStatus struct {
	Dest           string
	State          State
	Branch         string
	ExpectedBranch string
	Staged         int
	Modified       int
	Untracked      int
	Ahead          int
	Behind         int
	Err            error
}

// Result aggregates a status run over a workspace.
type Result struct {
	// Statuses in manifest order.
	Statuses []RepositoryStatus

	CleanCount   int
	DirtyCount   int
	MissingCount int
	ErrorCount   int
	WrongBranch  int
	OutOfSync    int
}

// AllClean reports whether every repository is clean.
func (r *Result) AllClean() bool {
	return r.CleanCount == len(r.Statuses)
}

// Command probes the filtered repositories of a workspace.
type Command struct {
	Workspace *workspace.Workspace
	// Groups overrides the workspace's configured groups when non-empty.
	Groups []string
	// MaxParallel bounds concurrent probes. Zero means 4.
	MaxParallel int
}

// Run probes every selected repository and aggregates the results in
// manifest order.
func (c *Command) Run(ctx context.Context) (*Result, error) {
	const op errors.Op = "status.Run"
	if c.Workspace == nil || !c.Workspace.IsInitialized() {
		return nil, errors.E(op, errors.Workspace, "workspace is not initialized")
	}

	repos := c.Workspace.FilterReposByGroups(c.Groups)
	statuses := make([]RepositoryStatus, len(repos))

	limit := c.MaxParallel
	if limit <= 0 {
		limit = 4
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, r := range repos {
		i, r := i, r
		g.Go(func() error {
			st := c.probeRepo(gctx, r)
			mu.Lock()
			statuses[i] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := &Result{Statuses: statuses}
	for _, st := range statuses {
		switch st.State {
		case Clean:
			out.CleanCount++
		case Dirty:
			out.DirtyCount++
		case Missing:
			out.MissingCount++
		case Error:
			out.ErrorCount++
		case WrongBranch:
			out.WrongBranch++
		case OutOfSync:
			out.OutOfSync++
		}
	}
	return out, nil
}

func (c *Command) probeRepo(ctx context.Context, r repo.Repository) RepositoryStatus {
	dest := r.Dest.String()
	st := RepositoryStatus{
		Dest:           dest,
		ExpectedBranch: r.Branch.String(),
	}
	p := probe{
		expectedBranch: r.Branch.String(),
		fixedRef:       r.HasFixedRef() || !r.SCM.SupportsBranches(),
	}

	path := c.Workspace.RepoPath(dest)
	if fi, err := os.Stat(path); err == nil && fi.IsDir() && gitutil.IsRepo(ctx, path) {
		p.exists = true
	}
	if p.exists {
		g, err := gitutil.NewRunner(path)
		if err != nil {
			p.err = err
		} else {
			p.currentBranch, p.err = g.CurrentBranch(ctx)
			if p.err == nil {
				p.counts, p.err = g.Status(ctx)
			}
			// Pinned checkouts sit on a detached HEAD with no
			// upstream to diverge from.
			if p.err == nil && !p.fixedRef {
				p.ahead, p.behind, p.err = g.AheadBehind(ctx)
			}
		}
	}

	st.State = classify(p)
	st.Branch = p.currentBranch
	st.Staged = p.counts.Staged
	st.Modified = p.counts.Modified
	st.Untracked = p.counts.Untracked
	st.Ahead = p.ahead
	st.Behind = p.behind
	st.Err = p.err
	return st
}
