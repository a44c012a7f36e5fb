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

// Package sync brings every repository of a workspace in line with its
// manifest: cloning the missing ones, fetching and fast-forwarding the
// rest, correcting branches and remote URLs, and applying the
// manifest's file operations.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/fileops"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/repo"
	"github.com/tk-aria/wmgr-sub001/internal/scm"
	"github.com/tk-aria/wmgr-sub001/internal/types"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
	"golang.org/x/sync/errgroup"
)

// Action is what sync did to one repository.
type Action int

const (
	// ActionCloned means the repository was cloned fresh.
	ActionCloned Action = iota
	// ActionUpdated means an existing checkout was fetched or moved.
	ActionUpdated
	// ActionSkipped means the checkout was already in the wanted state
	// or was left alone.
	ActionSkipped
	// ActionFailed means the repository could not be brought in line.
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionCloned:
		return "cloned"
	case ActionUpdated:
		return "updated"
	case ActionSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// RepoOutcome is the per-repository result of a sync run.
type RepoOutcome struct {
	Dest   string
	Action Action
	Err    error
}

// Result aggregates a sync run. Cloned+Updated+Skipped+len(Errors)
// covers every selected repository.
type Result struct {
	Outcomes []RepoOutcome
	Cloned   int
	Updated  int
	Skipped  int
	Errors   []RepoOutcome

	// FileOps are the results of the post-sync copy and symlink
	// operations.
	FileOps []fileops.OpResult
}

// Success reports whether every repository synced.
func (r *Result) Success() bool { return len(r.Errors) == 0 }

// Command syncs the filtered repositories of a workspace.
type Command struct {
	Workspace *workspace.Workspace
	// Groups overrides the workspace's configured groups when non-empty.
	Groups []string
	// Force corrects branches even over a dirty work tree.
	Force bool
	// NoCorrectBranch leaves checkouts on whatever branch they are on.
	NoCorrectBranch bool
	// MaxParallel bounds concurrent repository syncs. Zero means 4.
	MaxParallel int
	// Timeout bounds each git command. Zero means no bound.
	Timeout time.Duration
}

// Run syncs every selected repository and then applies the manifest's
// file operations. Per-repository failures are collected, never fatal
// to the run.
func (c *Command) Run(ctx context.Context) (*Result, error) {
	const op errors.Op = "sync.Run"
	if c.Workspace == nil || !c.Workspace.IsInitialized() {
		return nil, errors.E(op, errors.Workspace, "workspace is not initialized")
	}
	pr := printer.FromContextOrDie(ctx)

	repos := c.Workspace.FilterReposByGroups(c.Groups)
	outcomes := make([]RepoOutcome, len(repos))

	limit := c.MaxParallel
	if limit <= 0 {
		limit = 4
	}
	var mu gosync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, r := range repos {
		i, r := i, r
		g.Go(func() error {
			out := c.syncRepo(gctx, r)
			pr.OptPrintf(printer.NewOpt().Repo(out.Dest), "%s\n", out.Action)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Outcomes: outcomes}
	for _, out := range outcomes {
		switch out.Action {
		case ActionCloned:
			res.Cloned++
		case ActionUpdated:
			res.Updated++
		case ActionSkipped:
			res.Skipped++
		case ActionFailed:
			res.Errors = append(res.Errors, out)
		}
	}

	res.FileOps = c.runFileOps(repos)
	for _, fo := range res.FileOps {
		if fo.Err != nil {
			res.Errors = append(res.Errors, RepoOutcome{
				Dest:   fo.Dest,
				Action: ActionFailed,
				Err:    fo.Err,
			})
		}
	}
	return res, nil
}

func (c *Command) syncRepo(ctx context.Context, r repo.Repository) RepoOutcome {
	dest := r.Dest.String()
	out := RepoOutcome{Dest: dest}

	// Only git has an executor; other SCMs carry capability entries but
	// cannot be cloned or updated here.
	if r.SCM != scm.Git {
		out.Action = ActionFailed
		out.Err = errors.E(errors.Op("sync.repo"), errors.Repo(dest), errors.Exec,
			fmt.Sprintf("%s repositories cannot be synced", r.SCM))
		return out
	}

	path := c.Workspace.RepoPath(dest)
	exists := false
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		exists = gitutil.IsRepo(ctx, path)
	}

	var err error
	if !exists {
		err = c.cloneRepo(ctx, r, path)
		if err == nil {
			out.Action = ActionCloned
			return out
		}
	} else {
		var updated bool
		updated, err = c.updateRepo(ctx, r, path)
		if err == nil {
			if updated {
				out.Action = ActionUpdated
			} else {
				out.Action = ActionSkipped
			}
			return out
		}
	}
	out.Action = ActionFailed
	gitutil.AmendExecError(err, func(e *gitutil.ExecError) {
		if e.Repo == "" {
			e.Repo = dest
		}
		if e.Ref == "" {
			e.Ref = r.TrackedRef()
		}
	})
	out.Err = errors.E(errors.Op("sync.repo"), errors.Repo(dest), err)
	return out
}

func (c *Command) cloneRepo(ctx context.Context, r repo.Repository, path string) error {
	url, ok := r.CloneURL()
	if !ok {
		return errors.E(errors.Op("sync.clone"), errors.Manifest, "repository has no remotes")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	g, err := gitutil.NewRunner(filepath.Dir(path))
	if err != nil {
		return err
	}
	g.Timeout = c.Timeout

	origin, _ := r.Origin()
	opts := gitutil.CloneOptions{
		URL:       url,
		Dest:      path,
		Remote:    origin.Name,
		Bare:      r.IsBare,
		ExtraArgs: r.ExtraOptions,
	}
	// A fixed ref needs full history to resolve; a branch clone can be
	// shallow.
	if !r.HasFixedRef() {
		if r.SCM.SupportsBranches() && !r.Branch.IsZero() {
			opts.Branch = r.Branch.String()
		}
		opts.Shallow = r.Shallow && r.SCM.SupportsShallowClone()
	}
	if err := g.Clone(ctx, opts); err != nil {
		return err
	}

	cloned, err := gitutil.NewRunner(path)
	if err != nil {
		return err
	}
	cloned.Timeout = c.Timeout
	if r.HasFixedRef() {
		if err := cloned.CheckoutDetached(ctx, r.TrackedRef()); err != nil {
			return err
		}
	}
	// Register the secondary remotes.
	for i, rem := range r.Remotes {
		if i == 0 || c.singularRemote() {
			continue
		}
		if err := cloned.AddRemote(ctx, rem.Name, rem.URL); err != nil {
			return err
		}
	}
	return nil
}

// updateRepo brings an existing checkout in line. It reports whether
// anything changed.
func (c *Command) updateRepo(ctx context.Context, r repo.Repository, path string) (bool, error) {
	g, err := gitutil.NewRunner(path)
	if err != nil {
		return false, err
	}
	g.Timeout = c.Timeout
	updated := false

	origin, hasOrigin := r.Origin()
	if hasOrigin {
		changed, err := c.correctRemote(ctx, g, origin)
		if err != nil {
			return updated, err
		}
		updated = updated || changed
		if err := g.Fetch(ctx, origin.Name); err != nil {
			return updated, err
		}
	}

	if r.HasFixedRef() {
		// Pinned checkouts move only when the pin moved.
		head, err := g.HeadSHA(ctx)
		if err != nil {
			return updated, err
		}
		want, err := g.ResolveSHA(ctx, r.TrackedRef())
		if err != nil {
			return updated, err
		}
		if head != want {
			if err := g.CheckoutDetached(ctx, r.TrackedRef()); err != nil {
				return updated, err
			}
			updated = true
		}
		return updated, nil
	}

	if r.SCM.SupportsBranches() && !r.Branch.IsZero() &&
		!c.NoCorrectBranch && !r.KeepBranch {
		current, err := g.CurrentBranch(ctx)
		if err != nil {
			return updated, err
		}
		if current != r.Branch.String() {
			counts, err := g.Status(ctx)
			if err != nil {
				return updated, err
			}
			if !counts.Clean() && !c.Force {
				return updated, errors.E(errors.Op("sync.correctBranch"), errors.Git,
					"work tree is dirty, not switching branch (use --force)")
			}
			if err := g.Checkout(ctx, r.Branch.String()); err != nil {
				return updated, err
			}
			updated = true
		}
	}

	_, behind, err := g.AheadBehind(ctx)
	if err != nil {
		return updated, err
	}
	if behind > 0 {
		if err := g.MergeFastForward(ctx); err != nil {
			return updated, err
		}
		updated = true
	}
	return updated, nil
}

// correctRemote repoints the primary remote when the manifest moved to
// a different repository. Equivalent spellings of the same repository
// are left alone.
func (c *Command) correctRemote(ctx context.Context, g *gitutil.Runner, origin repo.Remote) (bool, error) {
	current, err := g.RemoteURL(ctx, origin.Name)
	if err != nil {
		var execErr *gitutil.ExecError
		if errors.As(err, &execErr) {
			// Remote missing entirely: add it.
			if addErr := g.AddRemote(ctx, origin.Name, origin.URL); addErr != nil {
				return false, addErr
			}
			return true, nil
		}
		return false, err
	}
	parsed, err := types.NewGitURL(current)
	if err == nil && parsed.SameRepo(origin.URL) {
		return false, nil
	}
	if err := g.SetRemoteURL(ctx, origin.Name, origin.URL); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Command) singularRemote() bool {
	return c.Workspace.Config != nil && c.Workspace.Config.SingularRemote
}

// runFileOps applies the manifest's copy and symlink operations for the
// synced repositories. Copy sources are relative to the repository,
// destinations relative to the workspace root. Symlinks are created at
// the entry's source path and point at its target verbatim.
func (c *Command) runFileOps(repos []repo.Repository) []fileops.OpResult {
	root, err := types.NewAbsolutePath(c.Workspace.Root)
	if err != nil {
		return nil
	}
	proc := &fileops.Processor{WorkspaceRoot: root, CreateBackups: true}

	var ops []fileops.Operation
	for _, r := range repos {
		mr, ok := c.Workspace.Manifest.RepoByDest(r.Dest.String())
		if !ok {
			continue
		}
		for _, cp := range mr.Copy {
			ops = append(ops, fileops.Operation{
				Kind:   fileops.OpCopy,
				Source: filepath.Join(mr.Dest, cp.File),
				Dest:   cp.Dest,
			})
		}
		for _, ln := range mr.Symlinks {
			ops = append(ops, fileops.Operation{
				Kind:   fileops.OpSymlink,
				Source: ln.Source,
				Dest:   ln.Target,
			})
		}
	}
	if len(ops) == 0 {
		return nil
	}
	return proc.Process(ops)
}
