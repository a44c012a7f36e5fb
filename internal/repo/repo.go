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

// Package repo defines the resolved repository entity the sync and
// status engines operate on. A repo.Repository is a manifest entry with
// defaults applied and its values validated into types.
package repo

import (
	"github.com/tk-aria/wmgr-sub001/internal/scm"
	"github.com/tk-aria/wmgr-sub001/internal/types"
)

// OriginName is the conventional name of the primary remote.
const OriginName = "origin"

// Remote is a named remote of a repository. URL is the canonical form
// for git repositories and zero for SCMs whose URLs have no canonical
// value-object form; RawURL always carries the manifest string verbatim.
type Remote struct {
	Name   string
	URL    types.GitURL
	RawURL string
}

// Repository is a fully resolved workspace member.
type Repository struct {
	// Dest is the checkout path relative to the workspace root.
	Dest types.FilePath
	// Remotes holds the configured remotes. The first entry is the one
	// cloned from.
	Remotes []Remote
	// Branch is the branch the checkout should be on. Zero when the SCM
	// has no branches or a fixed ref is set.
	Branch types.BranchName
	// OrigBranch is the branch named by the manifest before any default
	// was applied. Used for reporting.
	OrigBranch types.BranchName
	// KeepBranch disables branch correction for this repository.
	KeepBranch bool
	// IsDefaultBranch records that Branch came from a workspace default
	// rather than the manifest entry.
	IsDefaultBranch bool
	// SHA1 pins the checkout to a commit. Abbreviated form accepted.
	SHA1 string
	// SHA1Full is the full 40-character form of SHA1 when the manifest
	// pins a complete hash. Empty for abbreviated pins.
	SHA1Full string
	// Tag pins the checkout to a tag. Takes precedence over Branch.
	Tag string
	// Revision pins the checkout for SCMs without commit hashes, such
	// as svn revision numbers.
	Revision string
	// ExtraOptions are passed to the SCM client's clone invocation
	// verbatim.
	ExtraOptions []string
	// Shallow requests a truncated-history clone.
	Shallow bool
	// IsBare requests a bare clone with no worktree.
	IsBare bool
	// SCM names the source control system.
	SCM scm.Type
}

// CloneURL returns the URL the repository is cloned from: the first
// remote.
func (r *Repository) CloneURL() (types.GitURL, bool) {
	if len(r.Remotes) == 0 {
		return types.GitURL{}, false
	}
	return r.Remotes[0].URL, true
}

// Remote returns the remote with the given name.
func (r *Repository) Remote(name string) (Remote, bool) {
	for _, rem := range r.Remotes {
		if rem.Name == name {
			return rem, true
		}
	}
	return Remote{}, false
}

// Origin returns the remote named "origin", falling back to the first
// remote when none carries that name.
func (r *Repository) Origin() (Remote, bool) {
	if rem, ok := r.Remote(OriginName); ok {
		return rem, true
	}
	if len(r.Remotes) == 0 {
		return Remote{}, false
	}
	return r.Remotes[0], true
}

// HasFixedRef reports whether the checkout is pinned to a commit, tag
// or revision. Fixed-ref repositories are never branch-corrected.
func (r *Repository) HasFixedRef() bool {
	return r.SHA1 != "" || r.Tag != "" || r.Revision != ""
}

// TrackedRef returns the ref sync should check out: tag over commit
// over branch.
func (r *Repository) TrackedRef() string {
	switch {
	case r.Tag != "":
		return r.Tag
	case r.SHA1 != "":
		return r.SHA1
	default:
		return r.Branch.String()
	}
}
