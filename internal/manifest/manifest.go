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

// Package manifest defines the workspace manifest: the YAML document
// naming every repository a workspace holds, the groups that partition
// them, and the defaults applied to entries that leave fields unset.
package manifest

import (
	"fmt"
	"net/url"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/repo"
	"github.com/tk-aria/wmgr-sub001/internal/scm"
	"github.com/tk-aria/wmgr-sub001/internal/types"
)

// DefaultGroupName is the group sync falls back to when the workspace
// configuration names none.
const DefaultGroupName = "default"

// RemoteEntry is a named remote of a manifest entry.
type RemoteEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// CopyOp copies a file out of a repository into the workspace after a
// sync.
type CopyOp struct {
	File string `yaml:"file"`
	Dest string `yaml:"dest"`
}

// SymlinkOp creates a symbolic link at Source, relative to the
// workspace root, whose content is Target verbatim.
type SymlinkOp struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// ManifestRepo is one repository entry as written in the manifest.
// Zero-valued fields pick up workspace defaults at resolution time.
type ManifestRepo struct {
	URL      string        `yaml:"url,omitempty"`
	Dest     string        `yaml:"dest"`
	Branch   string        `yaml:"branch,omitempty"`
	SHA1     string        `yaml:"sha1,omitempty"`
	Tag      string        `yaml:"tag,omitempty"`
	Remotes  []RemoteEntry `yaml:"remotes,omitempty"`
	Shallow  *bool         `yaml:"shallow,omitempty"`
	Bare     bool          `yaml:"bare,omitempty"`
	SCM      *scm.Type     `yaml:"scm,omitempty"`
	Copy     []CopyOp      `yaml:"copy,omitempty"`
	Symlinks []SymlinkOp   `yaml:"symlink,omitempty"`

	// Revision is an SCM-specific revision spec for systems that have
	// no commit hashes, such as svn revision numbers.
	Revision string `yaml:"revision,omitempty"`
	// ExtraOptions is passed through to the SCM client's clone
	// invocation verbatim.
	ExtraOptions []string `yaml:"extra_options,omitempty"`
}

// Group names a subset of the manifest's repositories by dest.
type Group struct {
	Repos       []string `yaml:"repos"`
	Description string   `yaml:"description,omitempty"`
}

// Defaults supplies values for fields a manifest entry leaves unset.
type Defaults struct {
	SCM     *scm.Type `yaml:"scm,omitempty"`
	Branch  string    `yaml:"branch,omitempty"`
	Remote  string    `yaml:"remote,omitempty"`
	Shallow *bool     `yaml:"shallow,omitempty"`
}

// Manifest is the parsed manifest document.
type Manifest struct {
	Version  string           `yaml:"version,omitempty"`
	Defaults Defaults         `yaml:"defaults,omitempty"`
	Groups   map[string]Group `yaml:"groups,omitempty"`
	Repos    []ManifestRepo   `yaml:"repos"`
}

// ReposInGroup returns the member entries of the named group in
// manifest order. An unknown group yields an empty slice.
func (m *Manifest) ReposInGroup(name string) []ManifestRepo {
	group, ok := m.Groups[name]
	if !ok {
		return nil
	}
	members := make(map[string]bool, len(group.Repos))
	for _, dest := range group.Repos {
		members[dest] = true
	}
	var out []ManifestRepo
	for _, r := range m.Repos {
		if members[r.Dest] {
			out = append(out, r)
		}
	}
	return out
}

// RepoByDest returns the entry with the given dest.
func (m *Manifest) RepoByDest(dest string) (ManifestRepo, bool) {
	for _, r := range m.Repos {
		if r.Dest == dest {
			return r, true
		}
	}
	return ManifestRepo{}, false
}

// GroupNames returns the declared group names, unordered.
func (m *Manifest) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for name := range m.Groups {
		names = append(names, name)
	}
	return names
}

// ApplyDefaults fills unset fields of every entry from the manifest's
// defaults. A default branch is only applied when the entry's SCM has
// branches, and a default shallow flag only when it supports shallow
// clones. Entries pinned to a commit or tag never receive a branch.
func (m *Manifest) ApplyDefaults() {
	for i := range m.Repos {
		r := &m.Repos[i]
		if r.SCM == nil && m.Defaults.SCM != nil {
			t := *m.Defaults.SCM
			r.SCM = &t
		}
		scmType := scm.Git
		if r.SCM != nil {
			scmType = *r.SCM
		}
		if r.Branch == "" && m.Defaults.Branch != "" &&
			scmType.SupportsBranches() && r.SHA1 == "" && r.Tag == "" {
			r.Branch = m.Defaults.Branch
		}
		if r.Shallow == nil && m.Defaults.Shallow != nil &&
			scmType.SupportsShallowClone() {
			v := *m.Defaults.Shallow
			r.Shallow = &v
		}
	}
}

// Validate checks the manifest's internal consistency: at least one
// repository, unique dests, valid URLs agreeing with each entry's SCM,
// non-empty groups whose members resolve to known dests.
func (m *Manifest) Validate() error {
	const op errors.Op = "manifest.Validate"
	if len(m.Repos) == 0 {
		return errors.E(op, errors.Manifest, fmt.Errorf("manifest has no repositories"))
	}
	seen := make(map[string]bool, len(m.Repos))
	for _, r := range m.Repos {
		if r.Dest == "" {
			return errors.E(op, errors.Manifest, fmt.Errorf("repository with url %q has no dest", r.URL))
		}
		if seen[r.Dest] {
			return errors.E(op, errors.Repo(r.Dest), errors.Manifest,
				fmt.Errorf("duplicate dest %q", r.Dest))
		}
		seen[r.Dest] = true
		if _, err := types.NewRelativePath(r.Dest); err != nil {
			return errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
		}
		if err := validateEntryURLs(r); err != nil {
			return errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
		}
		if r.Branch != "" {
			if _, err := types.NewBranchName(r.Branch); err != nil {
				return errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
			}
		}
		if r.Revision != "" && (r.SCM == nil || *r.SCM == scm.Git) {
			return errors.E(op, errors.Repo(r.Dest), errors.Validation,
				fmt.Errorf("revision is only valid for SCMs without commit hashes; use sha1"))
		}
	}
	for name, group := range m.Groups {
		if len(group.Repos) == 0 {
			return errors.E(op, errors.Manifest, fmt.Errorf("group %q is empty", name))
		}
		for _, dest := range group.Repos {
			if !seen[dest] {
				return errors.E(op, errors.Manifest,
					fmt.Errorf("group %q references unknown dest %q", name, dest))
			}
		}
	}
	return nil
}

func validateEntryURLs(r ManifestRepo) error {
	scmType := scm.Git
	if r.SCM != nil {
		scmType = *r.SCM
	}
	urls := make([]string, 0, len(r.Remotes)+1)
	if r.URL != "" {
		urls = append(urls, r.URL)
	}
	for _, rem := range r.Remotes {
		urls = append(urls, rem.URL)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no url or remotes")
	}
	for _, raw := range urls {
		if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
			if !scmType.ValidURLScheme(u.Scheme) {
				return fmt.Errorf("scheme %q is not valid for scm %s", u.Scheme, scmType)
			}
		}
		// Only git URLs have a canonical value-object form; other SCMs
		// pass their URLs to the client verbatim.
		if scmType == scm.Git {
			if _, err := types.NewGitURL(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// Repositories resolves every entry into a repo.Repository. Defaults
// must already be applied for them to take effect.
func (m *Manifest) Repositories() ([]repo.Repository, error) {
	out := make([]repo.Repository, 0, len(m.Repos))
	for _, r := range m.Repos {
		resolved, err := resolveRepo(r, m.Defaults)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func resolveRepo(r ManifestRepo, defaults Defaults) (repo.Repository, error) {
	const op errors.Op = "manifest.resolveRepo"

	dest, err := types.NewRelativePath(r.Dest)
	if err != nil {
		return repo.Repository{}, errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
	}

	scmType := scm.Git
	if r.SCM != nil {
		scmType = *r.SCM
	}

	// Only git URLs have a canonical value-object form; other SCMs keep
	// the manifest string verbatim, as validateEntryURLs allowed it.
	resolveRemote := func(name, raw string) (repo.Remote, error) {
		rem := repo.Remote{Name: name, RawURL: raw}
		if scmType == scm.Git {
			u, err := types.NewGitURL(raw)
			if err != nil {
				return repo.Remote{}, err
			}
			rem.URL = u
		}
		return rem, nil
	}

	var remotes []repo.Remote
	if len(r.Remotes) > 0 {
		for _, rem := range r.Remotes {
			name := rem.Name
			if name == "" {
				name = repo.OriginName
			}
			resolved, err := resolveRemote(name, rem.URL)
			if err != nil {
				return repo.Repository{}, errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
			}
			remotes = append(remotes, resolved)
		}
	} else {
		name := defaults.Remote
		if name == "" {
			name = repo.OriginName
		}
		resolved, err := resolveRemote(name, r.URL)
		if err != nil {
			return repo.Repository{}, errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
		}
		remotes = []repo.Remote{resolved}
	}

	resolved := repo.Repository{
		Dest:         dest,
		Remotes:      remotes,
		SHA1:         r.SHA1,
		Tag:          r.Tag,
		Revision:     r.Revision,
		ExtraOptions: r.ExtraOptions,
		IsBare:       r.Bare,
		SCM:          scmType,
	}
	if len(r.SHA1) == 40 {
		resolved.SHA1Full = r.SHA1
	}
	if r.Shallow != nil {
		resolved.Shallow = *r.Shallow
	}
	if r.Branch != "" {
		branch, err := types.NewBranchName(r.Branch)
		if err != nil {
			return repo.Repository{}, errors.E(op, errors.Repo(r.Dest), errors.Validation, err)
		}
		resolved.Branch = branch
		resolved.OrigBranch = branch
		resolved.IsDefaultBranch = defaults.Branch != "" && r.Branch == defaults.Branch
	}
	return resolved, nil
}
