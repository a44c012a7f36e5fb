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

// Package workspace models a wmgr workspace: a directory marked by a
// .wmgr/ dir holding the workspace configuration and the manifest that
// lists its repositories.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
	"github.com/tk-aria/wmgr-sub001/internal/repo"
	"gopkg.in/yaml.v3"
)

const (
	// MarkerDir is the directory that marks a workspace root.
	MarkerDir = ".wmgr"
	// ConfigFile is the workspace configuration file inside MarkerDir.
	ConfigFile = "config.yml"
	// ManifestFile is the pinned manifest inside MarkerDir.
	ManifestFile = "manifest.yml"
)

// Config is the per-workspace configuration persisted at init time.
type Config struct {
	// ManifestURL is where the manifest came from: a repository URL or
	// a local path.
	ManifestURL string `yaml:"manifest_url"`
	// ManifestBranch is the branch of the manifest repository to track.
	ManifestBranch string `yaml:"manifest_branch,omitempty"`
	// ShallowClones makes every clone shallow unless the entry says
	// otherwise.
	ShallowClones bool `yaml:"shallow_clones,omitempty"`
	// RepoGroups selects which manifest groups sync operates on.
	RepoGroups []string `yaml:"repo_groups,omitempty"`
	// CloneAllRepos ignores group filtering and syncs every entry.
	CloneAllRepos bool `yaml:"clone_all_repos,omitempty"`
	// SingularRemote forces a single remote per repository even when
	// the manifest declares more.
	SingularRemote bool `yaml:"singular_remote,omitempty"`
}

// Groups returns the configured groups, defaulting to ["default"].
func (c *Config) Groups() []string {
	if len(c.RepoGroups) == 0 {
		return []string{manifest.DefaultGroupName}
	}
	return c.RepoGroups
}

// Status describes what Load found at a workspace root.
type Status int

const (
	// Uninitialized means no marker directory exists.
	Uninitialized Status = iota
	// Initialized means config and manifest loaded cleanly.
	Initialized
	// Corrupted means the marker exists but its contents are unreadable
	// or invalid.
	Corrupted
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Corrupted:
		return "corrupted"
	default:
		return "uninitialized"
	}
}

// Workspace is a loaded workspace.
type Workspace struct {
	// Root is the absolute workspace root directory.
	Root string
	// Status reports what Load found.
	Status Status
	// Config is the persisted configuration. Nil unless Initialized.
	Config *Config
	// Manifest is the pinned manifest. Nil unless Initialized.
	Manifest *manifest.Manifest
	// Repositories is the manifest resolved into entities, in manifest
	// order. Nil unless Initialized.
	Repositories []repo.Repository
}

// IsInitialized reports whether the workspace loaded cleanly.
func (w *Workspace) IsInitialized() bool { return w.Status == Initialized }

// IsCorrupted reports whether the marker exists but could not be read.
func (w *Workspace) IsCorrupted() bool { return w.Status == Corrupted }

func (w *Workspace) markerPath() string   { return filepath.Join(w.Root, MarkerDir) }
func (w *Workspace) configPath() string   { return filepath.Join(w.Root, MarkerDir, ConfigFile) }
func (w *Workspace) manifestPath() string { return filepath.Join(w.Root, MarkerDir, ManifestFile) }

// ManifestPath returns where the pinned manifest lives on disk.
func (w *Workspace) ManifestPath() string { return w.manifestPath() }

// RepoPath returns the absolute checkout path for a manifest dest.
func (w *Workspace) RepoPath(dest string) string {
	return filepath.Join(w.Root, filepath.FromSlash(dest))
}

// Find returns the resolved repository with the given dest.
func (w *Workspace) Find(dest string) (repo.Repository, bool) {
	for _, r := range w.Repositories {
		if r.Dest.String() == dest {
			return r, true
		}
	}
	return repo.Repository{}, false
}

// Load inspects root and loads the workspace found there. A missing
// marker yields Uninitialized, unreadable or invalid contents yield
// Corrupted; neither is an error.
func Load(root string) (*Workspace, error) {
	const op errors.Op = "workspace.Load"
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.E(op, errors.FileSystem, err)
	}
	w := &Workspace{Root: abs, Status: Uninitialized}

	if fi, err := os.Stat(w.markerPath()); err != nil || !fi.IsDir() {
		return w, nil
	}

	cfg, err := loadConfig(w.configPath())
	if err != nil {
		w.Status = Corrupted
		return w, nil
	}
	m, err := manifest.Load(w.manifestPath())
	if err != nil {
		w.Status = Corrupted
		return w, nil
	}
	repos, err := m.Repositories()
	if err != nil {
		w.Status = Corrupted
		return w, nil
	}

	w.Status = Initialized
	w.Config = cfg
	w.Manifest = m
	w.Repositories = repos
	return w, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.ManifestURL == "" {
		return nil, fmt.Errorf("config has no manifest_url")
	}
	return &cfg, nil
}

// Init creates the marker directory at root and persists cfg and m
// into it. Re-running over an initialized workspace overwrites both,
// rotating a backup of the previous manifest.
func Init(root string, cfg *Config, m *manifest.Manifest) (*Workspace, error) {
	const op errors.Op = "workspace.Init"
	if err := m.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.E(op, errors.FileSystem, err)
	}
	w := &Workspace{Root: abs}
	if err := os.MkdirAll(w.markerPath(), 0755); err != nil {
		return nil, errors.E(op, errors.Workspace, errors.FileSystem, err)
	}
	if err := saveConfig(w.configPath(), cfg); err != nil {
		return nil, errors.E(op, errors.Workspace, err)
	}
	if err := manifest.Save(m, w.manifestPath(), manifest.SaveOptions{CreateBackups: true}); err != nil {
		return nil, errors.E(op, errors.Workspace, err)
	}
	return Load(abs)
}

func saveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveManifest persists m as the workspace's pinned manifest, rotating
// a backup of the previous one.
func (w *Workspace) SaveManifest(m *manifest.Manifest) error {
	const op errors.Op = "workspace.SaveManifest"
	if err := m.Validate(); err != nil {
		return errors.E(op, err)
	}
	if err := manifest.Save(m, w.manifestPath(), manifest.SaveOptions{CreateBackups: true}); err != nil {
		return errors.E(op, err)
	}
	w.Manifest = m
	repos, err := m.Repositories()
	if err != nil {
		return errors.E(op, err)
	}
	w.Repositories = repos
	return nil
}

// FilterReposByGroups returns the repositories sync should operate on.
// CloneAllRepos or an effective group set of just "default" selects
// everything; otherwise the union of the requested groups' members,
// deduplicated in first-seen order. groups overrides the configured set
// when non-empty.
func (w *Workspace) FilterReposByGroups(groups []string) []repo.Repository {
	if w.Config == nil || w.Manifest == nil {
		return nil
	}
	if w.Config.CloneAllRepos {
		return w.Repositories
	}
	if len(groups) == 0 {
		groups = w.Config.Groups()
	}
	// The "default" singleton always means everything, whether or not
	// the manifest declares a group by that name.
	if len(groups) == 1 && groups[0] == manifest.DefaultGroupName {
		return w.Repositories
	}
	seen := make(map[string]bool)
	var out []repo.Repository
	for _, g := range groups {
		for _, mr := range w.Manifest.ReposInGroup(g) {
			if seen[mr.Dest] {
				continue
			}
			seen[mr.Dest] = true
			if r, ok := w.Find(mr.Dest); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// DiscoverRoot walks up from start until it finds a directory holding
// a workspace marker.
func DiscoverRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, MarkerDir)); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
