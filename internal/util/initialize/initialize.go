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

// Package initialize creates a workspace from a manifest repository
// URL or a local manifest file.
package initialize

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
	"github.com/tk-aria/wmgr-sub001/internal/types"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
	"github.com/tk-aria/wmgr-sub001/pkg/printer"
)

//go:embed template/manifest.yml
var starterManifest []byte

// StarterManifest returns the embedded starter manifest document.
func StarterManifest() []byte {
	out := make([]byte, len(starterManifest))
	copy(out, starterManifest)
	return out
}

// manifestFileName is the file looked up inside a manifest repository.
const manifestFileName = "manifest.yml"

// Command initializes a workspace.
type Command struct {
	// Root is the directory to initialize.
	Root string
	// ManifestSource is a repository URL or a local manifest file path.
	// Empty with Seed set writes the starter manifest instead.
	ManifestSource string
	// ManifestBranch selects the branch of a manifest repository.
	ManifestBranch string
	// Groups selects the repo groups the workspace will sync.
	Groups []string
	// Shallow makes every clone shallow.
	Shallow bool
	// CloneAll disables group filtering for the workspace.
	CloneAll bool
	// Seed writes the embedded starter manifest when no source is
	// given.
	Seed bool
}

// Run materializes the manifest, validates the requested groups
// against it and persists the workspace.
func (c *Command) Run(ctx context.Context) (*workspace.Workspace, error) {
	const op errors.Op = "initialize.Run"
	pr := printer.FromContextOrDie(ctx)

	m, err := c.loadManifest(ctx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	for _, g := range c.Groups {
		if _, ok := m.Groups[g]; !ok {
			return nil, errors.E(op, errors.Config,
				fmt.Errorf("group %q not found in manifest (have %v)", g, m.GroupNames()))
		}
	}

	cfg := &workspace.Config{
		ManifestURL:    c.ManifestSource,
		ManifestBranch: c.ManifestBranch,
		ShallowClones:  c.Shallow,
		RepoGroups:     c.Groups,
		CloneAllRepos:  c.CloneAll,
	}
	if cfg.ManifestURL == "" {
		cfg.ManifestURL = manifestFileName
	}
	w, err := workspace.Init(c.Root, cfg, m)
	if err != nil {
		return nil, errors.E(op, err)
	}
	pr.Printf("Workspace initialized at %s (%d repositories)\n", w.Root, len(w.Repositories))
	return w, nil
}

func (c *Command) loadManifest(ctx context.Context) (*manifest.Manifest, error) {
	if c.ManifestSource == "" {
		if !c.Seed {
			return nil, errors.E(errors.Op("initialize.loadManifest"), errors.MissingParam,
				"a manifest URL or path is required")
		}
		return manifest.Parse(StarterManifest())
	}
	// A readable local file wins over URL interpretation.
	if fi, err := os.Stat(c.ManifestSource); err == nil && !fi.IsDir() {
		return manifest.Load(c.ManifestSource)
	}
	if u, err := types.NewGitURL(c.ManifestSource); err == nil {
		return c.cloneManifestRepo(ctx, u)
	}
	return nil, errors.E(errors.Op("initialize.loadManifest"), errors.Config,
		fmt.Errorf("manifest source %q is neither a file nor a repository URL", c.ManifestSource))
}

// cloneManifestRepo fetches the manifest repository into a temp
// directory and loads the manifest file from it.
func (c *Command) cloneManifestRepo(ctx context.Context, u types.GitURL) (*manifest.Manifest, error) {
	tmp, err := os.MkdirTemp("", "wmgr-manifest-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	g, err := gitutil.NewRunner(tmp)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(tmp, "manifest")
	if err := g.Clone(ctx, gitutil.CloneOptions{
		URL:     u,
		Dest:    dest,
		Branch:  c.ManifestBranch,
		Shallow: true,
	}); err != nil {
		return nil, err
	}
	return manifest.Load(filepath.Join(dest, manifestFileName))
}
