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

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
)

func sampleManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse([]byte(`
groups:
  default:
    repos: [tools/cli]
  backend:
    repos: [services/api, services/worker]
repos:
  - url: https://github.com/org/cli.git
    dest: tools/cli
  - url: https://github.com/org/api.git
    dest: services/api
  - url: https://github.com/org/worker.git
    dest: services/worker
`))
	require.NoError(t, err)
	return m
}

func initWorkspace(t *testing.T, cfg *Config) *Workspace {
	t.Helper()
	if cfg == nil {
		cfg = &Config{ManifestURL: "https://github.com/org/manifest.git"}
	}
	w, err := Init(t.TempDir(), cfg, sampleManifest(t))
	require.NoError(t, err)
	require.True(t, w.IsInitialized())
	return w
}

func TestLoadUninitialized(t *testing.T) {
	w, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, w.Status)
	assert.False(t, w.IsInitialized())
	assert.False(t, w.IsCorrupted())
}

func TestInitAndLoad(t *testing.T) {
	w := initWorkspace(t, nil)

	loaded, err := Load(w.Root)
	require.NoError(t, err)
	require.True(t, loaded.IsInitialized())
	assert.Equal(t, "https://github.com/org/manifest.git", loaded.Config.ManifestURL)
	assert.Len(t, loaded.Repositories, 3)

	r, ok := loaded.Find("services/api")
	require.True(t, ok)
	assert.Equal(t, "services/api", r.Dest.String())
	assert.Equal(t, filepath.Join(loaded.Root, "services", "api"), loaded.RepoPath("services/api"))
}

func TestLoadCorrupted(t *testing.T) {
	w := initWorkspace(t, nil)
	require.NoError(t, os.WriteFile(
		filepath.Join(w.Root, MarkerDir, ConfigFile), []byte("{not yaml"), 0644))

	loaded, err := Load(w.Root)
	require.NoError(t, err)
	assert.True(t, loaded.IsCorrupted())
	assert.Nil(t, loaded.Config)
}

func TestLoadCorruptedManifest(t *testing.T) {
	w := initWorkspace(t, nil)
	require.NoError(t, os.Remove(filepath.Join(w.Root, MarkerDir, ManifestFile)))

	loaded, err := Load(w.Root)
	require.NoError(t, err)
	assert.True(t, loaded.IsCorrupted())
}

func TestConfigGroupsDefault(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, []string{"default"}, cfg.Groups())

	cfg.RepoGroups = []string{"backend"}
	assert.Equal(t, []string{"backend"}, cfg.Groups())
}

func TestFilterReposByGroups(t *testing.T) {
	w := initWorkspace(t, nil)

	// The "default" singleton selects everything, even though the
	// manifest declares a group by that name.
	got := w.FilterReposByGroups(nil)
	require.Len(t, got, 3)
	got = w.FilterReposByGroups([]string{"default"})
	require.Len(t, got, 3)

	// Explicit groups override the configured set.
	got = w.FilterReposByGroups([]string{"backend"})
	require.Len(t, got, 2)
	assert.Equal(t, "services/api", got[0].Dest.String())

	// Union dedups in first-seen order.
	got = w.FilterReposByGroups([]string{"backend", "default", "backend"})
	require.Len(t, got, 3)
	assert.Equal(t, "services/api", got[0].Dest.String())
	assert.Equal(t, "services/worker", got[1].Dest.String())
	assert.Equal(t, "tools/cli", got[2].Dest.String())

	// Unknown group matches nothing.
	assert.Empty(t, w.FilterReposByGroups([]string{"nope"}))
}

func TestFilterCloneAllOverridesGroups(t *testing.T) {
	cfg := &Config{
		ManifestURL:   "https://github.com/org/manifest.git",
		RepoGroups:    []string{"backend"},
		CloneAllRepos: true,
	}
	w := initWorkspace(t, cfg)
	assert.Len(t, w.FilterReposByGroups(nil), 3)
}

func TestFilterNoDefaultGroupMeansAll(t *testing.T) {
	m, err := manifest.Parse([]byte(`
repos:
  - url: https://github.com/org/a.git
    dest: a
  - url: https://github.com/org/b.git
    dest: b
`))
	require.NoError(t, err)
	w, err := Init(t.TempDir(), &Config{ManifestURL: "x://unused"}, m)
	require.NoError(t, err)
	require.True(t, w.IsInitialized())

	assert.Len(t, w.FilterReposByGroups(nil), 2)
}

func TestDiscoverRoot(t *testing.T) {
	w := initWorkspace(t, nil)
	nested := filepath.Join(w.Root, "services", "api", "src")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, ok := DiscoverRoot(nested)
	require.True(t, ok)
	assert.Equal(t, w.Root, root)

	_, ok = DiscoverRoot(t.TempDir())
	assert.False(t, ok)
}

func TestSaveManifestRotatesBackup(t *testing.T) {
	w := initWorkspace(t, nil)
	require.NoError(t, w.SaveManifest(sampleManifest(t)))

	_, err := os.Lstat(w.ManifestPath() + ".bak.1")
	assert.NoError(t, err)
}
