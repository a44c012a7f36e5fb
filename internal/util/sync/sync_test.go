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

package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
	"github.com/tk-aria/wmgr-sub001/internal/repo"
	"github.com/tk-aria/wmgr-sub001/internal/scm"
	"github.com/tk-aria/wmgr-sub001/internal/types"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
	"github.com/tk-aria/wmgr-sub001/pkg/printer/fake"
)

func TestRunRequiresInitializedWorkspace(t *testing.T) {
	w, err := workspace.Load(t.TempDir())
	require.NoError(t, err)

	c := &Command{Workspace: w}
	_, err = c.Run(fake.CtxWithDefaultPrinter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "cloned", ActionCloned.String())
	assert.Equal(t, "updated", ActionUpdated.String())
	assert.Equal(t, "skipped", ActionSkipped.String())
	assert.Equal(t, "failed", ActionFailed.String())
}

// initRepo creates a git repository with one commit.
func initRepo(t *testing.T, dir string) *gitutil.Runner {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	g, err := gitutil.NewRunner(dir)
	require.NoError(t, err)
	ctx := context.Background()
	for _, args := range [][]string{
		{"init", "--initial-branch=main", "."},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "test"},
	} {
		_, err = g.Run(ctx, args...)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x\n"), 0644))
	_, err = g.Run(ctx, "add", ".")
	require.NoError(t, err)
	_, err = g.Run(ctx, "commit", "-m", "initial")
	require.NoError(t, err)
	return g
}

func mustRemote(t *testing.T, name, url string) repo.Remote {
	t.Helper()
	u, err := types.NewGitURL(url)
	require.NoError(t, err)
	return repo.Remote{Name: name, URL: u}
}

func TestSyncRepoRejectsNonGitSCM(t *testing.T) {
	dest, err := types.NewFilePath("vendor/lib")
	require.NoError(t, err)

	c := &Command{}
	out := c.syncRepo(context.Background(), repo.Repository{
		Dest: dest,
		SCM:  scm.Svn,
	})
	assert.Equal(t, ActionFailed, out.Action)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "svn repositories cannot be synced")
}

func TestCorrectRemote(t *testing.T) {
	ctx := context.Background()
	g := initRepo(t, filepath.Join(t.TempDir(), "r"))
	origin := mustRemote(t, "origin", "https://github.com/org/repo.git")
	require.NoError(t, g.AddRemote(ctx, "origin", origin.URL))

	c := &Command{}

	// An equivalent spelling of the same repository is left alone.
	same := mustRemote(t, "origin", "git@github.com:org/repo.git")
	changed, err := c.correctRemote(ctx, g, same)
	require.NoError(t, err)
	assert.False(t, changed)

	// A different repository gets repointed.
	moved := mustRemote(t, "origin", "https://github.com/org/moved.git")
	changed, err = c.correctRemote(ctx, g, moved)
	require.NoError(t, err)
	assert.True(t, changed)
	got, err := g.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/org/moved.git", got)
}

func TestCorrectRemoteAddsMissing(t *testing.T) {
	ctx := context.Background()
	g := initRepo(t, filepath.Join(t.TempDir(), "r"))

	c := &Command{}
	origin := mustRemote(t, "origin", "https://github.com/org/repo.git")
	changed, err := c.correctRemote(ctx, g, origin)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := g.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/org/repo.git", got)
}

func TestRunFileOps(t *testing.T) {
	root := t.TempDir()
	m, err := manifest.Parse([]byte(`
repos:
  - url: https://github.com/org/cli.git
    dest: tools/cli
    copy:
      - file: config/defaults.yml
        dest: shared/defaults.yml
    symlink:
      - source: bin/run
        target: ../tools/cli/bin/run.sh
`))
	require.NoError(t, err)
	w, err := workspace.Init(root, &workspace.Config{ManifestURL: "local"}, m)
	require.NoError(t, err)

	// Materialize the files the operations refer to.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tools/cli/config"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tools/cli/bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tools/cli/config/defaults.yml"), []byte("a: 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tools/cli/bin/run.sh"), []byte("#!/bin/sh\n"), 0755))

	c := &Command{Workspace: w}
	results := c.runFileOps(w.Repositories)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	copied, err := os.ReadFile(filepath.Join(root, "shared/defaults.yml"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\n", string(copied))

	// The link lives at the source path and stores the target verbatim;
	// the script it points at stays a regular file.
	target, err := os.Readlink(filepath.Join(root, "bin/run"))
	require.NoError(t, err)
	assert.Equal(t, "../tools/cli/bin/run.sh", target)
	fi, err := os.Lstat(filepath.Join(root, "tools/cli/bin/run.sh"))
	require.NoError(t, err)
	assert.Zero(t, fi.Mode()&os.ModeSymlink)
}

func TestResultSuccess(t *testing.T) {
	res := &Result{}
	assert.True(t, res.Success())
	res.Errors = append(res.Errors, RepoOutcome{Dest: "b", Action: ActionFailed})
	assert.False(t, res.Success())
}
