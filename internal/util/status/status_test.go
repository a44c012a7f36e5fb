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

package status

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tk-aria/wmgr-sub001/internal/gitutil"
	"github.com/tk-aria/wmgr-sub001/internal/manifest"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
)

func TestClassify(t *testing.T) {
	testCases := map[string]struct {
		probe    probe
		expected State
	}{
		"missing": {
			probe:    probe{exists: false},
			expected: Missing,
		},
		"missing wins over everything": {
			probe: probe{
				exists: false,
				err:    fmt.Errorf("boom"),
				counts: gitutil.StatusCounts{Modified: 1},
			},
			expected: Missing,
		},
		"error wins over wrong branch and dirty": {
			probe: probe{
				exists:         true,
				err:            fmt.Errorf("boom"),
				currentBranch:  "other",
				expectedBranch: "main",
				counts:         gitutil.StatusCounts{Modified: 1},
			},
			expected: Error,
		},
		"wrong branch wins over dirty": {
			probe: probe{
				exists:         true,
				currentBranch:  "other",
				expectedBranch: "main",
				counts:         gitutil.StatusCounts{Untracked: 3},
			},
			expected: WrongBranch,
		},
		"fixed ref is never wrong branch": {
			probe: probe{
				exists:         true,
				fixedRef:       true,
				currentBranch:  "",
				expectedBranch: "main",
			},
			expected: Clean,
		},
		"dirty wins over out of sync": {
			probe: probe{
				exists:         true,
				currentBranch:  "main",
				expectedBranch: "main",
				counts:         gitutil.StatusCounts{Staged: 1},
				behind:         2,
			},
			expected: Dirty,
		},
		"out of sync ahead": {
			probe: probe{
				exists:         true,
				currentBranch:  "main",
				expectedBranch: "main",
				ahead:          1,
			},
			expected: OutOfSync,
		},
		"out of sync behind": {
			probe: probe{
				exists:         true,
				currentBranch:  "main",
				expectedBranch: "main",
				behind:         4,
			},
			expected: OutOfSync,
		},
		"no expected branch": {
			probe: probe{
				exists:        true,
				currentBranch: "whatever",
			},
			expected: Clean,
		},
		"clean": {
			probe: probe{
				exists:         true,
				currentBranch:  "main",
				expectedBranch: "main",
			},
			expected: Clean,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, classify(tc.probe))
		})
	}
}

func TestRunPinnedDetachedClean(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "repos", "app")
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

	sha, err := g.HeadSHA(ctx)
	require.NoError(t, err)
	require.NoError(t, g.CheckoutDetached(ctx, sha))

	m, err := manifest.Parse([]byte(fmt.Sprintf(`
repos:
  - url: https://github.com/org/app.git
    dest: repos/app
    sha1: %s
`, sha)))
	require.NoError(t, err)
	w, err := workspace.Init(root, &workspace.Config{ManifestURL: "local"}, m)
	require.NoError(t, err)

	c := &Command{Workspace: w}
	res, err := c.Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Statuses, 1)
	assert.NoError(t, res.Statuses[0].Err)
	assert.Equal(t, Clean, res.Statuses[0].State)
	assert.Equal(t, 1, res.CleanCount)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "wrong branch", WrongBranch.String())
	assert.Equal(t, "dirty", Dirty.String())
	assert.Equal(t, "out of sync", OutOfSync.String())
	assert.Equal(t, "clean", Clean.String())
}
