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

package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tk-aria/wmgr-sub001/internal/types"
)

func newProcessor(t *testing.T, backups bool) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := types.NewAbsolutePath(dir)
	require.NoError(t, err)
	return &Processor{WorkspaceRoot: root, CreateBackups: backups}, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCopy(t *testing.T) {
	p, dir := newProcessor(t, false)
	writeFile(t, filepath.Join(dir, "repo", "config.yml"), "a: 1\n")

	require.NoError(t, p.Copy("repo/config.yml", "shared/config.yml"))
	assert.Equal(t, "a: 1\n", readFile(t, filepath.Join(dir, "shared", "config.yml")))
}

func TestCopyMissingSource(t *testing.T) {
	p, _ := newProcessor(t, false)
	err := p.Copy("repo/missing.yml", "out.yml")
	require.Error(t, err)
}

func TestCopyRejectsTraversal(t *testing.T) {
	p, dir := newProcessor(t, false)
	writeFile(t, filepath.Join(dir, "f"), "x")

	require.Error(t, p.Copy("../outside", "dest"))
	require.Error(t, p.Copy("f", "../escape"))
	require.Error(t, p.Copy("f", "/abs/escape"))
}

func TestSymlink(t *testing.T) {
	p, dir := newProcessor(t, false)
	writeFile(t, filepath.Join(dir, "repos", "app", "tool.sh"), "#!/bin/sh\n")

	// The link is created at the first argument and stores the second
	// verbatim.
	require.NoError(t, p.Symlink("current", "repos/app"))

	link := filepath.Join(dir, "current")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "repos/app", target)
	assert.Equal(t, "#!/bin/sh\n", readFile(t, filepath.Join(link, "tool.sh")))

	// Relinking replaces the existing link.
	require.NoError(t, p.Symlink("current", "repos/app"))
}

func TestSymlinkLeavesTargetAlone(t *testing.T) {
	p, dir := newProcessor(t, false)
	writeFile(t, filepath.Join(dir, "repos", "app", "main.go"), "package main\n")

	require.NoError(t, p.Symlink("current", "repos/app"))

	// The pointed-at checkout is untouched.
	fi, err := os.Lstat(filepath.Join(dir, "repos", "app"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Zero(t, fi.Mode()&os.ModeSymlink)
	assert.Equal(t, "package main\n", readFile(t, filepath.Join(dir, "repos", "app", "main.go")))
}

func TestSymlinkRejectsBadTargets(t *testing.T) {
	p, _ := newProcessor(t, false)
	require.Error(t, p.Symlink("link", ""))
	require.Error(t, p.Symlink("link", "/etc/../etc/passwd"))
	require.Error(t, p.Symlink("../outside", "repos/app"))
}

func TestBackupRotation(t *testing.T) {
	p, dir := newProcessor(t, true)
	p.MaxBackups = 2
	dest := filepath.Join(dir, "out.txt")

	for i, content := range []string{"v1", "v2", "v3", "v4"} {
		writeFile(t, filepath.Join(dir, "src.txt"), content)
		require.NoError(t, p.Copy("src.txt", "out.txt"), "round %d", i)
	}

	// Newest content live, the two previous versions in .bak.1 and
	// .bak.2, nothing older kept.
	assert.Equal(t, "v4", readFile(t, dest))
	assert.Equal(t, "v3", readFile(t, dest+".bak.1"))
	assert.Equal(t, "v2", readFile(t, dest+".bak.2"))
	_, err := os.Lstat(dest + ".bak.3")
	assert.True(t, os.IsNotExist(err))
}

func TestProcess(t *testing.T) {
	p, dir := newProcessor(t, false)
	writeFile(t, filepath.Join(dir, "repo", "a.txt"), "a")

	results := p.Process([]Operation{
		{Kind: OpCopy, Source: "repo/a.txt", Dest: "out/a.txt"},
		{Kind: OpCopy, Source: "repo/missing.txt", Dest: "out/b.txt"},
		{Kind: OpSymlink, Source: "links/a", Dest: "../repo/a.txt"},
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "a", readFile(t, filepath.Join(dir, "out", "a.txt")))
	assert.Equal(t, "a", readFile(t, filepath.Join(dir, "links", "a")))
}
