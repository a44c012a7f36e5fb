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

package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilePath(t *testing.T) {
	testCases := map[string]struct {
		input    string
		expected string
		absolute bool
		err      error
	}{
		"relative path": {
			input:    "src/app",
			expected: "src/app",
		},
		"absolute path": {
			input:    "/home/user/ws",
			expected: "/home/user/ws",
			absolute: true,
		},
		"current-dir markers dropped": {
			input:    "./src/./app",
			expected: "src/app",
		},
		"duplicate separators collapsed": {
			input:    "src//app",
			expected: "src/app",
		},
		"bare dot": {
			input:    ".",
			expected: ".",
		},
		"empty": {
			input: "",
			err:   ErrPathEmpty,
		},
		"null byte": {
			input: "src/\x00app",
			err:   ErrPathNullByte,
		},
		"too long": {
			input: strings.Repeat("a", maxPathLen+1),
			err:   ErrPathTooLong,
		},
		"parent component": {
			input: "../escape",
			err:   ErrPathTraversal,
		},
		"embedded parent component": {
			input: "src/../../etc/passwd",
			err:   ErrPathTraversal,
		},
		"percent-encoded parent": {
			input: "src/%2e%2e/etc",
			err:   ErrPathTraversal,
		},
		"partially encoded parent": {
			input: "src/.%2e/etc",
			err:   ErrPathTraversal,
		},
		"reserved device name": {
			input: "logs/NUL",
			err:   ErrReservedName,
		},
		"reserved device name with extension": {
			input: "logs/con.txt",
			err:   ErrReservedName,
		},
		"double-dot inside a name is allowed": {
			input:    "archive..old/data",
			expected: "archive..old/data",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			fp, err := NewFilePath(tc.input)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, fp.String())
			assert.Equal(t, tc.absolute, fp.IsAbsolute())
		})
	}
}

func TestNewRelativePath(t *testing.T) {
	_, err := NewRelativePath("/abs/path")
	assert.ErrorIs(t, err, ErrUnexpectedAbsolute)

	fp, err := NewRelativePath("src/app")
	require.NoError(t, err)
	assert.True(t, fp.IsRelative())
}

func TestNewAbsolutePath(t *testing.T) {
	_, err := NewAbsolutePath("rel/path")
	assert.ErrorIs(t, err, ErrUnexpectedRelative)

	fp, err := NewAbsolutePath("/home/user")
	require.NoError(t, err)
	assert.True(t, fp.IsAbsolute())
}

func TestFilePathJoin(t *testing.T) {
	base, err := NewRelativePath("src")
	require.NoError(t, err)

	joined, err := base.Join("app")
	require.NoError(t, err)
	assert.Equal(t, "src/app", joined.String())
	assert.True(t, joined.IsRelative())

	// Join cannot introduce traversal.
	_, err = base.Join("../../etc")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

func TestFilePathParent(t *testing.T) {
	fp, err := NewFilePath("src/app/main.go")
	require.NoError(t, err)

	parent, ok := fp.Parent()
	require.True(t, ok)
	assert.Equal(t, "src/app", parent.String())

	root, err := NewAbsolutePath("/")
	require.NoError(t, err)
	_, ok = root.Parent()
	assert.False(t, ok)
}

func TestFilePathStripWorkspacePrefix(t *testing.T) {
	root, err := NewAbsolutePath("/home/user/ws")
	require.NoError(t, err)
	inside, err := NewAbsolutePath("/home/user/ws/src/app")
	require.NoError(t, err)
	outside, err := NewAbsolutePath("/home/other")
	require.NoError(t, err)

	rel, ok := inside.StripWorkspacePrefix(root)
	require.True(t, ok)
	assert.Equal(t, "src/app", rel.String())
	assert.True(t, rel.IsRelative())

	_, ok = outside.StripWorkspacePrefix(root)
	assert.False(t, ok)

	relPath, err := NewRelativePath("src")
	require.NoError(t, err)
	_, ok = relPath.StripWorkspacePrefix(root)
	assert.False(t, ok)
}

func TestFilePathBaseExt(t *testing.T) {
	fp, err := NewFilePath("src/app/main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", fp.Base())
	assert.Equal(t, "go", fp.Ext())

	noExt, err := NewFilePath("src/Makefile")
	require.NoError(t, err)
	assert.Equal(t, "", noExt.Ext())
}
