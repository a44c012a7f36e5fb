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
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// maxPathLen is the longest path accepted from a manifest. It matches the
// common PATH_MAX on Linux; anything longer is a hostile or broken input.
const maxPathLen = 4096

// Sentinel errors returned by FilePath constructors. Callers match them
// with errors.Is.
var (
	ErrPathEmpty          = fmt.Errorf("path is empty")
	ErrPathNullByte       = fmt.Errorf("path contains a null byte")
	ErrPathTooLong        = fmt.Errorf("path exceeds %d characters", maxPathLen)
	ErrPathTraversal      = fmt.Errorf("path contains a parent-directory component")
	ErrUnexpectedAbsolute = fmt.Errorf("absolute path where a relative path was expected")
	ErrUnexpectedRelative = fmt.Errorf("relative path where an absolute path was expected")
	ErrReservedName       = fmt.Errorf("path contains a reserved device name")
)

// reservedNames are Windows device names that silently swallow writes on
// case-insensitive filesystems. Rejected on every platform so a manifest
// stays portable.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// FilePath is a validated, normalized filesystem path. A FilePath never
// contains a parent-directory component (including percent-encoded
// variants), a null byte, or a reserved device name, so it is safe to
// hand to filesystem calls and spawned processes.
type FilePath struct {
	path     string
	absolute bool
}

// NewFilePath validates and normalizes s, auto-detecting whether it is
// absolute or relative.
func NewFilePath(s string) (FilePath, error) {
	return validatePath(s, filepath.IsAbs(s))
}

// NewRelativePath validates s and additionally requires it to be relative.
func NewRelativePath(s string) (FilePath, error) {
	if filepath.IsAbs(s) {
		return FilePath{}, fmt.Errorf("%w: %q", ErrUnexpectedAbsolute, s)
	}
	return validatePath(s, false)
}

// NewAbsolutePath validates s and additionally requires it to be absolute.
func NewAbsolutePath(s string) (FilePath, error) {
	if s != "" && !filepath.IsAbs(s) {
		return FilePath{}, fmt.Errorf("%w: %q", ErrUnexpectedRelative, s)
	}
	return validatePath(s, true)
}

func validatePath(s string, absolute bool) (FilePath, error) {
	if s == "" {
		return FilePath{}, ErrPathEmpty
	}
	if strings.ContainsRune(s, 0) {
		return FilePath{}, ErrPathNullByte
	}
	if len(s) > maxPathLen {
		return FilePath{}, fmt.Errorf("%w: %d characters", ErrPathTooLong, len(s))
	}

	// Traversal is checked on the raw string and again after one round of
	// percent-decoding, so encoded variants like %2e%2e cannot slip past
	// the same gate the plain ".." is stopped at.
	if err := checkComponents(s); err != nil {
		return FilePath{}, fmt.Errorf("%w: %q", err, s)
	}
	if decoded, decErr := url.PathUnescape(s); decErr == nil && decoded != s {
		if err := checkComponents(decoded); err != nil {
			return FilePath{}, fmt.Errorf("%w: %q", err, s)
		}
	}

	normalized := normalize(s)
	return FilePath{path: normalized, absolute: absolute}, nil
}

// checkComponents walks the path components and rejects parent-directory
// markers and reserved device names. The current-directory marker is
// allowed; normalize drops it.
func checkComponents(s string) error {
	for _, c := range strings.FieldsFunc(s, isSeparator) {
		if c == ".." {
			return ErrPathTraversal
		}
		base := c
		if i := strings.IndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
		if reservedNames[strings.ToUpper(base)] {
			return ErrReservedName
		}
	}
	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}

// normalize collapses current-directory markers and duplicate separators
// while preserving the root. It never resolves symlinks or touches the
// filesystem.
func normalize(s string) string {
	rooted := filepath.IsAbs(s)
	var parts []string
	for _, c := range strings.FieldsFunc(s, isSeparator) {
		if c == "." {
			continue
		}
		parts = append(parts, c)
	}
	joined := strings.Join(parts, string(filepath.Separator))
	if rooted {
		return string(filepath.Separator) + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// String returns the normalized path.
func (p FilePath) String() string { return p.path }

// IsAbsolute reports whether the path is absolute.
func (p FilePath) IsAbsolute() bool { return p.absolute }

// IsRelative reports whether the path is relative.
func (p FilePath) IsRelative() bool { return !p.absolute }

// Base returns the last component of the path.
func (p FilePath) Base() string { return filepath.Base(p.path) }

// Ext returns the file extension of the last component, without the dot.
func (p FilePath) Ext() string {
	return strings.TrimPrefix(filepath.Ext(p.path), ".")
}

// Join appends elem to the path; the result is re-validated through the
// same constructor, so traversal cannot be introduced by joining.
func (p FilePath) Join(elem string) (FilePath, error) {
	return validatePath(filepath.Join(p.path, elem), p.absolute)
}

// Parent returns the parent directory, or false when the path has none.
func (p FilePath) Parent() (FilePath, bool) {
	dir := filepath.Dir(p.path)
	if dir == p.path || dir == "." && p.path == "." {
		return FilePath{}, false
	}
	fp, err := validatePath(dir, p.absolute)
	if err != nil {
		return FilePath{}, false
	}
	return fp, true
}

// StripWorkspacePrefix returns p relative to root. Both paths must be
// absolute and p must be inside root.
func (p FilePath) StripWorkspacePrefix(root FilePath) (FilePath, bool) {
	if !p.absolute || !root.absolute {
		return FilePath{}, false
	}
	rel, err := filepath.Rel(root.path, p.path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return FilePath{}, false
	}
	fp, err := NewRelativePath(rel)
	if err != nil {
		return FilePath{}, false
	}
	return fp, true
}
