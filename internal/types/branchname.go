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
	"regexp"
	"strings"
)

// Sentinel errors returned by NewBranchName. Callers match them with
// errors.Is.
var (
	ErrBranchEmpty    = fmt.Errorf("branch name is empty")
	ErrBranchInvalid  = fmt.Errorf("branch name is not a valid git ref")
	ErrBranchTooLong  = fmt.Errorf("branch name is too long")
	ErrBranchReserved = fmt.Errorf("branch name is reserved")
)

// maxBranchLen bounds a branch name the same way git bounds a ref
// component in practice.
const maxBranchLen = 255

// BranchType classifies a branch by its conventional naming.
type BranchType int

const (
	// BranchOther is any branch that matches no known convention.
	BranchOther BranchType = iota
	// BranchDefault is a repository default branch (main, master,
	// develop, development).
	BranchDefault
	// BranchRelease is a release branch (release/*, releases/*, rel/*
	// or a vN.N version name).
	BranchRelease
	// BranchFeature is a feature branch (feature/*, features/* or feat/*).
	BranchFeature
	// BranchHotfix is a hotfix branch (hotfix/*, hotfixes/* or fix/*).
	BranchHotfix
)

func (t BranchType) String() string {
	switch t {
	case BranchDefault:
		return "default"
	case BranchRelease:
		return "release"
	case BranchFeature:
		return "feature"
	case BranchHotfix:
		return "hotfix"
	default:
		return "other"
	}
}

// BranchName is a validated git branch name. Validation follows the
// subset of git-check-ref-format rules that apply to branches.
type BranchName struct {
	name string
}

// NewBranchName validates s as a git branch name.
func NewBranchName(s string) (BranchName, error) {
	if s == "" {
		return BranchName{}, ErrBranchEmpty
	}
	if len(s) > maxBranchLen {
		return BranchName{}, fmt.Errorf("%w: %d characters (max %d)", ErrBranchTooLong, len(s), maxBranchLen)
	}
	switch s {
	case "HEAD", "ORIG_HEAD", "FETCH_HEAD", "MERGE_HEAD":
		return BranchName{}, fmt.Errorf("%w: %q", ErrBranchReserved, s)
	}
	if err := checkRefFormat(s); err != nil {
		return BranchName{}, fmt.Errorf("%w: %q: %s", ErrBranchInvalid, s, err)
	}
	return BranchName{name: s}, nil
}

// checkRefFormat applies the git-check-ref-format rules for a single
// branch name.
func checkRefFormat(s string) error {
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") {
		return fmt.Errorf("leading or trailing slash")
	}
	if strings.HasPrefix(s, "-") {
		return fmt.Errorf("leading dash")
	}
	if strings.HasSuffix(s, ".") {
		return fmt.Errorf("trailing dot")
	}
	if strings.HasSuffix(s, ".lock") {
		return fmt.Errorf("trailing .lock")
	}
	if s == "@" {
		return fmt.Errorf("single @")
	}
	if strings.Contains(s, "..") {
		return fmt.Errorf("consecutive dots")
	}
	if strings.Contains(s, "//") {
		return fmt.Errorf("consecutive slashes")
	}
	if strings.Contains(s, "@{") {
		return fmt.Errorf("@{ sequence")
	}
	for _, component := range strings.Split(s, "/") {
		if strings.HasPrefix(component, ".") {
			return fmt.Errorf("component starts with a dot")
		}
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("control character")
		}
		switch r {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return fmt.Errorf("forbidden character %q", r)
		}
	}
	return nil
}

// String returns the branch name.
func (b BranchName) String() string { return b.name }

// IsZero reports whether b is the zero value.
func (b BranchName) IsZero() bool { return b.name == "" }

var releaseVersionRe = regexp.MustCompile(`^v\d+\.\d+`)

// Type classifies the branch by its naming convention.
func (b BranchName) Type() BranchType {
	switch b.name {
	case "main", "master", "develop", "development":
		return BranchDefault
	}
	switch {
	case strings.HasPrefix(b.name, "release/"),
		strings.HasPrefix(b.name, "releases/"),
		strings.HasPrefix(b.name, "rel/"),
		releaseVersionRe.MatchString(b.name):
		return BranchRelease
	case strings.HasPrefix(b.name, "feature/"),
		strings.HasPrefix(b.name, "features/"),
		strings.HasPrefix(b.name, "feat/"):
		return BranchFeature
	case strings.HasPrefix(b.name, "hotfix/"),
		strings.HasPrefix(b.name, "hotfixes/"),
		strings.HasPrefix(b.name, "fix/"):
		return BranchHotfix
	default:
		return BranchOther
	}
}
