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

// Package scm models the source control systems a workspace can hold
// and the capabilities each one supports. The capability methods let
// the sync and status engines branch on behavior instead of on names.
package scm

import (
	"fmt"
	"strings"
)

// Type identifies a source control system.
type Type int

const (
	// Git is the git SCM. It is the default for repositories that do not
	// name one.
	Git Type = iota
	// Svn is Apache Subversion.
	Svn
	// Perforce is the Perforce Helix Core SCM.
	Perforce
)

// Parse returns the Type named by s, case-insensitively. An empty
// string parses as Git.
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "git":
		return Git, nil
	case "svn", "subversion":
		return Svn, nil
	case "perforce", "p4":
		return Perforce, nil
	default:
		return Git, fmt.Errorf("unknown scm type %q", s)
	}
}

func (t Type) String() string {
	switch t {
	case Svn:
		return "svn"
	case Perforce:
		return "perforce"
	default:
		return "git"
	}
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SupportsBranches reports whether the SCM has first-class branches.
func (t Type) SupportsBranches() bool {
	return t == Git
}

// SupportsRemotes reports whether the SCM tracks multiple named remotes.
func (t Type) SupportsRemotes() bool {
	return t == Git
}

// SupportsShallowClone reports whether the SCM can clone truncated
// history.
func (t Type) SupportsShallowClone() bool {
	return t == Git
}

// SupportsSubmodules reports whether the SCM supports nested
// repositories.
func (t Type) SupportsSubmodules() bool {
	switch t {
	case Git, Svn:
		return true
	default:
		return false
	}
}

// MetadataDir returns the name of the directory the SCM keeps its
// metadata in at the repository root.
func (t Type) MetadataDir() string {
	switch t {
	case Svn:
		return ".svn"
	case Perforce:
		return ".p4root"
	default:
		return ".git"
	}
}

// ExecutableName returns the command-line client the SCM is driven
// through.
func (t Type) ExecutableName() string {
	switch t {
	case Svn:
		return "svn"
	case Perforce:
		return "p4"
	default:
		return "git"
	}
}

// IgnoreFilePatterns returns the ignore-file names the SCM reads.
func (t Type) IgnoreFilePatterns() []string {
	switch t {
	case Git:
		return []string{".gitignore"}
	case Perforce:
		return []string{".p4ignore"}
	default:
		return nil
	}
}

// ValidURLScheme reports whether scheme is one the SCM can fetch over.
func (t Type) ValidURLScheme(scheme string) bool {
	switch t {
	case Git:
		switch scheme {
		case "http", "https", "git", "ssh":
			return true
		}
	case Svn:
		switch scheme {
		case "http", "https", "svn", "svn+ssh":
			return true
		}
	case Perforce:
		switch scheme {
		case "p4", "ssl", "tcp":
			return true
		}
	}
	return false
}
