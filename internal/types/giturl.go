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
	"regexp"
	"strings"
)

// Sentinel errors returned by NewGitURL. Callers match them with errors.Is.
var (
	ErrURLEmpty             = fmt.Errorf("url is empty")
	ErrURLUnsupportedScheme = fmt.Errorf("url has an unsupported scheme")
	ErrURLMissingHost       = fmt.Errorf("url has no host")
	ErrURLMissingRepoPath   = fmt.Errorf("url has no repository path")
)

// scpLikeRe matches the scp-style syntax (git@github.com:org/repo.git)
// that git accepts as a shorthand for ssh. Without a user@ prefix the
// host must contain a dot, so drive-letter style strings don't match.
var scpLikeRe = regexp.MustCompile(`^(?:([^@/]+)@([^:/]+)|([^:/]+\.[^:/]+)):(.+)$`)

// GitURL is a validated repository URL held in canonical https form.
// git://, ssh:// and scp-style inputs are accepted and normalized;
// a trailing ".git" is stripped from the path. The input scheme is
// remembered so clone URLs keep the authentication form the manifest
// was written with.
type GitURL struct {
	scheme string
	host   string
	path   string
}

// NewGitURL parses and canonicalizes raw.
func NewGitURL(raw string) (GitURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GitURL{}, ErrURLEmpty
	}

	var scheme, host, path string
	switch {
	case strings.Contains(raw, "://"):
		u, err := url.Parse(raw)
		if err != nil {
			return GitURL{}, fmt.Errorf("parsing %q: %w", raw, err)
		}
		switch u.Scheme {
		case "http", "https", "git", "ssh":
		default:
			return GitURL{}, fmt.Errorf("%w: %q", ErrURLUnsupportedScheme, u.Scheme)
		}
		scheme = u.Scheme
		host = u.Host
		path = u.Path
	case scpLikeRe.MatchString(raw):
		m := scpLikeRe.FindStringSubmatch(raw)
		if m[2] != "" {
			host = m[2]
		} else {
			host = m[3]
		}
		path = m[4]
		scheme = "ssh"
	default:
		return GitURL{}, fmt.Errorf("%w: %q", ErrURLUnsupportedScheme, raw)
	}

	// Strip a user@ left in the authority by url.Parse inputs like
	// ssh://git@host/org/repo.
	if i := strings.LastIndexByte(host, '@'); i >= 0 {
		host = host[i+1:]
	}
	// git serves the same repository on the default port either way.
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return GitURL{}, fmt.Errorf("%w: %q", ErrURLMissingHost, raw)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return GitURL{}, fmt.Errorf("%w: %q", ErrURLMissingRepoPath, raw)
	}

	return GitURL{scheme: scheme, host: strings.ToLower(host), path: path}, nil
}

// String returns the canonical https form without a ".git" suffix.
func (u GitURL) String() string {
	return "https://" + u.host + "/" + u.path
}

// Host returns the lowercased host.
func (u GitURL) Host() string { return u.host }

// Path returns the repository path without leading slash or ".git".
func (u GitURL) Path() string { return u.path }

// Scheme returns the scheme the URL was written with: http, https,
// git or ssh. scp-style inputs report ssh.
func (u GitURL) Scheme() string { return u.scheme }

// HTTPSURL returns the clone URL in https form with a ".git" suffix.
func (u GitURL) HTTPSURL() string {
	return "https://" + u.host + "/" + u.path + ".git"
}

// CloneURL returns the clone URL in the form matching the input
// scheme, so ssh manifests keep ssh authentication.
func (u GitURL) CloneURL() string {
	switch u.scheme {
	case "ssh":
		return u.SSHURL()
	case "git", "http":
		return u.scheme + "://" + u.host + "/" + u.path + ".git"
	default:
		return u.HTTPSURL()
	}
}

// SSHURL returns the clone URL in scp-style ssh form.
func (u GitURL) SSHURL() string {
	return "git@" + u.host + ":" + u.path + ".git"
}

// RepoName returns the last component of the repository path.
func (u GitURL) RepoName() string {
	if i := strings.LastIndexByte(u.path, '/'); i >= 0 {
		return u.path[i+1:]
	}
	return u.path
}

// Organization returns the path with the repository name removed, or ""
// when the path is a bare name.
func (u GitURL) Organization() string {
	if i := strings.LastIndexByte(u.path, '/'); i >= 0 {
		return u.path[:i]
	}
	return ""
}

// SameRepo reports whether u and other identify the same repository,
// ignoring scheme, user and ".git" suffix differences.
func (u GitURL) SameRepo(other GitURL) bool {
	return u.host == other.host && u.path == other.path
}

// IsZero reports whether u is the zero value.
func (u GitURL) IsZero() bool { return u.host == "" }
