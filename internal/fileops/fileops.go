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

// Package fileops copies files and creates symlinks inside a workspace
// after a sync, and rotates numbered backups of files it overwrites.
// Every path crosses the types.FilePath constructor before it reaches
// the filesystem.
package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"
	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/types"
)

// OpKind distinguishes the operations a Processor performs.
type OpKind int

const (
	// OpCopy copies a file or directory.
	OpCopy OpKind = iota
	// OpSymlink creates a symbolic link.
	OpSymlink
)

func (k OpKind) String() string {
	if k == OpSymlink {
		return "symlink"
	}
	return "copy"
}

// Operation is one copy or symlink step. For a copy, Source and Dest
// are both relative to the workspace root. For a symlink, Source is
// where the link is created (relative to the workspace root) and Dest
// is the link content, stored verbatim.
type Operation struct {
	Kind   OpKind
	Source string
	Dest   string
}

// OpResult records the outcome of a single Operation.
type OpResult struct {
	Op     Operation
	Source string
	Dest   string
	Err    error
}

// Processor applies copy and symlink operations under a workspace root.
type Processor struct {
	// WorkspaceRoot is the absolute directory all operation paths are
	// resolved against.
	WorkspaceRoot types.FilePath
	// CreateBackups rotates a numbered backup before overwriting an
	// existing destination.
	CreateBackups bool
	// MaxBackups is how many numbered backups to keep. Zero means the
	// default of 3.
	MaxBackups int
}

const defaultMaxBackups = 3

func (p *Processor) maxBackups() int {
	if p.MaxBackups > 0 {
		return p.MaxBackups
	}
	return defaultMaxBackups
}

// resolve validates rel as a relative path and anchors it under the
// workspace root.
func (p *Processor) resolve(rel string) (string, error) {
	fp, err := types.NewRelativePath(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.WorkspaceRoot.String(), fp.String()), nil
}

// Copy copies source to dest, both relative to the workspace root.
// Directories are copied recursively. An existing dest is backed up
// first when backups are enabled.
func (p *Processor) Copy(source, dest string) error {
	const op errors.Op = "fileops.Copy"
	src, err := p.resolve(source)
	if err != nil {
		return errors.E(op, errors.Validation, err)
	}
	dst, err := p.resolve(dest)
	if err != nil {
		return errors.E(op, errors.Validation, err)
	}
	if _, err := os.Stat(src); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(src), err)
	}
	if err := p.backupIfExists(dst); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(dst), err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(dst), err)
	}
	if err := cp.Copy(src, dst); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(dst), err)
	}
	return nil
}

// Symlink creates a symbolic link at source, relative to the workspace
// root, whose content is target verbatim. A relative target is resolved
// by the OS against the link's parent directory and may point anywhere
// inside the workspace; an absolute target must not contain traversal.
func (p *Processor) Symlink(source, target string) error {
	const op errors.Op = "fileops.Symlink"
	link, err := p.resolve(source)
	if err != nil {
		return errors.E(op, errors.Validation, err)
	}
	if target == "" {
		return errors.E(op, errors.Validation, fmt.Errorf("empty symlink target"))
	}
	if filepath.IsAbs(target) && containsDotDot(target) {
		return errors.E(op, errors.Validation,
			fmt.Errorf("absolute symlink target contains traversal: %q", target))
	}
	if err := p.backupIfExists(link); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(link), err)
	}
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(link), err)
	}
	// Replace an existing link rather than failing on it.
	if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(link); err != nil {
			return errors.E(op, errors.FileSystem, types.UniquePath(link), err)
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return errors.E(op, errors.FileSystem, types.UniquePath(link), err)
	}
	return nil
}

func containsDotDot(path string) bool {
	for _, c := range strings.Split(filepath.ToSlash(path), "/") {
		if c == ".." {
			return true
		}
	}
	return false
}

// Process applies every operation in order, recording one OpResult per
// operation. A failing operation does not stop the rest.
func (p *Processor) Process(ops []Operation) []OpResult {
	results := make([]OpResult, 0, len(ops))
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpSymlink:
			err = p.Symlink(op.Source, op.Dest)
		default:
			err = p.Copy(op.Source, op.Dest)
		}
		results = append(results, OpResult{
			Op:     op,
			Source: op.Source,
			Dest:   op.Dest,
			Err:    err,
		})
	}
	return results
}

func (p *Processor) backupIfExists(path string) error {
	if !p.CreateBackups {
		return nil
	}
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	return RotateBackups(path, p.maxBackups())
}

// RotateBackups moves path to path.bak.1 after shifting existing
// numbered backups up by one, keeping at most max of them. The newest
// backup is always .bak.1.
func RotateBackups(path string, max int) error {
	if max < 1 {
		max = 1
	}
	// Drop the oldest backup if the slot it would shift into is taken.
	oldest := backupName(path, max)
	if _, err := os.Lstat(oldest); err == nil {
		if err := os.RemoveAll(oldest); err != nil {
			return fmt.Errorf("removing oldest backup: %w", err)
		}
	}
	for i := max - 1; i >= 1; i-- {
		from := backupName(path, i)
		if _, err := os.Lstat(from); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(from, backupName(path, i+1)); err != nil {
			return fmt.Errorf("rotating backup %d: %w", i, err)
		}
	}
	if err := os.Rename(path, backupName(path, 1)); err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	return nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.bak.%d", path, n)
}
