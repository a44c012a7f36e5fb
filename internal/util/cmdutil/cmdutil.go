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

// Package cmdutil holds helpers shared by the command packages.
package cmdutil

import (
	"os"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/workspace"
)

// WorkspaceFromCwd discovers the enclosing workspace of the current
// directory and loads it. It fails when there is none or the one found
// is corrupted.
func WorkspaceFromCwd() (*workspace.Workspace, error) {
	const op errors.Op = "cmdutil.WorkspaceFromCwd"
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.E(op, errors.FileSystem, err)
	}
	root, ok := workspace.DiscoverRoot(cwd)
	if !ok {
		return nil, errors.E(op, errors.Workspace,
			"no workspace found; run 'wmgr init' first")
	}
	w, err := workspace.Load(root)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if w.IsCorrupted() {
		return nil, errors.E(op, errors.Workspace,
			"workspace metadata is corrupted; re-run 'wmgr init'")
	}
	if !w.IsInitialized() {
		return nil, errors.E(op, errors.Workspace,
			"workspace is not initialized; run 'wmgr init' first")
	}
	return w, nil
}
