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

package manifest

import (
	"os"
	"path/filepath"

	"github.com/tk-aria/wmgr-sub001/internal/errors"
	"github.com/tk-aria/wmgr-sub001/internal/fileops"
	"gopkg.in/yaml.v3"
)

// Parse decodes a manifest document and applies its defaults.
func Parse(data []byte) (*Manifest, error) {
	const op errors.Op = "manifest.Parse"
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.E(op, errors.Serialization, err)
	}
	m.ApplyDefaults()
	return &m, nil
}

// Load reads, parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	const op errors.Op = "manifest.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.FileSystem, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return m, nil
}

// SaveOptions controls how Save treats an existing file at the target
// path.
type SaveOptions struct {
	// CreateBackups rotates a numbered backup of the previous manifest
	// before overwriting it.
	CreateBackups bool
	// MaxBackups caps the rotation. Zero keeps fileops' default.
	MaxBackups int
}

// Save serializes m to path, rotating a backup of any previous file
// when asked to.
func Save(m *Manifest, path string, opts SaveOptions) error {
	const op errors.Op = "manifest.Save"
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.E(op, errors.Serialization, err)
	}
	if opts.CreateBackups {
		if _, statErr := os.Lstat(path); statErr == nil {
			max := opts.MaxBackups
			if max == 0 {
				max = 3
			}
			if err := fileops.RotateBackups(path, max); err != nil {
				return errors.E(op, errors.FileSystem, err)
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.E(op, errors.FileSystem, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.E(op, errors.FileSystem, err)
	}
	return nil
}
