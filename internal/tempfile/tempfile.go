// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcmtools.
//
// go-dcmtools is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package tempfile hands out scratch files that are removed together when
// a command finishes.
package tempfile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// Manager tracks the temporary files it creates.
type Manager struct {
	mu    sync.Mutex
	fs    afero.Fs
	dir   string
	paths []string
}

// New creates a manager that places files in dir on fs. An empty dir
// uses the system temp directory.
func New(fs afero.Fs, dir string) *Manager {
	return &Manager{fs: fs, dir: dir}
}

// Create creates an empty file whose name starts with prefix and returns
// its path. The file is closed; callers reopen it as needed.
func (m *Manager) Create(prefix string) (string, error) {
	f, err := afero.TempFile(m.fs, m.dir, prefix)
	if err != nil {
		return "", fmt.Errorf("tempfile: create: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(name)
		return "", fmt.Errorf("tempfile: close: %w", err)
	}
	m.track(name)
	return name, nil
}

// Write creates a temp file holding data.
func (m *Manager) Write(prefix string, data []byte) (string, error) {
	name, err := m.Create(prefix)
	if err != nil {
		return "", err
	}
	if err := afero.WriteFile(m.fs, name, data, 0o600); err != nil {
		return "", fmt.Errorf("tempfile: write: %w", err)
	}
	return name, nil
}

// Paths returns the files currently tracked.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.paths...)
}

// Cleanup removes every tracked file. Files already gone are ignored.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	paths := m.paths
	m.paths = nil
	m.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := m.fs.Remove(p); err != nil {
			if exists, _ := afero.Exists(m.fs, p); exists {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) track(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
}
