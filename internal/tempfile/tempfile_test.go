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

package tempfile

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := New(fs, "/tmp/dcm")
	require.NoError(t, fs.MkdirAll("/tmp/dcm", 0o700))

	empty, err := m.Create("trust-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(empty, "/tmp/dcm/trust-"))

	full, err := m.Write("bundle-", []byte("pem"))
	require.NoError(t, err)
	data, err := afero.ReadFile(fs, full)
	require.NoError(t, err)
	assert.Equal(t, []byte("pem"), data)

	assert.ElementsMatch(t, []string{empty, full}, m.Paths())

	require.NoError(t, fs.Remove(empty))
	require.NoError(t, m.Cleanup())

	for _, p := range []string{empty, full} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists)
	}
	assert.Empty(t, m.Paths())
	assert.NoError(t, m.Cleanup())
}

func TestManager_CreateFails(t *testing.T) {
	m := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/tmp")
	_, err := m.Create("x-")
	assert.Error(t, err)
}
