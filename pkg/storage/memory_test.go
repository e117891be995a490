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

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Backend = (*MemoryBackend)(nil)

func TestMemoryBackend_PutAndGet(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	value := []byte("test-value")
	require.NoError(t, backend.Put("test-key", value, nil))

	result, err := backend.Get("test-key")
	require.NoError(t, err)
	assert.Equal(t, value, result)

	// Mutating either side must not leak into storage
	value[0] = 'X'
	result[1] = 'Y'
	again, err := backend.Get("test-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("test-value"), again)

	assert.ErrorIs(t, backend.Put("", value, nil), ErrInvalidKey)
}

func TestMemoryBackend_Get_NotFound(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	_, err := backend.Get("nonexistent-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBackend_Delete(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.Put("k", []byte("v"), nil))
	require.NoError(t, backend.Delete("k"))

	exists, err := backend.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, backend.Delete("k"), ErrNotFound)
}

func TestMemoryBackend_ListSorted(t *testing.T) {
	backend := NewMemory()
	defer func() { _ = backend.Close() }()

	for _, k := range []string{"b/2", "a/1", "b/1", "c"} {
		require.NoError(t, backend.Put(k, nil, nil))
	}

	all, err := backend.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "b/1", "b/2", "c"}, all)

	b, err := backend.List("b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/1", "b/2"}, b)

	none, err := backend.List("zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	_, err := backend.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, backend.Put("k", nil, nil), ErrClosed)
	assert.ErrorIs(t, backend.Delete("k"), ErrClosed)
	_, err = backend.List("")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Exists("k")
	assert.ErrorIs(t, err, ErrClosed)
}
