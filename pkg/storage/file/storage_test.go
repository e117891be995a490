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

package file

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcmtools/pkg/storage"
)

var _ storage.Backend = (*FileStorage)(nil)

func newTestStorage(t *testing.T) (*FileStorage, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	fs, err := New(fsys, "/var/lib/dcm")
	require.NoError(t, err)
	return fs, fsys
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestFileStorage_CRUD(t *testing.T) {
	fs, fsys := newTestStorage(t)

	require.NoError(t, fs.Put("stores/a/certs/root.der", []byte("cert"), nil))
	require.NoError(t, fs.Put("stores/a/password", []byte("hash"), storage.SecretOptions()))

	data, err := fs.Get("stores/a/certs/root.der")
	require.NoError(t, err)
	assert.Equal(t, []byte("cert"), data)

	info, err := fsys.Stat("/var/lib/dcm/stores/a/certs/root.der")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	info, err = fsys.Stat("/var/lib/dcm/stores/a/password")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	exists, err := fs.Exists("stores/a/password")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, fs.Delete("stores/a/password"))
	assert.ErrorIs(t, fs.Delete("stores/a/password"), storage.ErrNotFound)
	_, err = fs.Get("stores/a/password")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	exists, err = fs.Exists("stores/a/password")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStorage_List(t *testing.T) {
	fs, _ := newTestStorage(t)
	for _, k := range []string{"stores/b/index", "stores/a/certs/x.der", "stores/a/index"} {
		require.NoError(t, fs.Put(k, []byte(k), nil))
	}

	keys, err := fs.List("stores/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"stores/a/certs/x.der", "stores/a/index"}, keys)

	all, err := fs.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStorage_RejectsUnsafeKeys(t *testing.T) {
	fs, _ := newTestStorage(t)

	for _, key := range []string{"", "../escape", "a/../../b", "/abs", "nul\x00byte"} {
		err := fs.Put(key, []byte("x"), nil)
		assert.ErrorIs(t, err, storage.ErrInvalidKey, "key %q", key)
	}
}

func TestFileStorage_WorksWithStoreLayout(t *testing.T) {
	fs, _ := newTestStorage(t)

	require.NoError(t, storage.SaveCert(fs, "/QIBM/DEFAULT.KDB", "..", []byte("dots")))
	aliases, err := storage.ListCerts(fs, "/QIBM/DEFAULT.KDB")
	require.NoError(t, err)
	assert.Equal(t, []string{".."}, aliases)
}
