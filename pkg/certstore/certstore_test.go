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

package certstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificate_ParsedFields(t *testing.T) {
	ca := newTestCert(t, "Root CA", true)
	leaf := newTestCert(t, "leaf.example.com", false)

	assert.True(t, ca.IsX509())
	assert.True(t, ca.IsCA())
	assert.False(t, leaf.IsCA())

	info := ca.Info()
	assert.Contains(t, info.Subject, "CN=Root CA")
	assert.Equal(t, info.Subject, info.Issuer)
	assert.True(t, info.IsCA)
	assert.True(t, info.NotBefore.Before(info.NotAfter))
	assert.NotEmpty(t, info.SerialNumber)
	assert.Contains(t, ca.String(), "Root CA")
}

func TestCertificate_NonX509(t *testing.T) {
	c := NewTypedCertificate("PGP", []byte("opaque"))

	assert.False(t, c.IsX509())
	assert.False(t, c.IsCA())
	assert.Equal(t, CertificateInfo{}, c.Info())

	_, err := c.X509()
	assert.ErrorIs(t, err, ErrNotX509)

	garbage := NewCertificate([]byte{0x30, 0x01, 0x00})
	_, err = garbage.X509()
	assert.ErrorIs(t, err, ErrCertInvalid)
}

func TestCertificate_CopiesInput(t *testing.T) {
	der := newTestCert(t, "copy", false).Raw()
	buf := append([]byte(nil), der...)
	c := NewCertificate(buf)
	buf[0] = 0xFF
	assert.Equal(t, der, c.Raw())
}

func TestStore_OrderAndLookup(t *testing.T) {
	a := newTestCert(t, "a", false)
	b := newTestCert(t, "b", false)
	c := newTestCert(t, "c", false)

	s := NewStore(Entry{"a", a}, Entry{"b", b}, Entry{"a", c})

	assert.Equal(t, []string{"a", "b"}, s.Aliases())
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, c, got, "last writer wins")
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("z"))
	assert.Equal(t, 2, s.Len())
}

func TestStore_FunctionalMutators(t *testing.T) {
	a := newTestCert(t, "a", true)
	b := newTestCert(t, "b", false)
	orig := NewStore(Entry{"a", a}, Entry{"b", b})

	t.Run("Without", func(t *testing.T) {
		s, err := orig.Without("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, s.Aliases())
		assert.True(t, orig.Contains("a"))

		_, err = orig.Without("missing")
		assert.ErrorIs(t, err, ErrAliasNotFound)
	})

	t.Run("Rename", func(t *testing.T) {
		s, err := orig.Rename("a", "z")
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "b"}, s.Aliases())
		got, _ := s.Get("z")
		assert.Same(t, a, got)
		assert.True(t, orig.Contains("a"))

		_, err = orig.Rename("a", "b")
		assert.ErrorIs(t, err, ErrAliasExists)
		_, err = orig.Rename("missing", "x")
		assert.ErrorIs(t, err, ErrAliasNotFound)
		_, err = orig.Rename("a", "")
		assert.ErrorIs(t, err, ErrInvalidAlias)

		same, err := orig.Rename("a", "a")
		require.NoError(t, err)
		assert.Same(t, orig, same)
	})

	t.Run("Merge", func(t *testing.T) {
		c := newTestCert(t, "c", false)
		other := NewStore(Entry{"c", c}, Entry{"a", b})
		s := orig.Merge(other)
		assert.Equal(t, []string{"a", "b", "c"}, s.Aliases())
		got, _ := s.Get("a")
		assert.Same(t, b, got)
		assert.Equal(t, 0, s.CACount())
		assert.Equal(t, 1, orig.CACount())
	})
}

func TestStore_EntriesIsCopy(t *testing.T) {
	s := NewStore(Entry{"a", newTestCert(t, "a", false)})
	entries := s.Entries()
	entries[0].Alias = "mutated"
	assert.Equal(t, []string{"a"}, s.Aliases())
}

func TestSnapshot(t *testing.T) {
	snap := NewSnapshot("mem://store", nil)
	assert.NotNil(t, snap.Store())
	assert.True(t, snap.Store().IsEmpty())
	assert.Equal(t, "mem://store", snap.Source())
	assert.False(t, snap.TakenAt().IsZero())
}
