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

func TestResolver_IdentityUnderDifferentAlias(t *testing.T) {
	x := newTestCert(t, "X", true)
	y := newTestCert(t, "Y", true)

	target := NewSnapshot("dcm", NewStore(Entry{"root-ca", x}))
	candidates := NewStore(
		Entry{"my-ca", NewCertificate(x.Raw())},
		Entry{"new-ca", y},
	)

	res, err := NewResolver(nil, nil).Resolve(candidates, target)
	require.NoError(t, err)

	assert.Equal(t, []string{"new-ca"}, res.Approved.Aliases())
	got, _ := res.Approved.Get("new-ca")
	assert.Same(t, y, got)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "my-ca", res.Skipped[0].Alias)
	assert.Equal(t, SkipAlreadyPresent, res.Skipped[0].Reason)
	assert.Equal(t, "root-ca", res.Skipped[0].ExistingAlias)
	assert.Equal(t, "already present as `root-ca`", res.Skipped[0].Message())
	assert.Empty(t, res.Warnings)
}

func TestResolver_AliasCollision(t *testing.T) {
	x := newTestCert(t, "X", true)
	y := newTestCert(t, "Y", true)
	z := newTestCert(t, "Z", false)
	target := NewSnapshot("dcm", NewStore(Entry{"shared", x}))

	t.Run("different certificate", func(t *testing.T) {
		res, err := NewResolver(nil, nil).Resolve(NewStore(Entry{"shared", y}, Entry{"z", z}), target)
		require.NoError(t, err)
		assert.Equal(t, []string{"z"}, res.Approved.Aliases())
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipAliasInUse, res.Skipped[0].Reason)
		assert.Contains(t, res.Skipped[0].Message(), "alias already in use")
	})

	t.Run("same certificate", func(t *testing.T) {
		res, err := NewResolver(nil, nil).Resolve(NewStore(Entry{"shared", x}), target)
		assert.ErrorIs(t, err, ErrNothingToImport)
		require.NotNil(t, res)
		assert.True(t, res.Approved.IsEmpty())
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, SkipAliasInUse, res.Skipped[0].Reason)
	})
}

func TestResolver_NothingToImport(t *testing.T) {
	x := newTestCert(t, "X", true)
	target := NewSnapshot("dcm", NewStore(Entry{"root-ca", x}))

	res, err := NewResolver(nil, nil).Resolve(NewStore(Entry{"copy", x}), target)
	assert.ErrorIs(t, err, ErrNothingToImport)
	assert.Len(t, res.Skipped, 1)

	res, err = NewResolver(nil, nil).Resolve(NewStore(), target)
	assert.ErrorIs(t, err, ErrNothingToImport)
	assert.Empty(t, res.Skipped)
}

func TestResolver_SignatureMismatchIsWarningNotSkip(t *testing.T) {
	issuer := newTestIssuer(t, "resigned", true)
	x := issuer.sign(t)
	xPrime := issuer.sign(t)
	target := NewSnapshot("dcm", NewStore(Entry{"root-ca", x}))

	res, err := NewResolver(nil, nil).Resolve(NewStore(Entry{"other-ca", xPrime}), target)
	require.NoError(t, err)

	assert.Equal(t, []string{"other-ca"}, res.Approved.Aliases())
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "other-ca", res.Warnings[0].Alias)
	assert.Equal(t, "root-ca", res.Warnings[0].ExistingAlias)
	assert.Contains(t, res.Warnings[0].Message(), "different signature")
}

func TestResolver_StrictSignatures(t *testing.T) {
	issuer := newTestIssuer(t, "resigned", true)
	x := issuer.sign(t)
	xPrime := issuer.sign(t)
	y := newTestCert(t, "Y", true)
	target := NewSnapshot("dcm", NewStore(Entry{"root-ca", x}))
	candidates := NewStore(Entry{"other-ca", xPrime}, Entry{"new-ca", y})

	t.Run("disabled", func(t *testing.T) {
		res, err := NewResolver(nil, nil, WithStrictSignatures(false)).Resolve(candidates, target)
		require.NoError(t, err)
		assert.Equal(t, []string{"other-ca", "new-ca"}, res.Approved.Aliases())
		assert.Empty(t, res.Skipped)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("enabled", func(t *testing.T) {
		res, err := NewResolver(nil, nil, WithStrictSignatures(true)).Resolve(candidates, target)
		require.NoError(t, err)
		assert.Equal(t, []string{"new-ca"}, res.Approved.Aliases())
		require.Len(t, res.Skipped, 1)
		skip := res.Skipped[0]
		assert.Equal(t, "other-ca", skip.Alias)
		assert.Equal(t, SkipSignatureMismatch, skip.Reason)
		assert.Equal(t, "root-ca", skip.ExistingAlias)
		assert.Equal(t, "signature_mismatch", skip.Reason.String())
		assert.Equal(t, "matches `root-ca` with a different signature", skip.Message())
		require.Len(t, res.Warnings, 1, "the warning is still reported")
	})

	t.Run("enabled with nothing left", func(t *testing.T) {
		res, err := NewResolver(nil, nil, WithStrictSignatures(true)).
			Resolve(NewStore(Entry{"other-ca", xPrime}), target)
		assert.ErrorIs(t, err, ErrNothingToImport)
		require.NotNil(t, res)
		assert.True(t, res.Approved.IsEmpty())
		assert.Len(t, res.Skipped, 1)
	})
}

func TestResolver_SkippedNeverApproved(t *testing.T) {
	certs := []*Certificate{
		newTestCert(t, "a", true),
		newTestCert(t, "b", false),
		newTestCert(t, "c", true),
	}
	target := NewSnapshot("dcm", NewStore(Entry{"a", certs[0]}, Entry{"b-existing", certs[1]}))
	candidates := NewStore(
		Entry{"a-copy", certs[0]},
		Entry{"b", certs[1]},
		Entry{"a", certs[2]},
		Entry{"c", certs[2]},
	)

	res, err := NewResolver(nil, nil).Resolve(candidates, target)
	require.NoError(t, err)

	for _, s := range res.Skipped {
		assert.False(t, res.Approved.Contains(s.Alias), "skipped %s also approved", s.Alias)
	}
	assert.Equal(t, []string{"c"}, res.Approved.Aliases())
	assert.Len(t, res.Skipped, 3)
}
