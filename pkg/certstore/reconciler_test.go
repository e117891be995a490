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

func TestReconciler_RoundTrip(t *testing.T) {
	s := NewSnapshot("dcm", NewStore(
		Entry{"a", newTestCert(t, "a", true)},
		Entry{"b", newTestCert(t, "b", false)},
	))
	r := NewReconciler(nil, nil)

	assert.Empty(t, r.Changes(s, s))

	changes, err := r.Diff(s, s)
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Empty(t, changes)
	assert.EqualError(t, err, "no changes were made")
}

func TestReconciler_Additivity(t *testing.T) {
	a := newTestCert(t, "a", true)
	b := newTestCert(t, "b", false)
	c := newTestCert(t, "c", false)
	before := NewSnapshot("dcm", NewStore(Entry{"a", a}, Entry{"b", b}))
	after := NewSnapshot("dcm", NewStore(Entry{"b", b}, Entry{"c", c}))

	changes, err := NewReconciler(nil, nil).Diff(before, after)
	require.NoError(t, err)

	counts := map[ChangeKind]int{}
	for _, ch := range changes {
		counts[ch.Kind]++
	}
	assert.Equal(t, 1, counts[Removed])
	assert.Equal(t, 1, counts[Added])
	assert.Equal(t, 0, counts[Updated])

	assert.Equal(t, Change{Kind: Removed, Alias: "a", Old: a}, changes[0])
	assert.Equal(t, Change{Kind: Added, Alias: "c", New: c}, changes[1])
}

func TestReconciler_UpdatedOnResignedCertificate(t *testing.T) {
	issuer := newTestIssuer(t, "X", true)
	x := issuer.sign(t)
	xPrime := issuer.sign(t)
	y := newTestCert(t, "Y", false)
	z := newTestCert(t, "Z", false)

	before := NewSnapshot("dcm", NewStore(Entry{"a", x}, Entry{"b", y}))
	after := NewSnapshot("dcm", NewStore(Entry{"a", xPrime}, Entry{"b", NewCertificate(y.Raw())}, Entry{"c", z}))

	changes, err := NewReconciler(nil, nil).Diff(before, after)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, Updated, changes[0].Kind)
	assert.Equal(t, "a", changes[0].Alias)
	assert.Same(t, x, changes[0].Old)
	assert.Same(t, xPrime, changes[0].New)

	assert.Equal(t, Added, changes[1].Kind)
	assert.Equal(t, "c", changes[1].Alias)
	assert.Same(t, z, changes[1].New)
}

func TestReconciler_Ordering(t *testing.T) {
	c1 := newTestCert(t, "1", false)
	c2 := newTestCert(t, "2", false)
	c3 := newTestCert(t, "3", false)
	c4 := newTestCert(t, "4", false)

	before := NewSnapshot("dcm", NewStore(Entry{"x", c1}, Entry{"y", c2}, Entry{"z", c3}))
	after := NewSnapshot("dcm", NewStore(Entry{"n2", c4}, Entry{"z", c4}, Entry{"n1", c1}))

	changes := NewReconciler(nil, nil).Changes(before, after)
	got := make([]string, len(changes))
	for i, ch := range changes {
		got[i] = ch.String()
	}
	assert.Equal(t, []string{
		"Removed: x",
		"Removed: y",
		"Updated: z",
		"Added: n2",
		"Added: n1",
	}, got)
}
