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
	"bytes"
)

// Verdict is the outcome of a single comparison strategy.
type Verdict int

const (
	// Undecided passes the decision to the next strategy.
	Undecided Verdict = iota
	// Same stops the chain with a match.
	Same
	// Different stops the chain with a mismatch.
	Different
)

// Comparison is one named step in the identity chain.
type Comparison struct {
	Name    string
	Compare func(a, b *Certificate) Verdict
}

// DefaultComparisons is the identity chain in priority order. The first
// decisive verdict wins. The last step always decides.
var DefaultComparisons = []Comparison{
	{Name: "non-x509", Compare: compareNonX509},
	{Name: "tbs", Compare: compareTBS},
	{Name: "signature", Compare: compareSignature},
	{Name: "der", Compare: compareDER},
	{Name: "rendering", Compare: compareRendering},
	{Name: "value", Compare: compareValue},
}

// Match is the detailed result of comparing two certificates.
type Match struct {
	// Equal is the verdict of the comparison chain.
	Equal bool

	// Strategy names the comparison that decided.
	Strategy string

	// SignatureMismatch is set when the chain matched but the raw
	// signatures of the two certificates differ.
	SignatureMismatch bool
}

// Identical reports a chain match that survived the signature check.
func (m Match) Identical() bool {
	return m.Equal && !m.SignatureMismatch
}

// Matcher decides certificate identity.
type Matcher struct {
	comparisons []Comparison
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithComparisons replaces the comparison chain.
func WithComparisons(comparisons ...Comparison) MatcherOption {
	return func(m *Matcher) {
		m.comparisons = comparisons
	}
}

// NewMatcher returns a matcher using DefaultComparisons unless overridden.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{comparisons: DefaultComparisons}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Equal runs the comparison chain.
func (m *Matcher) Equal(a, b *Certificate) bool {
	return m.Compare(a, b).Equal
}

// Compare runs the comparison chain and then double-checks signatures of
// matched X.509 pairs.
func (m *Matcher) Compare(a, b *Certificate) Match {
	if a == nil || b == nil {
		return Match{Equal: a == b, Strategy: "nil"}
	}
	for _, c := range m.comparisons {
		switch c.Compare(a, b) {
		case Same:
			return Match{
				Equal:             true,
				Strategy:          c.Name,
				SignatureMismatch: signaturesDiffer(a, b),
			}
		case Different:
			return Match{Strategy: c.Name}
		}
	}
	return Match{Strategy: "exhausted"}
}

func signaturesDiffer(a, b *Certificate) bool {
	sa, errA := a.Signature()
	sb, errB := b.Signature()
	if errA != nil || errB != nil {
		return false
	}
	return !bytes.Equal(sa, sb)
}

func compareNonX509(a, b *Certificate) Verdict {
	if a.IsX509() && b.IsX509() {
		return Undecided
	}
	if a.sameBytes(b) {
		return Same
	}
	return Different
}

func compareTBS(a, b *Certificate) Verdict {
	ta, _ := a.TBS()
	tb, _ := b.TBS()
	if bytes.Equal(ta, tb) {
		return Same
	}
	return Undecided
}

func compareSignature(a, b *Certificate) Verdict {
	sa, _ := a.Signature()
	sb, _ := b.Signature()
	if bytes.Equal(sa, sb) {
		return Same
	}
	return Undecided
}

func compareDER(a, b *Certificate) Verdict {
	if bytes.Equal(a.Raw(), b.Raw()) {
		return Same
	}
	return Undecided
}

func compareRendering(a, b *Certificate) Verdict {
	if a.String() == b.String() {
		return Same
	}
	return Undecided
}

func compareValue(a, b *Certificate) Verdict {
	ca, errA := a.X509()
	cb, errB := b.X509()
	if errA == nil && errB == nil && ca.Equal(cb) {
		return Same
	}
	return Different
}
