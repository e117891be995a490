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
	"fmt"

	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
)

// SkipReason classifies why a candidate was not approved.
type SkipReason int

const (
	// SkipAlreadyPresent marks a certificate found under another alias.
	SkipAlreadyPresent SkipReason = iota
	// SkipAliasInUse marks an alias already taken in the target.
	SkipAliasInUse
	// SkipSignatureMismatch marks a certificate matching a target entry
	// with a different signature. Only strict resolvers skip these.
	SkipSignatureMismatch
)

// String returns the metric label for the reason.
func (r SkipReason) String() string {
	switch r {
	case SkipAlreadyPresent:
		return "already_present"
	case SkipAliasInUse:
		return "alias_in_use"
	case SkipSignatureMismatch:
		return "signature_mismatch"
	default:
		return "unknown"
	}
}

// Skip records one candidate that was left out of an import.
type Skip struct {
	Alias         string
	Reason        SkipReason
	ExistingAlias string
	Cert          *Certificate
}

// Message returns the user-facing explanation.
func (s Skip) Message() string {
	switch s.Reason {
	case SkipAlreadyPresent:
		return fmt.Sprintf("already present as `%s`", s.ExistingAlias)
	case SkipSignatureMismatch:
		return fmt.Sprintf("matches `%s` with a different signature", s.ExistingAlias)
	default:
		return "alias already in use, would overwrite; rename not supported here"
	}
}

// SignatureMismatch warns that a candidate matched a target entry on the
// comparison chain while carrying a different signature. By default the
// pair is treated as distinct certificates.
type SignatureMismatch struct {
	Alias         string
	ExistingAlias string
	Strategy      string
}

// Message returns the user-facing warning.
func (w SignatureMismatch) Message() string {
	return fmt.Sprintf("found matching certificate with different signature: `%s` matches `%s` by %s",
		w.Alias, w.ExistingAlias, w.Strategy)
}

// Resolution is the outcome of conflict resolution.
type Resolution struct {
	Approved *Store
	Skipped  []Skip
	Warnings []SignatureMismatch
}

// Resolver decides which import candidates may be committed to a target.
type Resolver struct {
	matcher *Matcher
	logger  *logging.Logger
	strict  bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStrictSignatures makes a signature mismatch block the candidate
// with SkipSignatureMismatch instead of only warning.
func WithStrictSignatures(strict bool) ResolverOption {
	return func(r *Resolver) {
		r.strict = strict
	}
}

// NewResolver creates a resolver. A nil logger discards output.
func NewResolver(matcher *Matcher, logger *logging.Logger, opts ...ResolverOption) *Resolver {
	if matcher == nil {
		matcher = NewMatcher()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Resolver{matcher: matcher, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve checks every candidate against target for an identity collision
// under a different alias and for an alias collision. Candidates failing
// either check are skipped, as are signature mismatches when the resolver
// is strict. When nothing is approved the Resolution is still returned,
// along with ErrNothingToImport.
func (r *Resolver) Resolve(candidates *Store, target *Snapshot) (*Resolution, error) {
	res := &Resolution{}
	approved := NewBuilder()
	existing := target.Store()

	for _, cand := range candidates.Entries() {
		alias, ok, mismatch := r.findIdentity(cand, existing, res)
		if ok && alias != cand.Alias {
			r.logger.Debugf("skipping %s: already present as %s", cand.Alias, alias)
			res.Skipped = append(res.Skipped, Skip{
				Alias:         cand.Alias,
				Reason:        SkipAlreadyPresent,
				ExistingAlias: alias,
				Cert:          cand.Cert,
			})
			continue
		}
		if !ok && mismatch != nil && r.strict {
			r.logger.Debugf("skipping %s: signature differs from %s", cand.Alias, mismatch.ExistingAlias)
			res.Skipped = append(res.Skipped, Skip{
				Alias:         cand.Alias,
				Reason:        SkipSignatureMismatch,
				ExistingAlias: mismatch.ExistingAlias,
				Cert:          cand.Cert,
			})
			continue
		}
		if existing.Contains(cand.Alias) {
			r.logger.Debugf("skipping %s: alias already in use", cand.Alias)
			res.Skipped = append(res.Skipped, Skip{
				Alias:         cand.Alias,
				Reason:        SkipAliasInUse,
				ExistingAlias: cand.Alias,
				Cert:          cand.Cert,
			})
			continue
		}
		approved.Put(cand.Alias, cand.Cert)
	}

	res.Approved = approved.Build()
	if res.Approved.IsEmpty() {
		return res, ErrNothingToImport
	}
	return res, nil
}

// findIdentity returns the first target alias holding a certificate
// identical to the candidate. Chain matches with a differing signature
// are recorded as warnings and never count as identity; the first of
// them is returned as mismatch.
func (r *Resolver) findIdentity(cand Entry, target *Store, res *Resolution) (alias string, ok bool, mismatch *SignatureMismatch) {
	for _, e := range target.Entries() {
		m := r.matcher.Compare(e.Cert, cand.Cert)
		if !m.Equal {
			continue
		}
		if m.SignatureMismatch {
			w := SignatureMismatch{Alias: cand.Alias, ExistingAlias: e.Alias, Strategy: m.Strategy}
			r.logger.Warn(w.Message())
			res.Warnings = append(res.Warnings, w)
			if mismatch == nil {
				mismatch = &w
			}
			continue
		}
		return e.Alias, true, mismatch
	}
	return "", false, mismatch
}
