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

// ChangeKind classifies a Change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Updated
)

// String returns the lowercase kind name.
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Change is one difference between two snapshots. Old is nil for Added
// and New is nil for Removed.
type Change struct {
	Kind  ChangeKind
	Alias string
	Old   *Certificate
	New   *Certificate
}

// String renders the change for reports.
func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("Added: %s", c.Alias)
	case Removed:
		return fmt.Sprintf("Removed: %s", c.Alias)
	default:
		return fmt.Sprintf("Updated: %s", c.Alias)
	}
}

// Reconciler computes differences between snapshots of one logical store.
type Reconciler struct {
	matcher *Matcher
	logger  *logging.Logger
}

// NewReconciler creates a reconciler. A nil logger discards output.
func NewReconciler(matcher *Matcher, logger *logging.Logger) *Reconciler {
	if matcher == nil {
		matcher = NewMatcher()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{matcher: matcher, logger: logger}
}

// Changes lists the differences from before to after. Removed and Updated
// records follow before's order, then Added records follow after's order.
func (r *Reconciler) Changes(before, after *Snapshot) []Change {
	prev, next := before.Store(), after.Store()
	var changes []Change

	for _, e := range prev.Entries() {
		cert, ok := next.Get(e.Alias)
		if !ok {
			changes = append(changes, Change{Kind: Removed, Alias: e.Alias, Old: e.Cert})
			continue
		}
		m := r.matcher.Compare(e.Cert, cert)
		if m.SignatureMismatch {
			r.logger.Warnf("certificate %s matched by %s but its signature changed", e.Alias, m.Strategy)
		}
		if !m.Identical() {
			changes = append(changes, Change{Kind: Updated, Alias: e.Alias, Old: e.Cert, New: cert})
		}
	}
	for _, e := range next.Entries() {
		if !prev.Contains(e.Alias) {
			changes = append(changes, Change{Kind: Added, Alias: e.Alias, New: e.Cert})
		}
	}
	return changes
}

// Diff is Changes for callers that expect a modification. An empty
// result fails with ErrNoChanges.
func (r *Reconciler) Diff(before, after *Snapshot) ([]Change, error) {
	changes := r.Changes(before, after)
	if len(changes) == 0 {
		return changes, ErrNoChanges
	}
	return changes, nil
}
