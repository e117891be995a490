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

import "errors"

// Certificate errors
var (
	// ErrCertInvalid is returned when a certificate is invalid or malformed.
	ErrCertInvalid = errors.New("certstore: invalid certificate")

	// ErrNotX509 is returned when an X.509 view of a non-X.509 value is requested.
	ErrNotX509 = errors.New("certstore: not an X.509 certificate")
)

// Store errors
var (
	// ErrAliasNotFound is returned when an alias does not exist in a store.
	ErrAliasNotFound = errors.New("certstore: alias not found")

	// ErrAliasExists is returned when an alias is already taken.
	ErrAliasExists = errors.New("certstore: alias already exists")

	// ErrInvalidAlias is returned for empty aliases.
	ErrInvalidAlias = errors.New("certstore: invalid alias")
)

// Reconciliation errors
var (
	// ErrNothingToImport is returned when conflict resolution leaves no
	// certificate to commit.
	ErrNothingToImport = errors.New("no certificates to import")

	// ErrNoChanges is returned when an operation that should have modified
	// a store left it unchanged.
	ErrNoChanges = errors.New("no changes were made")
)
