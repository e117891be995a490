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

// Package platform defines how dcmtools reads and writes the DCM
// certificate store it manages.
package platform

import (
	"context"
	"errors"
	"strings"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
)

// SystemStoreAliases name the platform's default certificate store.
var SystemStoreAliases = []string{"system", "*system"}

// IsSystemStore reports whether id refers to the default store.
func IsSystemStore(id string) bool {
	for _, alias := range SystemStoreAliases {
		if strings.EqualFold(strings.TrimSpace(id), alias) {
			return true
		}
	}
	return false
}

// ErrUnsupported is returned when an accessor lacks an optional capability.
var ErrUnsupported = errors.New("platform: operation not supported by this store")

// Accessor exports and commits a whole certificate store.
type Accessor interface {
	// ExportSnapshot reads the current contents of the store.
	ExportSnapshot(ctx context.Context, storeID string, password []byte) (*certstore.Snapshot, error)

	// CommitStore replaces the contents of the store with store.
	CommitStore(ctx context.Context, storeID string, password []byte, store *certstore.Store) error
}

// Creator creates empty stores.
type Creator interface {
	CreateStore(ctx context.Context, storeID string, password []byte) error
}

// PasswordChanger changes a store's password.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, storeID string, oldPassword, newPassword []byte) error
}

// UsageAssigner binds application identifiers to certificates.
type UsageAssigner interface {
	AssignUsage(ctx context.Context, storeID, appID, alias string) error
	Usages(ctx context.Context, storeID string) (map[string]string, error)
}
