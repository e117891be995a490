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

// SaveCert stores DER certificate data under alias in storeID.
// Returns ErrInvalidID if the store ID or alias is empty.
func SaveCert(backend Backend, storeID, alias string, der []byte) error {
	if storeID == "" || alias == "" {
		return ErrInvalidID
	}
	return backend.Put(CertPath(storeID, alias), der, nil)
}

// GetCert retrieves the certificate stored under alias.
// Returns ErrNotFound if the certificate does not exist.
func GetCert(backend Backend, storeID, alias string) ([]byte, error) {
	if storeID == "" || alias == "" {
		return nil, ErrInvalidID
	}
	return backend.Get(CertPath(storeID, alias))
}

// DeleteCert removes the certificate stored under alias.
// Returns ErrNotFound if the certificate does not exist.
func DeleteCert(backend Backend, storeID, alias string) error {
	if storeID == "" || alias == "" {
		return ErrInvalidID
	}
	return backend.Delete(CertPath(storeID, alias))
}

// CertExists checks if a certificate exists under alias.
func CertExists(backend Backend, storeID, alias string) (bool, error) {
	if storeID == "" || alias == "" {
		return false, ErrInvalidID
	}
	return backend.Exists(CertPath(storeID, alias))
}

// StoreExists reports whether storeID has been created.
func StoreExists(backend Backend, storeID string) (bool, error) {
	if storeID == "" {
		return false, ErrInvalidID
	}
	return backend.Exists(PasswordPath(storeID))
}
