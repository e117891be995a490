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

import (
	"net/url"
	"strings"
)

// Every certificate store lives under its own prefix:
//
//	stores/{id}/password        password verifier
//	stores/{id}/index           alias order, one per line
//	stores/{id}/certs/{alias}.der
//	stores/{id}/usage/{app}     alias assigned to an application
//
// IDs, aliases and application names are path-escaped so any string can
// be used without creating extra directory levels.
const storesRoot = "stores/"

// StorePrefix returns the key prefix of a store.
func StorePrefix(storeID string) string {
	return storesRoot + escapeSegment(storeID) + "/"
}

// PasswordPath returns the key of a store's password verifier.
func PasswordPath(storeID string) string {
	return StorePrefix(storeID) + "password"
}

// IndexPath returns the key of a store's alias order.
func IndexPath(storeID string) string {
	return StorePrefix(storeID) + "index"
}

// CertPath returns the key of one certificate.
func CertPath(storeID, alias string) string {
	return StorePrefix(storeID) + "certs/" + escapeSegment(alias) + ".der"
}

// UsagePath returns the key of an application assignment.
func UsagePath(storeID, appID string) string {
	return StorePrefix(storeID) + "usage/" + escapeSegment(appID)
}

// ListCerts returns the aliases stored for storeID in key order.
func ListCerts(backend Backend, storeID string) ([]string, error) {
	prefix := StorePrefix(storeID) + "certs/"
	return listSegments(backend, prefix, ".der")
}

// ListUsages returns the application IDs with an assignment.
func ListUsages(backend Backend, storeID string) ([]string, error) {
	return listSegments(backend, StorePrefix(storeID)+"usage/", "")
}

// ListStores returns the IDs of all stores that have a password set.
func ListStores(backend Backend) ([]string, error) {
	keys, err := backend.List(storesRoot)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, storesRoot)
		seg, tail, ok := strings.Cut(rest, "/")
		if !ok || tail != "password" {
			continue
		}
		id, err := url.PathUnescape(seg)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func listSegments(backend Backend, prefix, suffix string) ([]string, error) {
	keys, err := backend.List(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		seg := strings.TrimPrefix(k, prefix)
		if strings.Contains(seg, "/") || !strings.HasSuffix(seg, suffix) {
			continue
		}
		name, err := url.PathUnescape(strings.TrimSuffix(seg, suffix))
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// escapeSegment path-escapes s and never yields "." or "..".
func escapeSegment(s string) string {
	e := url.PathEscape(s)
	if strings.HasPrefix(e, ".") {
		e = "%2E" + e[1:]
	}
	return e
}
