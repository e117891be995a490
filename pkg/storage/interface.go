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

// Package storage provides the key-value backends behind the kv
// certificate store: an in-memory backend for tests and ephemeral use and
// a file backend (package file) for persistence.
package storage

import (
	"io/fs"
)

// Backend is a flat key space holding certificate stores. Keys are the
// slash separated paths built by StorePrefix and friends; values are DER
// certificates, alias indexes, usage assignments and password verifiers.
// Implementations are safe for concurrent use.
type Backend interface {
	// Get returns the value at key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put writes value at key, replacing any previous value.
	Put(key string, value []byte, opts *Options) error

	// Delete removes key or returns ErrNotFound.
	Delete(key string) error

	// List returns the keys under prefix in sorted order. ListCerts and
	// ListStores rely on the ordering.
	List(prefix string) ([]string, error)

	// Exists reports whether key holds a value.
	Exists(key string) (bool, error)

	// Close releases the backend. Later calls fail with ErrClosed.
	Close() error
}

// Options tunes a single Put.
type Options struct {
	// Permissions is the mode of the file written by file backends.
	// Memory backends ignore it.
	Permissions fs.FileMode
}

// SecretOptions returns Options for password verifiers, which only the
// owner may read.
func SecretOptions() *Options {
	return &Options{Permissions: 0o600}
}
