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
	"time"
)

// Store is an ordered, immutable alias to certificate mapping. Every
// mutator returns a new Store and leaves the receiver untouched, so a
// Store captured as a Snapshot can never change underneath a diff.
type Store struct {
	entries []Entry
	index   map[string]int
}

// NewStore builds a store from entries. Later entries replace earlier
// ones with the same alias while keeping the first position.
func NewStore(entries ...Entry) *Store {
	b := NewBuilder()
	for _, e := range entries {
		b.Put(e.Alias, e.Cert)
	}
	return b.Build()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// IsEmpty reports whether the store has no entries.
func (s *Store) IsEmpty() bool {
	return len(s.entries) == 0
}

// Get returns the certificate stored under alias.
func (s *Store) Get(alias string) (*Certificate, bool) {
	i, ok := s.index[alias]
	if !ok {
		return nil, false
	}
	return s.entries[i].Cert, true
}

// Contains reports whether alias exists.
func (s *Store) Contains(alias string) bool {
	_, ok := s.index[alias]
	return ok
}

// Aliases returns the aliases in insertion order.
func (s *Store) Aliases() []string {
	aliases := make([]string, len(s.entries))
	for i, e := range s.entries {
		aliases[i] = e.Alias
	}
	return aliases
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Without returns a store with alias removed.
func (s *Store) Without(alias string) (*Store, error) {
	if !s.Contains(alias) {
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, alias)
	}
	b := NewBuilder()
	for _, e := range s.entries {
		if e.Alias != alias {
			b.Put(e.Alias, e.Cert)
		}
	}
	return b.Build(), nil
}

// Rename returns a store where the entry at oldAlias is moved to
// newAlias, keeping its position.
func (s *Store) Rename(oldAlias, newAlias string) (*Store, error) {
	if newAlias == "" {
		return nil, ErrInvalidAlias
	}
	if !s.Contains(oldAlias) {
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, oldAlias)
	}
	if oldAlias == newAlias {
		return s, nil
	}
	if s.Contains(newAlias) {
		return nil, fmt.Errorf("%w: %s", ErrAliasExists, newAlias)
	}
	b := NewBuilder()
	for _, e := range s.entries {
		alias := e.Alias
		if alias == oldAlias {
			alias = newAlias
		}
		b.Put(alias, e.Cert)
	}
	return b.Build(), nil
}

// Merge returns a store containing the receiver's entries followed by
// other's. On alias collisions other wins.
func (s *Store) Merge(other *Store) *Store {
	b := s.builder()
	for _, e := range other.entries {
		b.Put(e.Alias, e.Cert)
	}
	return b.Build()
}

// CACount returns how many entries carry the CA indicator.
func (s *Store) CACount() int {
	n := 0
	for _, e := range s.entries {
		if e.Cert.IsCA() {
			n++
		}
	}
	return n
}

func (s *Store) builder() *Builder {
	b := NewBuilder()
	for _, e := range s.entries {
		b.Put(e.Alias, e.Cert)
	}
	return b
}

// Builder accumulates entries into a Store. The zero value is not usable;
// call NewBuilder.
type Builder struct {
	entries []Entry
	index   map[string]int
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Put adds or replaces an entry. It reports whether an existing alias was
// overwritten.
func (b *Builder) Put(alias string, cert *Certificate) bool {
	if i, ok := b.index[alias]; ok {
		b.entries[i].Cert = cert
		return true
	}
	b.index[alias] = len(b.entries)
	b.entries = append(b.entries, Entry{Alias: alias, Cert: cert})
	return false
}

// Contains reports whether the builder holds alias.
func (b *Builder) Contains(alias string) bool {
	_, ok := b.index[alias]
	return ok
}

// Len returns the number of accumulated entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build returns an immutable Store. The builder may keep being used.
func (b *Builder) Build() *Store {
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	index := make(map[string]int, len(b.index))
	for k, v := range b.index {
		index[k] = v
	}
	return &Store{entries: entries, index: index}
}

// Snapshot is a Store captured from a named source at a point in time.
type Snapshot struct {
	store   *Store
	source  string
	takenAt time.Time
}

// NewSnapshot captures store as read from source.
func NewSnapshot(source string, store *Store) *Snapshot {
	if store == nil {
		store = NewStore()
	}
	return &Snapshot{store: store, source: source, takenAt: time.Now()}
}

// Store returns the captured store.
func (s *Snapshot) Store() *Store {
	return s.store
}

// Source names where the snapshot was read from.
func (s *Snapshot) Source() string {
	return s.source
}

// TakenAt returns the capture time.
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}
