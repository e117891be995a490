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

// Package kvstore keeps DCM certificate stores in a storage.Backend, one
// DER value per certificate plus an alias index and a password verifier.
package kvstore

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
	"github.com/jeremyhahn/go-dcmtools/pkg/storage"
)

var (
	// ErrStoreExists is returned when creating a store that already exists.
	ErrStoreExists = errors.New("kvstore: certificate store already exists")

	// ErrCorruptVerifier is returned when a stored password verifier
	// cannot be decoded.
	ErrCorruptVerifier = errors.New("kvstore: corrupt password verifier")
)

const (
	saltLength = 16
	hashLength = 32
)

// KDFParams are the argon2id cost parameters used for new verifiers.
// Existing verifiers are checked with the parameters they were made with.
type KDFParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultKDFParams returns the argon2id parameters recommended for
// interactive logins.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

type verifier struct {
	Algorithm string `yaml:"algorithm"`
	Time      uint32 `yaml:"time"`
	Memory    uint32 `yaml:"memory"`
	Threads   uint8  `yaml:"threads"`
	Salt      string `yaml:"salt"`
	Hash      string `yaml:"hash"`
}

// Accessor implements the platform interfaces over a storage.Backend.
type Accessor struct {
	backend storage.Backend
	params  KDFParams
	logger  *logging.Logger
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithKDFParams overrides the argon2id parameters for new passwords.
func WithKDFParams(p KDFParams) Option {
	return func(a *Accessor) {
		a.params = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Accessor) {
		a.logger = logger
	}
}

// New creates an accessor backed by backend.
func New(backend storage.Backend, opts ...Option) *Accessor {
	a := &Accessor{
		backend: backend,
		params:  DefaultKDFParams(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExportSnapshot implements platform.Accessor.
func (a *Accessor) ExportSnapshot(ctx context.Context, storeID string, password []byte) (*certstore.Snapshot, error) {
	if err := a.authenticate("export", storeID, password); err != nil {
		return nil, err
	}
	store, err := a.load("export", storeID)
	if err != nil {
		return nil, err
	}
	return certstore.NewSnapshot(storeID, store), nil
}

// CommitStore implements platform.Accessor. Certificates missing from
// store are deleted, all others are rewritten, then the index is replaced.
func (a *Accessor) CommitStore(ctx context.Context, storeID string, password []byte, store *certstore.Store) error {
	const op = "commit"
	if err := a.authenticate(op, storeID, password); err != nil {
		return err
	}
	current, err := storage.ListCerts(a.backend, storeID)
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	for _, alias := range current {
		if store.Contains(alias) {
			continue
		}
		if err := storage.DeleteCert(a.backend, storeID, alias); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return platform.NewError(op, platform.CodeUnexpected, err)
		}
		a.logger.Debug("deleted certificate", "store", storeID, "alias", alias)
	}
	for _, e := range store.Entries() {
		if err := storage.SaveCert(a.backend, storeID, e.Alias, e.Cert.Raw()); err != nil {
			return platform.NewError(op, platform.CodeUnexpected, err)
		}
	}
	index := strings.Join(store.Aliases(), "\n")
	if err := a.backend.Put(storage.IndexPath(storeID), []byte(index), nil); err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	return nil
}

// CreateStore implements platform.Creator.
func (a *Accessor) CreateStore(ctx context.Context, storeID string, password []byte) error {
	const op = "create"
	if storeID == "" || len(password) == 0 {
		return platform.NewError(op, platform.CodeMissingParameter, nil)
	}
	exists, err := storage.StoreExists(a.backend, storeID)
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	if exists {
		return platform.NewError(op, "", fmt.Errorf("%w: %s", ErrStoreExists, storeID))
	}
	if err := a.backend.Put(storage.IndexPath(storeID), nil, nil); err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	return a.setPassword(op, storeID, password)
}

// ChangePassword implements platform.PasswordChanger.
func (a *Accessor) ChangePassword(ctx context.Context, storeID string, oldPassword, newPassword []byte) error {
	const op = "change password"
	if len(newPassword) == 0 {
		return platform.NewError(op, platform.CodeMissingParameter, nil)
	}
	if err := a.authenticate(op, storeID, oldPassword); err != nil {
		return err
	}
	return a.setPassword(op, storeID, newPassword)
}

// AssignUsage implements platform.UsageAssigner.
func (a *Accessor) AssignUsage(ctx context.Context, storeID, appID, alias string) error {
	const op = "assign"
	if storeID == "" || appID == "" || alias == "" {
		return platform.NewError(op, platform.CodeMissingParameter, nil)
	}
	if err := a.requireStore(op, storeID); err != nil {
		return err
	}
	if err := a.backend.Put(storage.UsagePath(storeID, appID), []byte(alias), nil); err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	return nil
}

// Usages implements platform.UsageAssigner.
func (a *Accessor) Usages(ctx context.Context, storeID string) (map[string]string, error) {
	const op = "usages"
	if err := a.requireStore(op, storeID); err != nil {
		return nil, err
	}
	apps, err := storage.ListUsages(a.backend, storeID)
	if err != nil {
		return nil, platform.NewError(op, platform.CodeUnexpected, err)
	}
	usages := make(map[string]string, len(apps))
	for _, app := range apps {
		alias, err := a.backend.Get(storage.UsagePath(storeID, app))
		if err != nil {
			return nil, platform.NewError(op, platform.CodeUnexpected, err)
		}
		usages[app] = string(alias)
	}
	return usages, nil
}

// Stores lists the IDs of all stores held by the backend.
func (a *Accessor) Stores() ([]string, error) {
	return storage.ListStores(a.backend)
}

// load reads the store in index order. Certificates present in the
// backend but missing from the index follow in key order.
func (a *Accessor) load(op, storeID string) (*certstore.Store, error) {
	index, err := a.backend.Get(storage.IndexPath(storeID))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, platform.NewError(op, platform.CodeUnexpected, err)
	}
	stored, err := storage.ListCerts(a.backend, storeID)
	if err != nil {
		return nil, platform.NewError(op, platform.CodeUnexpected, err)
	}
	present := make(map[string]bool, len(stored))
	for _, alias := range stored {
		present[alias] = true
	}

	var order []string
	seen := make(map[string]bool)
	for _, alias := range strings.Split(string(index), "\n") {
		if alias == "" || seen[alias] || !present[alias] {
			continue
		}
		seen[alias] = true
		order = append(order, alias)
	}
	var orphans []string
	for _, alias := range stored {
		if !seen[alias] {
			orphans = append(orphans, alias)
		}
	}
	sort.Strings(orphans)
	order = append(order, orphans...)

	entries := make([]certstore.Entry, 0, len(order))
	for _, alias := range order {
		der, err := storage.GetCert(a.backend, storeID, alias)
		if err != nil {
			return nil, platform.NewError(op, platform.CodeUnexpected, err)
		}
		entries = append(entries, certstore.Entry{Alias: alias, Cert: certstore.NewCertificate(der)})
	}
	return certstore.NewStore(entries...), nil
}

func (a *Accessor) requireStore(op, storeID string) error {
	if storeID == "" {
		return platform.NewError(op, platform.CodeMissingParameter, nil)
	}
	exists, err := storage.StoreExists(a.backend, storeID)
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	if !exists {
		return platform.NewError(op, platform.CodeStoreNotFound, nil)
	}
	return nil
}

func (a *Accessor) authenticate(op, storeID string, password []byte) error {
	if err := a.requireStore(op, storeID); err != nil {
		return err
	}
	data, err := a.backend.Get(storage.PasswordPath(storeID))
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	ok, err := verify(data, password)
	if err != nil {
		return platform.NewError(op, platform.CodeBadStoreFormat, err)
	}
	if !ok {
		return platform.NewError(op, platform.CodeInvalidPassword, nil)
	}
	return nil
}

func (a *Accessor) setPassword(op, storeID string, password []byte) error {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	p := a.params
	hash := argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, hashLength)
	data, err := yaml.Marshal(&verifier{
		Algorithm: "argon2id",
		Time:      p.Time,
		Memory:    p.Memory,
		Threads:   p.Threads,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Hash:      base64.StdEncoding.EncodeToString(hash),
	})
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	if err := a.backend.Put(storage.PasswordPath(storeID), data, storage.SecretOptions()); err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	return nil
}

func verify(data, password []byte) (bool, error) {
	var v verifier
	if err := yaml.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptVerifier, err)
	}
	if v.Algorithm != "argon2id" || v.Time == 0 || v.Threads == 0 {
		return false, ErrCorruptVerifier
	}
	salt, err := base64.StdEncoding.DecodeString(v.Salt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptVerifier, err)
	}
	want, err := base64.StdEncoding.DecodeString(v.Hash)
	if err != nil || len(want) == 0 {
		return false, ErrCorruptVerifier
	}
	got := argon2.IDKey(password, salt, v.Time, v.Memory, v.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
