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

// Package filestore keeps a DCM certificate store in a single keystore
// file. Commits always write the normalized JKS encoding and replace the
// file atomically.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/keystore"
	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
)

// ErrStoreExists is returned when creating a store over an existing file.
var ErrStoreExists = errors.New("filestore: certificate store already exists")

// usageSuffix names the sidecar file holding application assignments.
const usageSuffix = ".usage.yaml"

// Accessor implements platform.Accessor over keystore files.
type Accessor struct {
	fs         afero.Fs
	keepBackup bool
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures an Accessor.
type Option func(*Accessor)

// WithBackups keeps the previous file next to the store after a commit.
func WithBackups(keep bool) Option {
	return func(a *Accessor) {
		a.keepBackup = keep
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Accessor) {
		a.logger = logger
	}
}

// New creates an accessor whose store IDs are paths on fs.
func New(fs afero.Fs, opts ...Option) *Accessor {
	a := &Accessor{
		fs:     fs,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExportSnapshot implements platform.Accessor.
func (a *Accessor) ExportSnapshot(ctx context.Context, storeID string, password []byte) (*certstore.Snapshot, error) {
	store, err := a.read("export", storeID, password)
	if err != nil {
		return nil, err
	}
	return certstore.NewSnapshot(storeID, store), nil
}

// CommitStore implements platform.Accessor. The store password must open
// the current file; the new contents are written with the same password.
func (a *Accessor) CommitStore(ctx context.Context, storeID string, password []byte, store *certstore.Store) error {
	if _, err := a.read("commit", storeID, password); err != nil {
		return err
	}
	return a.write("commit", storeID, password, store, true)
}

// CreateStore implements platform.Creator.
func (a *Accessor) CreateStore(ctx context.Context, storeID string, password []byte) error {
	if _, err := a.fs.Stat(storeID); err == nil {
		return platform.NewError("create", "", fmt.Errorf("%w: %s", ErrStoreExists, storeID))
	}
	if err := a.fs.MkdirAll(filepath.Dir(storeID), 0o700); err != nil {
		return classify("create", platform.CodeFileNotAuth, err)
	}
	return a.write("create", storeID, password, certstore.NewStore(), false)
}

// ChangePassword implements platform.PasswordChanger.
func (a *Accessor) ChangePassword(ctx context.Context, storeID string, oldPassword, newPassword []byte) error {
	store, err := a.read("change password", storeID, oldPassword)
	if err != nil {
		return err
	}
	return a.write("change password", storeID, newPassword, store, true)
}

// AssignUsage implements platform.UsageAssigner.
func (a *Accessor) AssignUsage(ctx context.Context, storeID, appID, alias string) error {
	if appID == "" || alias == "" {
		return platform.NewError("assign", platform.CodeMissingParameter, nil)
	}
	if _, err := a.fs.Stat(storeID); err != nil {
		return classify("assign", platform.CodeStoreNotFound, err)
	}
	usages, err := a.Usages(ctx, storeID)
	if err != nil {
		return err
	}
	usages[appID] = alias
	data, err := yaml.Marshal(usages)
	if err != nil {
		return platform.NewError("assign", platform.CodeUnexpected, err)
	}
	if err := afero.WriteFile(a.fs, storeID+usageSuffix, data, 0o600); err != nil {
		return classify("assign", platform.CodeFileNotAuth, err)
	}
	return nil
}

// Usages implements platform.UsageAssigner.
func (a *Accessor) Usages(ctx context.Context, storeID string) (map[string]string, error) {
	usages := make(map[string]string)
	data, err := afero.ReadFile(a.fs, storeID+usageSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return usages, nil
	}
	if err != nil {
		return nil, classify("usages", platform.CodeFileNotAuth, err)
	}
	if err := yaml.Unmarshal(data, &usages); err != nil {
		return nil, platform.NewError("usages", platform.CodeUnexpected, err)
	}
	return usages, nil
}

func (a *Accessor) read(op, storeID string, password []byte) (*certstore.Store, error) {
	if storeID == "" {
		return nil, platform.NewError(op, platform.CodeMissingParameter, nil)
	}
	data, err := afero.ReadFile(a.fs, storeID)
	if err != nil {
		return nil, classify(op, platform.CodeStoreNotFound, err)
	}
	_, entries, err := keystore.DecodeStrict(data, password)
	switch {
	case errors.Is(err, keystore.ErrInvalidPassword):
		return nil, platform.NewError(op, platform.CodeInvalidPassword, nil)
	case err != nil:
		return nil, platform.NewError(op, platform.CodeBadStoreFormat, err)
	}

	b := certstore.NewBuilder()
	for i, e := range entries {
		alias := e.Alias
		if alias == "" {
			alias = fmt.Sprintf("entry%d", i+1)
		}
		b.Put(alias, e.Cert)
	}
	return b.Build(), nil
}

// write encodes store and swaps it into place through a temp file in the
// same directory. With replace set the current file is first renamed to a
// backup, which is removed afterwards unless backups are kept.
func (a *Accessor) write(op, storeID string, password []byte, store *certstore.Store, replace bool) error {
	data, err := keystore.Encode(keystore.NormalizedFormat, store, password)
	if errors.Is(err, keystore.ErrPasswordTooShort) {
		return platform.NewError(op, platform.CodeInvalidPassword, err)
	}
	if err != nil {
		return platform.NewError(op, platform.CodeUnexpected, err)
	}

	dir, base := filepath.Split(storeID)
	tmp, err := afero.TempFile(a.fs, dir, "."+base+".tmp-")
	if err != nil {
		return classify(op, platform.CodeFileNotAuth, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		a.fs.Remove(tmpName)
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
	if err := tmp.Close(); err != nil {
		a.fs.Remove(tmpName)
		return platform.NewError(op, platform.CodeUnexpected, err)
	}

	if !replace {
		if err := a.fs.Rename(tmpName, storeID); err != nil {
			a.fs.Remove(tmpName)
			return classify(op, platform.CodeFileNotAuth, err)
		}
		return nil
	}

	backup := fmt.Sprintf("%s.bak-%s", storeID, a.now().UTC().Format("20060102T150405.000000000"))
	if err := a.fs.Rename(storeID, backup); err != nil {
		a.fs.Remove(tmpName)
		return classify(op, platform.CodeStoreNotAuth, err)
	}
	if err := a.fs.Rename(tmpName, storeID); err != nil {
		if restoreErr := a.fs.Rename(backup, storeID); restoreErr != nil {
			a.logger.Errorf("restoring %s from %s failed: %v", storeID, backup, restoreErr)
		}
		a.fs.Remove(tmpName)
		return classify(op, platform.CodeStoreNotAuth, err)
	}
	if a.keepBackup {
		a.logger.Infof("previous store saved as %s", backup)
		return nil
	}
	if err := a.fs.Remove(backup); err != nil {
		a.logger.Warnf("removing backup %s: %v", backup, err)
	}
	return nil
}

// Backups lists the backup files kept for storeID, oldest first.
func (a *Accessor) Backups(storeID string) ([]string, error) {
	matches, err := afero.Glob(a.fs, storeID+".bak-*")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if !strings.HasSuffix(m, usageSuffix) {
			out = append(out, m)
		}
	}
	return out, nil
}

// classify maps filesystem errors onto diagnostic codes.
func classify(op, notFoundCode string, err error) *platform.Error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return platform.NewError(op, notFoundCode, err)
	case errors.Is(err, os.ErrPermission):
		return platform.NewError(op, platform.CodeFileNotAuth, err)
	default:
		return platform.NewError(op, platform.CodeUnexpected, err)
	}
}
