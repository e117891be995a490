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

// Package dcm implements the certificate store operations behind the dcm
// command: import with conflict resolution, rename, remove, export and
// the store administration commands. Every mutating operation follows the
// same cycle of snapshot, functional change, commit, re-snapshot and diff
// so callers always see what actually changed in the store.
package dcm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/correlation"
	"github.com/jeremyhahn/go-dcmtools/pkg/keystore"
	"github.com/jeremyhahn/go-dcmtools/pkg/loader"
	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
	"github.com/jeremyhahn/go-dcmtools/pkg/metrics"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
)

var (
	// ErrAborted is returned when the operator declines an import.
	ErrAborted = errors.New("dcm: import aborted")

	// ErrUnsupported is returned when the store accessor lacks an
	// optional capability.
	ErrUnsupported = platform.ErrUnsupported

	// ErrConflictingSources is returned when an import names both paths
	// and in-memory sources.
	ErrConflictingSources = errors.New("dcm: files cannot be combined with fetched certificates")

	// ErrNoSources is returned when an import names no input at all.
	ErrNoSources = errors.New("dcm: no import sources given")
)

// Service runs certificate store operations against one accessor.
type Service struct {
	accessor   platform.Accessor
	loader     *loader.Loader
	matcher    *certstore.Matcher
	resolver   *certstore.Resolver
	reconciler *certstore.Reconciler
	metrics    *metrics.Recorder
	logger     *logging.Logger
	strictSigs bool
}

// Option configures a Service.
type Option func(*Service)

// WithLoader sets the loader used for imports.
func WithLoader(l *loader.Loader) Option {
	return func(s *Service) {
		s.loader = l
	}
}

// WithMatcher sets the certificate identity matcher.
func WithMatcher(m *certstore.Matcher) Option {
	return func(s *Service) {
		s.matcher = m
	}
}

// WithStrictSignatures makes imports skip candidates that match a store
// entry with a different signature instead of only warning.
func WithStrictSignatures(strict bool) Option {
	return func(s *Service) {
		s.strictSigs = strict
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) {
		s.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a service over accessor.
func New(accessor platform.Accessor, opts ...Option) *Service {
	s := &Service{
		accessor: accessor,
		matcher:  certstore.NewMatcher(),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = loader.New(afero.NewOsFs(), loader.WithLogger(s.logger))
	}
	s.resolver = certstore.NewResolver(s.matcher, s.logger, certstore.WithStrictSignatures(s.strictSigs))
	s.reconciler = certstore.NewReconciler(s.matcher, s.logger)
	return s
}

// ImportRequest describes one import.
type ImportRequest struct {
	StoreID  string
	Password []byte

	// Paths are files, directories or zip archives to load.
	Paths []string

	// Sources are certificates already in memory, such as a fetched
	// server chain. They cannot be combined with Paths.
	Sources []loader.Source

	Options loader.Options

	// Confirm is called with the resolution before anything is
	// committed. Returning false aborts the import. A nil Confirm
	// approves.
	Confirm func(*certstore.Resolution) (bool, error)
}

// ImportReport describes the outcome of an import.
type ImportReport struct {
	OperationID  string
	Loaded       int
	LoadWarnings []loader.Warning
	Resolution   *certstore.Resolution
	Changes      []certstore.Change
}

// Import loads candidates, resolves them against the store, commits the
// approved ones and reports the changes seen in the store afterwards.
// The report is returned alongside ErrNothingToImport and ErrAborted so
// callers can still show what was skipped.
func (s *Service) Import(ctx context.Context, req ImportRequest) (report *ImportReport, err error) {
	ctx, id := correlation.Ensure(ctx)
	log := s.logger.With(correlation.LogField, id)
	done := s.metrics.Track(metrics.OpImport)
	defer func() { done(err) }()

	report = &ImportReport{OperationID: id}

	loaded, err := s.load(req)
	if err != nil {
		return report, err
	}
	report.Loaded = loaded.Store.Len()
	report.LoadWarnings = loaded.Warnings
	s.metrics.RecordLoaded(report.Loaded)
	log.Info("loaded import candidates", "count", report.Loaded, "warnings", len(loaded.Warnings))

	before, err := s.accessor.ExportSnapshot(ctx, req.StoreID, req.Password)
	if err != nil {
		return report, err
	}

	resolution, resolveErr := s.resolver.Resolve(loaded.Store, before)
	report.Resolution = resolution
	for _, skip := range resolution.Skipped {
		s.metrics.RecordSkipped(skip.Reason.String())
		log.Info("skipping certificate", "alias", skip.Alias, "reason", skip.Message())
	}
	if resolveErr != nil {
		return report, resolveErr
	}

	if req.Confirm != nil {
		ok, err := req.Confirm(resolution)
		if err != nil {
			return report, err
		}
		if !ok {
			log.Info("import declined")
			return report, ErrAborted
		}
	}

	changes, err := s.commit(ctx, log, req.StoreID, req.Password, before, before.Store().Merge(resolution.Approved))
	report.Changes = changes
	return report, err
}

func (s *Service) load(req ImportRequest) (*loader.Result, error) {
	switch {
	case len(req.Paths) > 0 && len(req.Sources) > 0:
		return nil, ErrConflictingSources
	case len(req.Paths) > 0:
		return s.loader.Load(req.Paths, req.Options)
	case len(req.Sources) > 0:
		return s.loader.LoadSources(req.Sources, req.Options)
	default:
		return nil, ErrNoSources
	}
}

// MutationReport describes a rename or remove.
type MutationReport struct {
	OperationID string
	Changes     []certstore.Change
}

// Rename moves the certificate at oldAlias to newAlias.
func (s *Service) Rename(ctx context.Context, storeID string, password []byte, oldAlias, newAlias string) (*MutationReport, error) {
	return s.mutate(ctx, metrics.OpRename, storeID, password, func(st *certstore.Store) (*certstore.Store, error) {
		return st.Rename(oldAlias, strings.TrimSpace(newAlias))
	})
}

// Remove deletes the certificate at alias.
func (s *Service) Remove(ctx context.Context, storeID string, password []byte, alias string) (*MutationReport, error) {
	return s.mutate(ctx, metrics.OpRemove, storeID, password, func(st *certstore.Store) (*certstore.Store, error) {
		return st.Without(alias)
	})
}

func (s *Service) mutate(ctx context.Context, op, storeID string, password []byte,
	change func(*certstore.Store) (*certstore.Store, error)) (report *MutationReport, err error) {

	ctx, id := correlation.Ensure(ctx)
	log := s.logger.With(correlation.LogField, id, "operation", op)
	done := s.metrics.Track(op)
	defer func() { done(err) }()

	report = &MutationReport{OperationID: id}
	before, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return report, err
	}
	desired, err := change(before.Store())
	if err != nil {
		return report, err
	}
	if desired == before.Store() {
		return report, certstore.ErrNoChanges
	}
	report.Changes, err = s.commit(ctx, log, storeID, password, before, desired)
	return report, err
}

// commit writes desired, reads the store back and diffs it against
// before.
func (s *Service) commit(ctx context.Context, log *logging.Logger, storeID string, password []byte,
	before *certstore.Snapshot, desired *certstore.Store) ([]certstore.Change, error) {

	log.Debug("committing store", "store", storeID, "entries", desired.Len())
	if err := s.accessor.CommitStore(ctx, storeID, password, desired); err != nil {
		return nil, err
	}
	after, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return nil, fmt.Errorf("re-reading store after commit: %w", err)
	}
	changes, err := s.reconciler.Diff(before, after)
	for _, c := range changes {
		s.metrics.RecordChange(strings.ToLower(c.Kind.String()))
		log.Info(c.String())
	}
	return changes, err
}

// Export encodes the whole store as a jks or pkcs12 keystore protected
// by exportPassword, or as a PEM bundle.
func (s *Service) Export(ctx context.Context, storeID string, password []byte,
	format keystore.Format, exportPassword []byte) (data []byte, store *certstore.Store, err error) {

	done := s.metrics.Track(metrics.OpExport)
	defer func() { done(err) }()

	snap, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return nil, nil, err
	}
	store = snap.Store()
	switch format {
	case keystore.FormatPEM:
		return keystore.EncodePEMBundle(store), store, nil
	case keystore.FormatJKS, keystore.FormatPKCS12:
		data, err = keystore.Encode(format, store, exportPassword)
		if err != nil {
			return nil, nil, err
		}
		return data, store, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", keystore.ErrUnsupportedFormat, format)
	}
}

// ExportCert encodes the certificate at alias as PEM or DER.
func (s *Service) ExportCert(ctx context.Context, storeID string, password []byte,
	alias string, format keystore.Format) (data []byte, err error) {

	done := s.metrics.Track(metrics.OpExportCert)
	defer func() { done(err) }()

	snap, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return nil, err
	}
	cert, ok := snap.Store().Get(alias)
	if !ok {
		return nil, fmt.Errorf("%w: %s", certstore.ErrAliasNotFound, alias)
	}
	return keystore.EncodeCertificate(cert, format)
}

// View is the content of a store.
type View struct {
	Snapshot *certstore.Snapshot
	Usages   map[string]string
}

// View reads the store and, when supported, its application assignments.
func (s *Service) View(ctx context.Context, storeID string, password []byte) (view *View, err error) {
	done := s.metrics.Track(metrics.OpView)
	defer func() { done(err) }()

	snap, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return nil, err
	}
	view = &View{Snapshot: snap}
	if ua, ok := s.accessor.(platform.UsageAssigner); ok {
		if view.Usages, err = ua.Usages(ctx, storeID); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// Create creates an empty store.
func (s *Service) Create(ctx context.Context, storeID string, password []byte) (err error) {
	done := s.metrics.Track(metrics.OpCreate)
	defer func() { done(err) }()

	c, ok := s.accessor.(platform.Creator)
	if !ok {
		return ErrUnsupported
	}
	if err = c.CreateStore(ctx, storeID, password); err != nil {
		return err
	}
	s.logger.Info("created certificate store", "store", storeID)
	return nil
}

// ChangePassword replaces the store password.
func (s *Service) ChangePassword(ctx context.Context, storeID string, oldPassword, newPassword []byte) (err error) {
	done := s.metrics.Track(metrics.OpChangePassword)
	defer func() { done(err) }()

	pc, ok := s.accessor.(platform.PasswordChanger)
	if !ok {
		return ErrUnsupported
	}
	return pc.ChangePassword(ctx, storeID, oldPassword, newPassword)
}

// AssignUsage binds appID to the certificate at alias. The alias must
// exist in the store.
func (s *Service) AssignUsage(ctx context.Context, storeID string, password []byte, appID, alias string) (err error) {
	done := s.metrics.Track(metrics.OpAssign)
	defer func() { done(err) }()

	ua, ok := s.accessor.(platform.UsageAssigner)
	if !ok {
		return ErrUnsupported
	}
	snap, err := s.accessor.ExportSnapshot(ctx, storeID, password)
	if err != nil {
		return err
	}
	if !snap.Store().Contains(alias) {
		return fmt.Errorf("%w: %s", certstore.ErrAliasNotFound, alias)
	}
	if err = ua.AssignUsage(ctx, storeID, appID, alias); err != nil {
		return err
	}
	s.logger.Info("assigned certificate", "app", appID, "alias", alias)
	return nil
}
