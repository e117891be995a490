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

// Package loader builds a single certificate Store out of files,
// directories, zip archives and fetched chains, detecting each input's
// encoding by trial decoding.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/keystore"
	"github.com/jeremyhahn/go-dcmtools/pkg/logging"
)

var (
	// ErrNoCertificates is returned when no input yielded a certificate.
	ErrNoCertificates = errors.New("loader: no certificates could be loaded")

	// ErrFileTooLarge is returned for inputs above the size limit.
	ErrFileTooLarge = errors.New("loader: file too large")
)

// Options controls a load.
type Options struct {
	// Password opens protected keystores. Unprotected keystores are
	// always tried as well.
	Password []byte

	// Label replaces the file-derived alias of raw certificate files.
	Label string

	// CAOnly drops every certificate without the CA indicator.
	CAOnly bool
}

// Warning describes an input that contributed nothing.
type Warning struct {
	Source string
	Err    error
}

// String renders the warning for users.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Source, w.Err)
}

// Result is a successful load.
type Result struct {
	Store    *certstore.Store
	Warnings []Warning
}

// LoadError is returned when no certificate could be loaded. It carries
// the per-source warnings that explain why.
type LoadError struct {
	Warnings []Warning
}

// Error implements error.
func (e *LoadError) Error() string {
	if len(e.Warnings) == 0 {
		return ErrNoCertificates.Error()
	}
	parts := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		parts[i] = w.String()
	}
	return fmt.Sprintf("%s (%s)", ErrNoCertificates, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrNoCertificates.
func (e *LoadError) Unwrap() error {
	return ErrNoCertificates
}

// Loader reads candidate certificates for import.
type Loader struct {
	expander Expander
	logger   *logging.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithExpander overrides the path expander.
func WithExpander(e Expander) Option {
	return func(l *Loader) {
		l.expander = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader reading from fs.
func New(fs afero.Fs, opts ...Option) *Loader {
	l := &Loader{
		expander: NewFSExpander(fs),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load expands every path and loads the resulting files.
func (l *Loader) Load(paths []string, opts Options) (*Result, error) {
	var sources []Source
	var warnings []Warning
	for _, p := range paths {
		files, skipped, err := l.expander.Expand(p)
		if err != nil {
			l.logger.Warnf("skipping %s: %v", p, err)
			warnings = append(warnings, Warning{Source: p, Err: err})
			continue
		}
		for _, w := range skipped {
			l.logger.Warnf("skipping %s", w)
		}
		warnings = append(warnings, skipped...)
		if len(files) == 0 && len(skipped) == 0 {
			warnings = append(warnings, Warning{Source: p, Err: errors.New("no files found")})
		}
		sources = append(sources, files...)
	}
	return l.load(sources, warnings, opts)
}

// LoadSources loads in-memory sources.
func (l *Loader) LoadSources(sources []Source, opts Options) (*Result, error) {
	return l.load(sources, nil, opts)
}

func (l *Loader) load(sources []Source, warnings []Warning, opts Options) (*Result, error) {
	b := certstore.NewBuilder()
	for _, src := range sources {
		n, err := l.loadSource(b, src, opts)
		if err != nil {
			l.logger.Warnf("skipping %s: %v", src.Name, err)
			warnings = append(warnings, Warning{Source: src.Name, Err: err})
			continue
		}
		l.logger.Debugf("loaded %d certificate(s) from %s", n, src.Name)
	}
	if b.Len() == 0 {
		return nil, &LoadError{Warnings: warnings}
	}
	return &Result{Store: b.Build(), Warnings: warnings}, nil
}

// loadSource decodes one file into b and returns how many certificates
// it kept.
func (l *Loader) loadSource(b *certstore.Builder, src Source, opts Options) (int, error) {
	names := newAliasSequence(src.Name, opts.Label)

	format, entries, containerErr := keystore.DecodeContainer(src.Data, opts.Password)
	if containerErr == nil {
		l.logger.Debugf("%s decoded as %s keystore", src.Name, format)
		kept := 0
		for _, e := range entries {
			if opts.CAOnly && !e.Cert.IsCA() {
				continue
			}
			alias := e.Alias
			if alias == "" {
				alias = names.next()
			}
			l.put(b, alias, e.Cert, src.Name)
			kept++
		}
		return kept, nil
	}

	if !errors.Is(containerErr, keystore.ErrNotContainer) {
		return 0, fmt.Errorf("%s keystore: %w", format, containerErr)
	}

	certs, err := keystore.ParseCertificates(src.Data)
	if err != nil {
		return 0, fmt.Errorf("unsupported format: %w", err)
	}
	kept := 0
	for _, c := range certs {
		if opts.CAOnly && !c.IsCA() {
			continue
		}
		l.put(b, names.next(), c, src.Name)
		kept++
	}
	return kept, nil
}

func (l *Loader) put(b *certstore.Builder, alias string, cert *certstore.Certificate, source string) {
	if b.Put(alias, cert) {
		l.logger.Debugf("alias %s from %s replaces an earlier entry", alias, source)
	}
}

// aliasSequence yields base, base.2, base.3 and so on.
type aliasSequence struct {
	base string
	n    int
}

func newAliasSequence(name, label string) *aliasSequence {
	base := strings.TrimSpace(label)
	if base == "" {
		base = BaseAlias(name)
	}
	return &aliasSequence{base: base}
}

func (s *aliasSequence) next() string {
	s.n++
	if s.n == 1 {
		return s.base
	}
	return s.base + "." + strconv.Itoa(s.n)
}

// BaseAlias derives an alias from a file name by dropping the directory
// and the last extension.
func BaseAlias(name string) string {
	base := filepath.Base(name)
	if trimmed := strings.TrimSuffix(base, filepath.Ext(base)); trimmed != "" {
		return trimmed
	}
	return base
}
