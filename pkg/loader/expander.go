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

package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// DefaultMaxFileSize bounds how much is read from any one input file or
// archive member.
const DefaultMaxFileSize = 32 << 20

var zipMagic = []byte("PK\x03\x04")

// Source is one candidate file: a display name and its contents.
type Source struct {
	Name string
	Data []byte
}

// Expander turns a path into the regular files it represents. Files that
// cannot be read are reported as warnings so the rest still load; the
// error is reserved for a path that cannot be expanded at all.
type Expander interface {
	Expand(path string) ([]Source, []Warning, error)
}

// FSExpander expands paths on an afero filesystem. Directories yield
// their immediate regular files only; subdirectories are not visited.
// Zip archives, detected by content, yield their regular members.
type FSExpander struct {
	fs      afero.Fs
	maxSize int64
}

// NewFSExpander creates an expander over fs.
func NewFSExpander(fs afero.Fs) *FSExpander {
	return &FSExpander{fs: fs, maxSize: DefaultMaxFileSize}
}

// Expand implements Expander.
func (e *FSExpander) Expand(p string) ([]Source, []Warning, error) {
	info, err := e.fs.Stat(p)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		sources, warnings := e.expandFile(p)
		return sources, warnings, nil
	}

	infos, err := afero.ReadDir(e.fs, p)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	var sources []Source
	var warnings []Warning
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		files, skipped := e.expandFile(filepath.Join(p, fi.Name()))
		sources = append(sources, files...)
		warnings = append(warnings, skipped...)
	}
	return sources, warnings, nil
}

func (e *FSExpander) expandFile(p string) ([]Source, []Warning) {
	data, err := e.readFile(p)
	if err != nil {
		return nil, []Warning{{Source: p, Err: err}}
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return []Source{{Name: p, Data: data}}, nil
	}
	return e.expandZip(p, data)
}

func (e *FSExpander) readFile(p string) ([]byte, error) {
	f, err := e.fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, e.maxSize, p)
}

func (e *FSExpander) expandZip(p string, data []byte) ([]Source, []Warning) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, []Warning{{Source: p, Err: fmt.Errorf("opening archive: %w", err)}}
	}
	var sources []Source
	var warnings []Warning
	for _, zf := range zr.File {
		if !zf.Mode().IsRegular() {
			continue
		}
		member, err := readMember(zf, e.maxSize)
		if err != nil {
			warnings = append(warnings, Warning{Source: p + "!" + zf.Name, Err: err})
			continue
		}
		sources = append(sources, Source{Name: path.Base(zf.Name), Data: member})
	}
	return sources, warnings
}

func readMember(zf *zip.File, limit int64) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readLimited(rc, limit, zf.Name)
}

func readLimited(r io.Reader, limit int64, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, limit)
	}
	return data, nil
}
