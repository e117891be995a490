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

package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
)

// MinJKSPasswordLength is the shortest password a JKS file may be
// written with.
const MinJKSPasswordLength = 6

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// digestMismatchText is the message keystore-go reports when the store
// digest does not match the password. It exports no sentinel for it.
const digestMismatchText = "got invalid digest"

var errDigestMismatch = errors.New("keystore: JKS integrity digest mismatch")

// IsJKS reports whether data starts with the JKS magic number.
func IsJKS(data []byte) bool {
	return bytes.HasPrefix(data, jksMagic)
}

// JKS reads and writes Java keystores. Trusted certificate entries become
// one entry each; private key entries contribute their leaf certificate
// under the entry alias.
type JKS struct {
	now func() time.Time
}

// NewJKS returns a JKS codec.
func NewJKS() *JKS {
	return &JKS{now: time.Now}
}

// Format implements Codec.
func (j *JKS) Format() Format {
	return FormatJKS
}

// Decode implements Codec. The integrity digest must match password.
func (j *JKS) Decode(data, password []byte) ([]certstore.Entry, error) {
	ks, err := j.load(data, password)
	if errors.Is(err, errDigestMismatch) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	if err != nil {
		return nil, err
	}
	return j.entries(ks)
}

// DecodeTrusted implements TrustedDecoder. The integrity digest is not
// verified, which reads the certificates of a protected store without its
// password.
func (j *JKS) DecodeTrusted(data []byte) ([]certstore.Entry, error) {
	ks, err := j.load(data, nil)
	if err != nil && !errors.Is(err, errDigestMismatch) {
		return nil, err
	}
	return j.entries(ks)
}

// load parses data into a keystore. keystore-go checks the digest after
// every entry has been read, so on errDigestMismatch ks is complete.
func (j *JKS) load(data, password []byte) (jks.KeyStore, error) {
	ks := jks.New(jks.WithOrderedAliases(), jks.WithCaseExactAliases())
	if !IsJKS(data) {
		return ks, ErrNotContainer
	}
	if err := ks.Load(bytes.NewReader(data), clone(password)); err != nil {
		if err.Error() == digestMismatchText {
			return ks, errDigestMismatch
		}
		return ks, fmt.Errorf("%w: JKS: %v", ErrMalformed, err)
	}
	return ks, nil
}

func (j *JKS) entries(ks jks.KeyStore) ([]certstore.Entry, error) {
	var entries []certstore.Entry
	for _, alias := range ks.Aliases() {
		switch {
		case ks.IsTrustedCertificateEntry(alias):
			e, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, fmt.Errorf("keystore: reading %s: %w", alias, err)
			}
			entries = append(entries, certstore.Entry{
				Alias: alias,
				Cert:  certstore.NewTypedCertificate(e.Certificate.Type, e.Certificate.Content),
			})
		case ks.IsPrivateKeyEntry(alias):
			chain, err := ks.GetPrivateKeyEntryCertificateChain(alias)
			if err != nil {
				return nil, fmt.Errorf("keystore: reading %s: %w", alias, err)
			}
			if len(chain) == 0 {
				continue
			}
			entries = append(entries, certstore.Entry{
				Alias: alias,
				Cert:  certstore.NewTypedCertificate(chain[0].Type, chain[0].Content),
			})
		}
	}
	return entries, nil
}

// Encode implements Codec. Every entry is written as a trusted
// certificate entry.
func (j *JKS) Encode(store *certstore.Store, password []byte) ([]byte, error) {
	if len(password) < MinJKSPasswordLength {
		return nil, fmt.Errorf("%w: JKS requires at least %d characters", ErrPasswordTooShort, MinJKSPasswordLength)
	}
	ks := jks.New(jks.WithOrderedAliases(), jks.WithCaseExactAliases())
	created := j.now()
	for _, e := range store.Entries() {
		err := ks.SetTrustedCertificateEntry(e.Alias, jks.TrustedCertificateEntry{
			CreationTime: created,
			Certificate: jks.Certificate{
				Type:    e.Cert.Type(),
				Content: e.Cert.Raw(),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("keystore: writing %s: %w", e.Alias, err)
		}
	}
	var buf bytes.Buffer
	if err := ks.Store(&buf, clone(password)); err != nil {
		return nil, fmt.Errorf("keystore: encoding JKS: %w", err)
	}
	return buf.Bytes(), nil
}

// clone hands the library its own copy of a password, which it may zero.
func clone(password []byte) []byte {
	return append([]byte(nil), password...)
}
