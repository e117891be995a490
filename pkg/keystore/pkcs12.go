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
	"crypto/x509"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
)

// PKCS12 reads and writes PKCS#12 trust stores.
//
// Decoding first goes through x/crypto/pkcs12, which exposes the
// friendlyName of every bag and so preserves aliases. That decoder rejects
// the Java trusted-key-usage attribute written by most trust store tools,
// so go-pkcs12 is used as the fallback and its entries carry no alias.
type PKCS12 struct {
	encoder *gopkcs12.Encoder
}

// pfxVersion is the only PFX version defined by RFC 7292.
const pfxVersion = 3

// IsPKCS12 reports whether data starts with a PFX structure: a SEQUENCE
// whose first element is the integer 3. DER certificates start with a
// nested SEQUENCE instead.
func IsPKCS12(data []byte) bool {
	input := cryptobyte.String(data)
	var pfx cryptobyte.String
	var version int
	return input.ReadASN1(&pfx, cryptobyte_asn1.SEQUENCE) &&
		pfx.ReadASN1Integer(&version) &&
		version == pfxVersion
}

// NewPKCS12 returns a PKCS#12 codec that encodes with modern algorithms.
func NewPKCS12() *PKCS12 {
	return &PKCS12{encoder: gopkcs12.Modern}
}

// Format implements Codec.
func (p *PKCS12) Format() Format {
	return FormatPKCS12
}

// Decode implements Codec.
func (p *PKCS12) Decode(data, password []byte) ([]certstore.Entry, error) {
	if !IsPKCS12(data) {
		return nil, ErrNotContainer
	}
	pw := string(password)

	entries, err := decodeWithNames(data, pw)
	if err == nil {
		return entries, nil
	}
	if isPasswordError(err) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}

	certs, err := gopkcs12.DecodeTrustStore(data, pw)
	if err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
		}
		_, leaf, cas, chainErr := gopkcs12.DecodeChain(data, pw)
		if chainErr != nil {
			return nil, fmt.Errorf("%w: PKCS#12: %w", ErrMalformed, errors.Join(err, chainErr))
		}
		certs = append([]*x509.Certificate{leaf}, cas...)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	entries = make([]certstore.Entry, 0, len(certs))
	for _, c := range certs {
		entries = append(entries, certstore.Entry{Cert: certstore.FromX509(c)})
	}
	return entries, nil
}

func decodeWithNames(data []byte, password string) ([]certstore.Entry, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, err
	}
	var entries []certstore.Entry
	for _, b := range blocks {
		if b.Type != "CERTIFICATE" {
			continue
		}
		entries = append(entries, certstore.Entry{
			Alias: b.Headers["friendlyName"],
			Cert:  certstore.NewCertificate(b.Bytes),
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoCertificates
	}
	return entries, nil
}

func isPasswordError(err error) bool {
	return errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, gopkcs12.ErrIncorrectPassword)
}

// Encode implements Codec. Aliases are written as friendly names.
func (p *PKCS12) Encode(store *certstore.Store, password []byte) ([]byte, error) {
	entries := make([]gopkcs12.TrustStoreEntry, 0, store.Len())
	for _, e := range store.Entries() {
		cert, err := e.Cert.X509()
		if err != nil {
			return nil, fmt.Errorf("keystore: %s: %w", e.Alias, err)
		}
		entries = append(entries, gopkcs12.TrustStoreEntry{Cert: cert, FriendlyName: e.Alias})
	}
	data, err := p.encoder.EncodeTrustStoreEntries(entries, string(password))
	if err != nil {
		return nil, fmt.Errorf("keystore: encoding PKCS#12: %w", err)
	}
	return data, nil
}
