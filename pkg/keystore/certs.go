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
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
)

var pemCertTypes = map[string]bool{
	"CERTIFICATE":      true,
	"X509 CERTIFICATE": true,
}

// ParseCertificates decodes a raw certificate stream: one or more PEM
// certificate blocks (text around them is ignored), or one or more
// concatenated DER certificates.
func ParseCertificates(data []byte) ([]*certstore.Certificate, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return parsePEM(data)
	}
	certs, err := x509.ParseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("keystore: parsing DER: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	out := make([]*certstore.Certificate, len(certs))
	for i, c := range certs {
		out[i] = certstore.FromX509(c)
	}
	return out, nil
}

func parsePEM(data []byte) ([]*certstore.Certificate, error) {
	var out []*certstore.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if !pemCertTypes[block.Type] {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("keystore: parsing PEM certificate %d: %w", len(out)+1, err)
		}
		out = append(out, certstore.FromX509(cert))
	}
	if len(out) == 0 {
		return nil, ErrNoCertificates
	}
	return out, nil
}

// EncodeCertificate writes a single certificate as PEM or DER. DER output
// is the complete certificate encoding.
func EncodeCertificate(cert *certstore.Certificate, format Format) ([]byte, error) {
	switch format {
	case FormatPEM:
		return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw()}), nil
	case FormatDER:
		return append([]byte(nil), cert.Raw()...), nil
	default:
		return nil, fmt.Errorf("%w: %q is not a certificate format", ErrUnsupportedFormat, format)
	}
}

// EncodePEMBundle writes every certificate of store as concatenated PEM.
func EncodePEMBundle(store *certstore.Store) []byte {
	var buf bytes.Buffer
	for _, e := range store.Entries() {
		_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: e.Cert.Raw()})
	}
	return buf.Bytes()
}
