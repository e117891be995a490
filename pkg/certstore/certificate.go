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
	"bytes"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TypeX509 is the certificate type of every X.509 value.
const TypeX509 = "X.509"

// Certificate is an immutable certificate value as held in a DCM store.
// The DER bytes are the source of truth; parsed fields are derived once,
// on first use.
type Certificate struct {
	typ string
	raw []byte

	once   sync.Once
	parsed *x509.Certificate
	err    error
}

// CertificateInfo is the subset of parsed fields shown to users.
type CertificateInfo struct {
	// Subject is the distinguished name of the certificate subject.
	Subject string

	// Issuer is the distinguished name of the issuing CA.
	Issuer string

	// SerialNumber is the hex-encoded serial number.
	SerialNumber string

	// NotBefore is the certificate validity start time.
	NotBefore time.Time

	// NotAfter is the certificate validity end time.
	NotAfter time.Time

	// IsCA indicates if this is a CA certificate.
	IsCA bool
}

// NewCertificate wraps DER-encoded X.509 bytes. The bytes are copied.
func NewCertificate(der []byte) *Certificate {
	return NewTypedCertificate(TypeX509, der)
}

// NewTypedCertificate wraps a certificate value of an arbitrary type.
func NewTypedCertificate(typ string, content []byte) *Certificate {
	raw := make([]byte, len(content))
	copy(raw, content)
	return &Certificate{typ: typ, raw: raw}
}

// FromX509 wraps an already parsed certificate.
func FromX509(cert *x509.Certificate) *Certificate {
	c := NewCertificate(cert.Raw)
	c.once.Do(func() { c.parsed = cert })
	return c
}

// Type returns the certificate type, usually "X.509".
func (c *Certificate) Type() string {
	return c.typ
}

// Raw returns the encoded certificate. Callers must not modify it.
func (c *Certificate) Raw() []byte {
	return c.raw
}

// X509 parses the certificate on first use.
func (c *Certificate) X509() (*x509.Certificate, error) {
	c.once.Do(func() {
		if c.typ != TypeX509 {
			c.err = fmt.Errorf("%w: type %q", ErrNotX509, c.typ)
			return
		}
		c.parsed, c.err = x509.ParseCertificate(c.raw)
		if c.err != nil {
			c.err = fmt.Errorf("%w: %v", ErrCertInvalid, c.err)
		}
	})
	return c.parsed, c.err
}

// IsX509 reports whether the value is a parseable X.509 certificate.
func (c *Certificate) IsX509() bool {
	_, err := c.X509()
	return err == nil
}

// IsCA reports whether basic constraints are present and mark a CA.
func (c *Certificate) IsCA() bool {
	cert, err := c.X509()
	if err != nil {
		return false
	}
	return cert.BasicConstraintsValid && cert.IsCA
}

// Info returns the parsed fields used for display. Non-X.509 values
// yield a zero CertificateInfo.
func (c *Certificate) Info() CertificateInfo {
	cert, err := c.X509()
	if err != nil {
		return CertificateInfo{}
	}
	return CertificateInfo{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialNumber: hex.EncodeToString(cert.SerialNumber.Bytes()),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		IsCA:         cert.BasicConstraintsValid && cert.IsCA,
	}
}

// TBS returns the to-be-signed portion of the certificate.
func (c *Certificate) TBS() ([]byte, error) {
	cert, err := c.X509()
	if err != nil {
		return nil, err
	}
	return cert.RawTBSCertificate, nil
}

// Signature returns the raw signature bytes.
func (c *Certificate) Signature() ([]byte, error) {
	cert, err := c.X509()
	if err != nil {
		return nil, err
	}
	return cert.Signature, nil
}

// String renders the certificate as human readable text. Two certificates
// with the same rendering describe the same subject, issuer, serial,
// validity, key and signature.
func (c *Certificate) String() string {
	cert, err := c.X509()
	if err != nil {
		return fmt.Sprintf("[%s certificate, %d bytes]", c.typ, len(c.raw))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[\n  Version: V%d\n", cert.Version)
	fmt.Fprintf(&b, "  Subject: %s\n", cert.Subject)
	fmt.Fprintf(&b, "  Signature Algorithm: %s\n", cert.SignatureAlgorithm)
	fmt.Fprintf(&b, "  Key: %s, %s\n", cert.PublicKeyAlgorithm, hex.EncodeToString(cert.RawSubjectPublicKeyInfo))
	fmt.Fprintf(&b, "  Validity: [From: %s, To: %s]\n",
		cert.NotBefore.UTC().Format(time.RFC1123), cert.NotAfter.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "  Issuer: %s\n", cert.Issuer)
	fmt.Fprintf(&b, "  SerialNumber: [%s]\n", hex.EncodeToString(cert.SerialNumber.Bytes()))
	fmt.Fprintf(&b, "  Signature: %s\n]", hex.EncodeToString(cert.Signature))
	return b.String()
}

// sameBytes reports whether two certificates carry the same type and
// encoding.
func (c *Certificate) sameBytes(other *Certificate) bool {
	return c.typ == other.typ && bytes.Equal(c.raw, other.raw)
}

// Entry is one aliased certificate inside a Store.
type Entry struct {
	Alias string
	Cert  *Certificate
}
