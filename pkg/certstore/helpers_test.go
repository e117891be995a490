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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testIssuer holds a self-signed template and key so the same certificate
// can be signed more than once.
type testIssuer struct {
	template *x509.Certificate
	key      *ecdsa.PrivateKey
}

func newTestIssuer(t *testing.T, cn string, isCA bool) *testIssuer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test Org"}},
		NotBefore:             time.Now().Add(-time.Hour).Truncate(time.Second),
		NotAfter:              time.Now().Add(24 * time.Hour).Truncate(time.Second),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  isCA,
	}
	if isCA {
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}
	return &testIssuer{template: tmpl, key: key}
}

// sign returns a freshly signed certificate. ECDSA signatures are
// randomized, so two calls yield the same TBS with different signatures.
func (i *testIssuer) sign(t *testing.T) *Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, i.template, i.template, &i.key.PublicKey, i.key)
	require.NoError(t, err)
	return NewCertificate(der)
}

func newTestCert(t *testing.T, cn string, isCA bool) *Certificate {
	t.Helper()
	return newTestIssuer(t, cn, isCA).sign(t)
}

// mutate returns a copy of c with the first occurrence of from replaced
// by to in the DER encoding. The signature is left untouched.
func mutate(t *testing.T, c *Certificate, from, to string) *Certificate {
	t.Helper()
	require.Len(t, to, len(from))
	raw := append([]byte(nil), c.Raw()...)
	i := bytes.Index(raw, []byte(from))
	require.GreaterOrEqual(t, i, 0, "%q not found in certificate", from)
	copy(raw[i:], to)
	return NewCertificate(raw)
}
