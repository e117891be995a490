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
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcmtools/internal/testutil"
)

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "example.com:443", NormalizeAddress("example.com"))
	assert.Equal(t, "example.com:8443", NormalizeAddress(" example.com:8443 "))
	assert.Equal(t, "[::1]:443", NormalizeAddress("::1"))
	assert.Equal(t, "[::1]:443", NormalizeAddress("[::1]"))
}

func TestFetcher_Fetch(t *testing.T) {
	ca := testutil.NewCA(t, "Fetch Root")
	leaf := ca.NewLeaf(t, "localhost")

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{leaf.TLSCert}}
	srv.StartTLS()
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "https://")
	f := &Fetcher{Timeout: 5 * time.Second}

	src, err := f.Fetch(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, addr+".pem", src.Name)

	res, err := New(afero.NewMemMapFs()).LoadSources([]Source{src}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Store.Len())

	first, _ := res.Store.Get(addr)
	assert.Equal(t, leaf.Cert.Raw, first.Raw())
	second, _ := res.Store.Get(addr + ".2")
	assert.Equal(t, ca.Cert.Raw, second.Raw())
}

func TestFetcher_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := (&Fetcher{Timeout: time.Second}).Fetch(context.Background(), addr)
	assert.Error(t, err)
}
