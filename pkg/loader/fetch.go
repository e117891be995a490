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
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultFetchTimeout bounds a TLS handshake with a remote host.
const DefaultFetchTimeout = 10 * time.Second

// ErrNoPeerCertificates is returned when a handshake produced no chain.
var ErrNoPeerCertificates = errors.New("loader: server presented no certificates")

// Fetcher retrieves the certificate chain a TLS server presents.
type Fetcher struct {
	Timeout time.Duration

	// Config is cloned for every handshake. Verification is always
	// disabled: the chain is shown to the user to decide on trust.
	Config *tls.Config
}

// NormalizeAddress appends the default HTTPS port when addr has none.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "443")
}

// Fetch dials addr and returns its chain as a PEM Source named
// "<addr>.pem", so synthesized aliases start with the address.
func (f *Fetcher) Fetch(ctx context.Context, addr string) (Source, error) {
	addr = NormalizeAddress(addr)
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	cfg := &tls.Config{}
	if f.Config != nil {
		cfg = f.Config.Clone()
	}
	cfg.InsecureSkipVerify = true
	if cfg.ServerName == "" {
		host, _, _ := net.SplitHostPort(addr)
		cfg.ServerName = host
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: cfg}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Source{}, fmt.Errorf("loader: connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return Source{}, fmt.Errorf("%w: %s", ErrNoPeerCertificates, addr)
	}
	var data []byte
	for _, c := range state.PeerCertificates {
		data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.Raw})...)
	}
	return Source{Name: addr + ".pem", Data: data}, nil
}
