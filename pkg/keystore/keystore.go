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

// Package keystore decodes and encodes the certificate container formats
// understood by dcmtools: JKS and PKCS#12 keystores, and raw PEM or DER
// certificate streams.
package keystore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
)

// Format identifies an encoding.
type Format string

const (
	FormatJKS    Format = "jks"
	FormatPKCS12 Format = "pkcs12"
	FormatPEM    Format = "pem"
	FormatDER    Format = "der"
)

// NormalizedFormat is the container every commit is written in.
const NormalizedFormat = FormatJKS

var (
	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("keystore: unsupported format")

	// ErrNotContainer is returned when data is not a recognized keystore.
	ErrNotContainer = errors.New("keystore: not a recognized keystore")

	// ErrNoCertificates is returned when a stream holds no certificate.
	ErrNoCertificates = errors.New("keystore: no certificates found")

	// ErrInvalidPassword is returned when a keystore was recognized but
	// could not be opened with the given password.
	ErrInvalidPassword = errors.New("keystore: invalid password")

	// ErrMalformed is returned when a keystore was recognized but its
	// contents are truncated or corrupt.
	ErrMalformed = errors.New("keystore: malformed keystore")

	// ErrPasswordTooShort is returned when a JKS password is below the
	// minimum length.
	ErrPasswordTooShort = errors.New("keystore: password too short")
)

// ParseFormat parses a user supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jks":
		return FormatJKS, nil
	case "pkcs12", "p12", "pfx":
		return FormatPKCS12, nil
	case "pem":
		return FormatPEM, nil
	case "der", "cer", "crt":
		return FormatDER, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Codec decodes and encodes one container format. Decoded entries may
// have an empty alias when the container does not carry one.
type Codec interface {
	Format() Format
	Decode(data, password []byte) ([]certstore.Entry, error)
	Encode(store *certstore.Store, password []byte) ([]byte, error)
}

// TrustedDecoder is implemented by codecs that can read the certificates
// of a protected container without its password.
type TrustedDecoder interface {
	DecodeTrusted(data []byte) ([]certstore.Entry, error)
}

// Containers returns the container codecs in trial order.
func Containers() []Codec {
	return []Codec{NewJKS(), NewPKCS12()}
}

// CodecFor returns the container codec for format.
func CodecFor(format Format) (Codec, error) {
	for _, c := range Containers() {
		if c.Format() == format {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a container format", ErrUnsupportedFormat, format)
}

// DecodeContainer tries every container codec in order. With a password
// each codec is tried with it first and then without one; the password-less
// attempt reads trusted certificates without verifying the container's
// integrity where the codec supports it. The format of the first codec
// that recognizes data is returned, and ErrNotContainer only when none
// does. A recognized container that fails to open reports the error of
// the password attempt.
func DecodeContainer(data, password []byte) (Format, []certstore.Entry, error) {
	for _, codec := range Containers() {
		entries, err := decodeAttempts(codec, data, password)
		if errors.Is(err, ErrNotContainer) {
			continue
		}
		if err != nil {
			return codec.Format(), nil, err
		}
		return codec.Format(), entries, nil
	}
	return "", nil, ErrNotContainer
}

func decodeAttempts(codec Codec, data, password []byte) ([]certstore.Entry, error) {
	var passwordErr error
	if len(password) > 0 {
		entries, err := codec.Decode(data, password)
		if err == nil || errors.Is(err, ErrNotContainer) {
			return entries, err
		}
		passwordErr = err
	}

	var entries []certstore.Entry
	var err error
	if trusted, ok := codec.(TrustedDecoder); ok {
		entries, err = trusted.DecodeTrusted(data)
	} else {
		entries, err = codec.Decode(data, nil)
	}
	if err == nil {
		return entries, nil
	}
	if passwordErr != nil {
		return nil, passwordErr
	}
	return nil, err
}

// DecodeStrict decodes data as a container using only the given password.
// It is used for the DCM store itself, where a wrong password must fail.
func DecodeStrict(data, password []byte) (Format, []certstore.Entry, error) {
	if IsJKS(data) {
		entries, err := NewJKS().Decode(data, password)
		return FormatJKS, entries, err
	}
	if !IsPKCS12(data) {
		return "", nil, ErrNotContainer
	}
	entries, err := NewPKCS12().Decode(data, password)
	if err != nil {
		return "", nil, err
	}
	return FormatPKCS12, entries, nil
}

// Encode writes store in the given container format.
func Encode(format Format, store *certstore.Store, password []byte) ([]byte, error) {
	codec, err := CodecFor(format)
	if err != nil {
		return nil, err
	}
	return codec.Encode(store, password)
}
